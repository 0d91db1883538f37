package loans

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/config"
	"github.com/user/libcat-go/query"
)

// Handlers wraps the loans Service to provide HTTP handlers. All loan
// routes sit behind the token middleware, so a user is always present in
// the request context.
type Handlers struct {
	service *Service
	query   config.QueryConfig
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *Service, queryCfg config.QueryConfig) *Handlers {
	return &Handlers{service: service, query: queryCfg}
}

func requireUser(r *http.Request) (auth.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return auth.User{}, apperror.NewAuthError("authentication required", nil)
	}
	return user, nil
}

func (h *Handlers) listParams(r *http.Request) ListParams {
	q := r.URL.Query()
	page, pageSize := query.PageParams(q, h.query.DefaultPageSize, h.query.MaxPageSize)
	p := ListParams{
		Status:   q.Get("status"),
		Overdue:  query.BoolFilter(q, "overdue"),
		Ordering: q.Get("ordering"),
		Page:     page,
		PageSize: pageSize,
	}
	if v, ok := query.IntFilter(q, "user_id"); ok {
		p.UserID = &v
	}
	return p
}

// HandleBorrow godoc
// @Summary Borrow a book
// @Description Creates an active loan for the caller and takes one
// @Description available copy.
// @Tags Loans
// @Accept json
// @Produce json
// @Param borrowBody body BorrowRequest true "Book to borrow"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "Book not found"
// @Failure 409 {object} apperror.ErrorResponse "No copies available, or duplicate active loan"
// @Router /api/loans/borrow/ [post]
func (h *Handlers) HandleBorrow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req BorrowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		bookID, ok := req.Book()
		if !ok {
			auth.WriteError(w, r, apperror.NewValidationError("book_id is required", nil))
			return
		}
		loan, err := h.service.Borrow(user, bookID)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusCreated, loan)
	}
}

// HandleReturn godoc
// @Summary Return a borrowed book
// @Description Completes a loan identified by loan_id, or by the caller's
// @Description active loan on book_id. Borrower or staff only.
// @Tags Loans
// @Accept json
// @Produce json
// @Param returnBody body ReturnRequest true "Loan to return"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "No matching active loan"
// @Failure 409 {object} apperror.ErrorResponse "Loan already returned"
// @Router /api/loans/return/ [post]
func (h *Handlers) HandleReturn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req ReturnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		loan, err := h.service.Return(user, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, loan)
	}
}

// HandleListMine godoc
// @Summary List the caller's loans
// @Tags Loans
// @Produce json
// @Param status query string false "BORROWED or RETURNED"
// @Param overdue query bool false "Only overdue loans"
// @Param ordering query string false "id, borrowed_at or due_at, optionally -prefixed"
// @Param page query int false "1-indexed page"
// @Param page_size query int false "Page size"
// @Success 200 {object} query.Page[LoanResponse]
// @Failure 401 {object} apperror.ErrorResponse
// @Router /api/loans/mine/ [get]
func (h *Handlers) HandleListMine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		resp, err := h.service.ListMine(user, h.listParams(r))
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleListAll godoc
// @Summary List all loans
// @Description Staff only. Supports filtering by user_id.
// @Tags Loans
// @Produce json
// @Param user_id query int false "Filter by borrower id"
// @Param status query string false "BORROWED or RETURNED"
// @Param overdue query bool false "Only overdue loans"
// @Param ordering query string false "id, borrowed_at or due_at, optionally -prefixed"
// @Param page query int false "1-indexed page"
// @Param page_size query int false "Page size"
// @Success 200 {object} query.Page[LoanResponse]
// @Failure 403 {object} apperror.ErrorResponse
// @Router /api/loans/ [get]
func (h *Handlers) HandleListAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		resp, err := h.service.ListAll(user, h.listParams(r))
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleGet godoc
// @Summary Get a single loan
// @Description Visible to the borrower and staff.
// @Tags Loans
// @Produce json
// @Param id path int true "Loan id"
// @Success 200 {object} LoanResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/loans/{id}/ [get]
func (h *Handlers) HandleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid id", err))
			return
		}
		loan, err := h.service.Get(user, id)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, loan)
	}
}
