package catalog

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

// Handlers wraps the catalog Service to provide HTTP handlers.
type Handlers struct {
	service *Service
	query   config.QueryConfig
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *Service, queryCfg config.QueryConfig) *Handlers {
	return &Handlers{service: service, query: queryCfg}
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, apperror.NewBadRequestError("invalid id", err)
	}
	return id, nil
}

// requireUser pulls the authenticated user out of the request context.
// The token middleware guarantees it is present on gated routes; a miss
// here means the route was wired without the middleware.
func requireUser(r *http.Request) (auth.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return auth.User{}, apperror.NewAuthError("authentication required", nil)
	}
	return user, nil
}

// ---- Authors ----

// HandleListAuthors godoc
// @Summary List authors
// @Description Lists authors with optional search, ordering and pagination.
// @Tags Authors
// @Produce json
// @Param search query string false "Case-insensitive substring match on name"
// @Param ordering query string false "id or name, optionally -prefixed for descending"
// @Param page query int false "1-indexed page"
// @Param page_size query int false "Page size"
// @Success 200 {object} query.Page[Author]
// @Router /api/authors/ [get]
func (h *Handlers) HandleListAuthors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, pageSize := query.PageParams(q, h.query.DefaultPageSize, h.query.MaxPageSize)
		resp, err := h.service.ListAuthors(AuthorListParams{
			Search:   q.Get("search"),
			Ordering: q.Get("ordering"),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleGetAuthor godoc
// @Summary Get author
// @Tags Authors
// @Produce json
// @Param id path int true "Author id"
// @Success 200 {object} Author
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/authors/{id}/ [get]
func (h *Handlers) HandleGetAuthor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		author, err := h.service.GetAuthor(id)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, author)
	}
}

// HandleCreateAuthor godoc
// @Summary Create author
// @Description Staff only.
// @Tags Authors
// @Accept json
// @Produce json
// @Param authorBody body AuthorRequest true "Author details"
// @Success 201 {object} Author
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Router /api/authors/ [post]
func (h *Handlers) HandleCreateAuthor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req AuthorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		author, err := h.service.CreateAuthor(user, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusCreated, author)
	}
}

// HandleUpdateAuthor godoc
// @Summary Update author
// @Description Staff only. An empty name keeps the current one.
// @Tags Authors
// @Accept json
// @Produce json
// @Param id path int true "Author id"
// @Param authorBody body AuthorRequest true "Author details"
// @Success 200 {object} Author
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/authors/{id}/ [put]
func (h *Handlers) HandleUpdateAuthor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := idParam(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req AuthorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		author, err := h.service.UpdateAuthor(user, id, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, author)
	}
}

// HandleDeleteAuthor godoc
// @Summary Delete author
// @Description Staff only. Books referencing the author are not cascaded.
// @Tags Authors
// @Param id path int true "Author id"
// @Success 204
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/authors/{id}/ [delete]
func (h *Handlers) HandleDeleteAuthor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := idParam(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		if err := h.service.DeleteAuthor(user, id); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- Books ----

// HandleListBooks godoc
// @Summary List books
// @Description Lists books with optional search (title or author name),
// @Description filters, ordering and pagination.
// @Tags Books
// @Produce json
// @Param search query string false "Case-insensitive substring match on title or author name"
// @Param author query int false "Filter by author id"
// @Param publication_year query int false "Filter by publication year"
// @Param ordering query string false "id, title, publication_year or author, optionally -prefixed"
// @Param page query int false "1-indexed page"
// @Param page_size query int false "Page size"
// @Success 200 {object} query.Page[Book]
// @Router /api/books/ [get]
func (h *Handlers) HandleListBooks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, pageSize := query.PageParams(q, h.query.DefaultPageSize, h.query.MaxPageSize)
		params := BookListParams{
			Search:   q.Get("search"),
			Ordering: q.Get("ordering"),
			Page:     page,
			PageSize: pageSize,
		}
		if v, ok := query.IntFilter(q, "author"); ok {
			params.AuthorID = &v
		}
		if v, ok := query.IntFilter(q, "publication_year"); ok {
			params.PublicationYear = &v
		}
		resp, err := h.service.ListBooks(params)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleGetBook godoc
// @Summary Get book
// @Tags Books
// @Produce json
// @Param id path int true "Book id"
// @Success 200 {object} Book
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/books/{id}/ [get]
func (h *Handlers) HandleGetBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		book, err := h.service.GetBook(id)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, book)
	}
}

// HandleCreateBook godoc
// @Summary Create book
// @Description Staff only. The referenced author must exist and the copy
// @Description counts must satisfy 0 <= available_copies <= total_copies.
// @Tags Books
// @Accept json
// @Produce json
// @Param bookBody body CreateBookRequest true "Book details"
// @Success 201 {object} Book
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Router /api/books/ [post]
func (h *Handlers) HandleCreateBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req CreateBookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		book, err := h.service.CreateBook(user, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusCreated, book)
	}
}

// HandleUpdateBook godoc
// @Summary Update book
// @Description Staff only. PATCH behaves the same as PUT: absent fields are
// @Description left unchanged. A total_copies change that would push
// @Description available_copies below zero is rejected.
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book id"
// @Param bookBody body UpdateBookRequest true "Fields to update"
// @Success 200 {object} Book
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/books/{id}/ [put]
func (h *Handlers) HandleUpdateBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := idParam(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req UpdateBookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		book, err := h.service.UpdateBook(user, id, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, book)
	}
}

// HandleDeleteBook godoc
// @Summary Delete book
// @Description Staff only. Loans referencing the book are not cascaded.
// @Tags Books
// @Param id path int true "Book id"
// @Success 204
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/books/{id}/ [delete]
func (h *Handlers) HandleDeleteBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := requireUser(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := idParam(r)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		if err := h.service.DeleteBook(user, id); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
