package loans

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/catalog"
	"github.com/user/libcat-go/config"
	"github.com/user/libcat-go/query"
	"github.com/user/libcat-go/store"
)

// Service implements the loan state machine over the loans and books
// collections. Borrow and return each run as one locked load–modify–save
// sequence touching both collections, so copy counts and loan records can
// never drift apart under concurrent requests.
type Service struct {
	st    *store.Store
	loans *store.Collection[Loan]
	books *store.Collection[catalog.Book]
	cfg   config.LoanConfig
	log   *logrus.Logger

	// now is the clock used for borrow, return and overdue computation.
	// Tests substitute it to pin time.
	now func() time.Time
}

// NewService creates a new loans Service. The books collection is shared
// with the catalog service, which owns book CRUD.
func NewService(st *store.Store, books *store.Collection[catalog.Book], cfg config.LoanConfig, log *logrus.Logger) *Service {
	return &Service{
		st:    st,
		loans: store.NewCollection[Loan](st, "loans"),
		books: books,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Borrow creates a loan of the book for the user, due one loan period from
// now, and takes one available copy. It conflicts when no copies are
// available or when the user already holds an active loan for this book.
func (s *Service) Borrow(user auth.User, bookID int) (LoanResponse, error) {
	s.st.Lock()
	defer s.st.Unlock()

	books, err := s.books.Load()
	if err != nil {
		return LoanResponse{}, err
	}
	bookIdx := -1
	for i := range books {
		if books[i].ID == bookID {
			bookIdx = i
			break
		}
	}
	if bookIdx == -1 {
		return LoanResponse{}, apperror.NewNotFoundError("book not found", nil)
	}
	if books[bookIdx].AvailableCopies < 1 {
		return LoanResponse{}, apperror.NewConflictError("no copies available", nil)
	}

	loans, err := s.loans.Load()
	if err != nil {
		return LoanResponse{}, err
	}
	for _, l := range loans {
		if l.UserID == user.ID && l.BookID == bookID && l.ReturnedAt == nil {
			return LoanResponse{}, apperror.NewConflictError("book already borrowed by user", nil)
		}
	}

	now := s.now().UTC()
	loan := Loan{
		ID:         s.loans.NextID(loans),
		UserID:     user.ID,
		BookID:     bookID,
		BorrowedAt: now,
		DueAt:      now.Add(s.cfg.Period),
	}
	loans = append(loans, loan)
	books[bookIdx].AvailableCopies--

	if err := s.books.Save(books); err != nil {
		return LoanResponse{}, err
	}
	if err := s.loans.Save(loans); err != nil {
		return LoanResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id": loan.ID,
		"user_id": user.ID,
		"book_id": bookID,
	}).Info("book borrowed")
	return NewLoanResponse(loan, now), nil
}

// Return completes a loan. The target is resolved directly by loan id, or
// by the caller's active loan on the given book. The caller must be the
// borrower or staff. Returning restores one available copy, never past
// total_copies; a loan whose book has since been deleted still returns
// cleanly with no count to restore.
func (s *Service) Return(user auth.User, req ReturnRequest) (LoanResponse, error) {
	s.st.Lock()
	defer s.st.Unlock()

	loans, err := s.loans.Load()
	if err != nil {
		return LoanResponse{}, err
	}

	loanIdx := -1
	if req.LoanID != nil {
		for i := range loans {
			if loans[i].ID == *req.LoanID {
				loanIdx = i
				break
			}
		}
	} else if bookID, ok := req.Book(); ok {
		for i := range loans {
			if loans[i].BookID == bookID && loans[i].UserID == user.ID && loans[i].ReturnedAt == nil {
				loanIdx = i
				break
			}
		}
	} else {
		return LoanResponse{}, apperror.NewValidationError("loan_id or book_id is required", nil)
	}
	if loanIdx == -1 {
		return LoanResponse{}, apperror.NewNotFoundError("loan not found", nil)
	}

	loan := loans[loanIdx]
	if loan.UserID != user.ID && !user.Role.IsStaff() {
		return LoanResponse{}, apperror.NewPermissionError("you do not have permission to return this loan", nil)
	}
	if loan.ReturnedAt != nil {
		return LoanResponse{}, apperror.NewConflictError("loan already returned", nil)
	}

	now := s.now().UTC()
	loan.ReturnedAt = &now
	loans[loanIdx] = loan

	books, err := s.books.Load()
	if err != nil {
		return LoanResponse{}, err
	}
	for i := range books {
		if books[i].ID == loan.BookID {
			if books[i].AvailableCopies < books[i].TotalCopies {
				books[i].AvailableCopies++
			}
			if err := s.books.Save(books); err != nil {
				return LoanResponse{}, err
			}
			break
		}
	}
	if err := s.loans.Save(loans); err != nil {
		return LoanResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id": loan.ID,
		"user_id": loan.UserID,
		"book_id": loan.BookID,
		"by":      user.ID,
	}).Info("book returned")
	return NewLoanResponse(loan, now), nil
}

// loanOrderings are the comparators recognised by the loan lists'
// "ordering" parameter.
var loanOrderings = map[string]func(a, b Loan) int{
	"id":          func(a, b Loan) int { return a.ID - b.ID },
	"borrowed_at": func(a, b Loan) int { return a.BorrowedAt.Compare(b.BorrowedAt) },
	"due_at":      func(a, b Loan) int { return a.DueAt.Compare(b.DueAt) },
}

// ListMine returns one page of the caller's own loans.
func (s *Service) ListMine(user auth.User, p ListParams) (query.Page[LoanResponse], error) {
	p.UserID = &user.ID
	return s.list(p)
}

// ListAll returns one page across all users' loans. Staff only.
func (s *Service) ListAll(user auth.User, p ListParams) (query.Page[LoanResponse], error) {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return query.Page[LoanResponse]{}, err
	}
	return s.list(p)
}

func (s *Service) list(p ListParams) (query.Page[LoanResponse], error) {
	s.st.RLock()
	defer s.st.RUnlock()

	loans, err := s.loans.Load()
	if err != nil {
		return query.Page[LoanResponse]{}, err
	}
	now := s.now().UTC()

	if p.UserID != nil {
		loans = query.Filter(loans, func(l Loan) bool { return l.UserID == *p.UserID })
	}
	switch strings.ToUpper(p.Status) {
	case string(StatusBorrowed):
		loans = query.Filter(loans, func(l Loan) bool { return l.ReturnedAt == nil })
	case string(StatusReturned):
		loans = query.Filter(loans, func(l Loan) bool { return l.ReturnedAt != nil })
	}
	if p.Overdue {
		loans = query.Filter(loans, func(l Loan) bool { return l.IsOverdue(now) })
	}
	loans = query.Order(loans, p.Ordering, loanOrderings)

	paged, meta := query.Paginate(loans, p.Page, p.PageSize)
	results := make([]LoanResponse, len(paged))
	for i, l := range paged {
		results[i] = NewLoanResponse(l, now)
	}
	return query.NewPage(results, meta), nil
}

// Get returns a single loan visible to the caller: the borrower or staff.
func (s *Service) Get(user auth.User, id int) (LoanResponse, error) {
	s.st.RLock()
	defer s.st.RUnlock()

	loans, err := s.loans.Load()
	if err != nil {
		return LoanResponse{}, err
	}
	for _, l := range loans {
		if l.ID != id {
			continue
		}
		if l.UserID != user.ID && !user.Role.IsStaff() {
			return LoanResponse{}, apperror.NewPermissionError("you do not have permission to view this loan", nil)
		}
		return NewLoanResponse(l, s.now().UTC()), nil
	}
	return LoanResponse{}, apperror.NewNotFoundError("loan not found", nil)
}
