// Data transfer objects for the loan endpoints.
package loans

import "time"

// BorrowRequest is the payload for borrowing a book. "book" is accepted as
// an alias for "book_id".
type BorrowRequest struct {
	BookID    *int `json:"book_id,omitempty" example:"1"`
	BookAlias *int `json:"book,omitempty"`
}

// Book returns the requested book id from either field.
func (r BorrowRequest) Book() (int, bool) {
	if r.BookID != nil {
		return *r.BookID, true
	}
	if r.BookAlias != nil {
		return *r.BookAlias, true
	}
	return 0, false
}

// ReturnRequest is the payload for returning a loan, either directly by
// loan id or by the caller's active loan on a book.
type ReturnRequest struct {
	LoanID    *int `json:"loan_id,omitempty" example:"1"`
	BookID    *int `json:"book_id,omitempty"`
	BookAlias *int `json:"book,omitempty"`
}

// Book returns the requested book id from either field.
func (r ReturnRequest) Book() (int, bool) {
	if r.BookID != nil {
		return *r.BookID, true
	}
	if r.BookAlias != nil {
		return *r.BookAlias, true
	}
	return 0, false
}

// LoanResponse is a Loan with its derived status and overdue flag attached,
// which is how every loan leaves the API.
type LoanResponse struct {
	Loan
	Status  Status `json:"status"`
	Overdue bool   `json:"overdue"`
}

// NewLoanResponse derives the response view of a loan at the given time.
func NewLoanResponse(l Loan, now time.Time) LoanResponse {
	return LoanResponse{
		Loan:    l,
		Status:  l.Status(),
		Overdue: l.IsOverdue(now),
	}
}

// ListParams are the recognised query parameters for loan lists.
type ListParams struct {
	Status   string // BORROWED or RETURNED, case-insensitive; anything else is ignored
	Overdue  bool
	UserID   *int // staff list only
	Ordering string
	Page     int
	PageSize int
}
