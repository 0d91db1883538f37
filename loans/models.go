// Package loans implements the loan lifecycle: borrowing a book, returning
// it, and querying loans with ownership and staff visibility rules.
package loans

import "time"

// Status is the derived state of a loan. There is no stored status field:
// a loan is BORROWED until its ReturnedAt is set, then RETURNED (terminal;
// borrowing the same book again creates a fresh loan record).
type Status string

const (
	// StatusBorrowed marks an active loan.
	StatusBorrowed Status = "BORROWED"
	// StatusReturned marks a completed loan.
	StatusReturned Status = "RETURNED"
)

// Loan represents a borrowing transaction between a user and a book.
//
// Invariant: for a given (user, book) pair at most one loan is BORROWED at
// any time.
type Loan struct {
	ID         int        `json:"id"`
	UserID     int        `json:"user_id"`
	BookID     int        `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// RecordID implements store.Record.
func (l Loan) RecordID() int { return l.ID }

// Status derives the loan state from ReturnedAt.
func (l Loan) Status() Status {
	if l.ReturnedAt != nil {
		return StatusReturned
	}
	return StatusBorrowed
}

// IsOverdue reports whether the loan is still out past its due date.
// Overdue is always computed at read time against the current clock, never
// stored, so it cannot go stale.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.ReturnedAt == nil && now.After(l.DueAt)
}
