package loans

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/catalog"
	"github.com/user/libcat-go/config"
	"github.com/user/libcat-go/store"
)

var (
	member    = auth.User{ID: 1, Username: "member", Role: auth.RoleMember}
	other     = auth.User{ID: 2, Username: "other", Role: auth.RoleMember}
	librarian = auth.User{ID: 3, Username: "lib", Role: auth.RoleLibrarian}
)

type fixture struct {
	loans   *Service
	catalog *catalog.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)

	cat := catalog.NewService(st, log)
	svc := NewService(st, cat.Books(), config.LoanConfig{Period: 14 * 24 * time.Hour}, log)
	return &fixture{loans: svc, catalog: cat}
}

func intPtr(v int) *int { return &v }

func (f *fixture) addBook(t *testing.T, title string, copies int) catalog.Book {
	t.Helper()
	author, err := f.catalog.CreateAuthor(librarian, catalog.AuthorRequest{Name: "Author of " + title})
	require.NoError(t, err)
	book, err := f.catalog.CreateBook(librarian, catalog.CreateBookRequest{
		Title:           title,
		PublicationYear: intPtr(1960),
		ISBN:            "isbn-" + title,
		AuthorID:        intPtr(author.ID),
		TotalCopies:     intPtr(copies),
	})
	require.NoError(t, err)
	return book
}

func (f *fixture) availableCopies(t *testing.T, bookID int) int {
	t.Helper()
	book, err := f.catalog.GetBook(bookID)
	require.NoError(t, err)
	return book.AvailableCopies
}

func TestBorrowReturn_FullCycle(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "The Hobbit", 1)

	// Borrow takes the last copy.
	loan, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, loan.Status)
	assert.Equal(t, member.ID, loan.UserID)
	assert.Equal(t, loan.BorrowedAt.Add(14*24*time.Hour), loan.DueAt)
	assert.Equal(t, 0, f.availableCopies(t, book.ID))

	// A second borrow by the same user conflicts (duplicate active loan).
	_, err = f.loans.Borrow(member, book.ID)
	assert.True(t, apperror.IsConflictError(err))

	// A different user conflicts too: no copies left.
	_, err = f.loans.Borrow(other, book.ID)
	assert.True(t, apperror.IsConflictError(err))

	// Return restores the copy.
	returned, err := f.loans.Return(member, ReturnRequest{LoanID: &loan.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, 1, f.availableCopies(t, book.ID))

	// The cycle can start again with a fresh loan record.
	again, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)
	assert.NotEqual(t, loan.ID, again.ID)
	assert.Equal(t, 0, f.availableCopies(t, book.ID))
}

func TestBorrow_UnknownBook(t *testing.T) {
	f := newFixture(t)
	_, err := f.loans.Borrow(member, 42)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReturn_ByBookID(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 2)

	_, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)

	returned, err := f.loans.Return(member, ReturnRequest{BookID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	assert.Equal(t, 2, f.availableCopies(t, book.ID))
}

func TestReturn_Errors(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 1)

	loan, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)

	// Neither loan_id nor book_id supplied.
	_, err = f.loans.Return(member, ReturnRequest{})
	assert.True(t, apperror.IsValidationError(err))

	// Another member can neither return by id nor resolve by book.
	_, err = f.loans.Return(other, ReturnRequest{LoanID: &loan.ID})
	assert.True(t, apperror.IsPermissionError(err))
	_, err = f.loans.Return(other, ReturnRequest{BookID: &book.ID})
	assert.True(t, apperror.IsNotFound(err), "no active loan for that user and book")

	// Staff may return on the borrower's behalf.
	returned, err := f.loans.Return(librarian, ReturnRequest{LoanID: &loan.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)

	// Returning twice conflicts.
	_, err = f.loans.Return(librarian, ReturnRequest{LoanID: &loan.ID})
	assert.True(t, apperror.IsConflictError(err))
}

func TestReturn_NeverExceedsTotalCopies(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 2)

	loan, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)

	// Staff adds stock while the copy is out; available reaches total.
	_, err = f.catalog.UpdateBook(librarian, book.ID, catalog.UpdateBookRequest{AvailableCopies: intPtr(2)})
	require.NoError(t, err)

	_, err = f.loans.Return(member, ReturnRequest{LoanID: &loan.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, f.availableCopies(t, book.ID), "available must stay capped at total")
}

func TestReturn_BookDeletedMeanwhile(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 1)

	loan, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeleteBook(librarian, book.ID))

	// The loan still completes; there is just no copy count to restore.
	returned, err := f.loans.Return(member, ReturnRequest{LoanID: &loan.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
}

func TestOverdue_DerivedAtReadTime(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.loans.now = func() time.Time { return now }

	loan, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)
	assert.False(t, loan.Overdue)

	// One day before due: not overdue.
	f.loans.now = func() time.Time { return now.Add(13 * 24 * time.Hour) }
	got, err := f.loans.Get(member, loan.ID)
	require.NoError(t, err)
	assert.False(t, got.Overdue)

	// One day past due: overdue, still BORROWED.
	f.loans.now = func() time.Time { return now.Add(15 * 24 * time.Hour) }
	got, err = f.loans.Get(member, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.Overdue)
	assert.Equal(t, StatusBorrowed, got.Status)

	// Returned loans are never overdue.
	_, err = f.loans.Return(member, ReturnRequest{LoanID: &loan.ID})
	require.NoError(t, err)
	got, err = f.loans.Get(member, loan.ID)
	require.NoError(t, err)
	assert.False(t, got.Overdue)
}

func TestListMine_IsScopedToCaller(t *testing.T) {
	f := newFixture(t)
	hobbit := f.addBook(t, "The Hobbit", 1)
	dune := f.addBook(t, "Dune", 1)

	_, err := f.loans.Borrow(member, hobbit.ID)
	require.NoError(t, err)
	_, err = f.loans.Borrow(other, dune.ID)
	require.NoError(t, err)

	page, err := f.loans.ListMine(member, ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, member.ID, page.Results[0].UserID)

	// A user_id filter cannot widen the scope past the caller.
	page, err = f.loans.ListMine(member, ListParams{UserID: &other.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, member.ID, page.Results[0].UserID)
}

func TestListAll_StaffOnlyWithFilters(t *testing.T) {
	f := newFixture(t)
	hobbit := f.addBook(t, "The Hobbit", 1)
	dune := f.addBook(t, "Dune", 1)

	first, err := f.loans.Borrow(member, hobbit.ID)
	require.NoError(t, err)
	_, err = f.loans.Borrow(other, dune.ID)
	require.NoError(t, err)
	_, err = f.loans.Return(member, ReturnRequest{LoanID: &first.ID})
	require.NoError(t, err)

	_, err = f.loans.ListAll(member, ListParams{Page: 1, PageSize: 10})
	assert.True(t, apperror.IsPermissionError(err))

	page, err := f.loans.ListAll(librarian, ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)

	page, err = f.loans.ListAll(librarian, ListParams{Status: "borrowed", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, other.ID, page.Results[0].UserID)

	page, err = f.loans.ListAll(librarian, ListParams{UserID: &member.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, StatusReturned, page.Results[0].Status)

	// Unknown status values are ignored rather than rejected.
	page, err = f.loans.ListAll(librarian, ListParams{Status: "lost", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
}

func TestGet_VisibleToBorrowerAndStaff(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 1)

	loan, err := f.loans.Borrow(member, book.ID)
	require.NoError(t, err)

	_, err = f.loans.Get(member, loan.ID)
	assert.NoError(t, err)
	_, err = f.loans.Get(librarian, loan.ID)
	assert.NoError(t, err)

	_, err = f.loans.Get(other, loan.ID)
	assert.True(t, apperror.IsPermissionError(err))

	_, err = f.loans.Get(member, 999)
	assert.True(t, apperror.IsNotFound(err))
}
