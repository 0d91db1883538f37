package catalog

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/query"
	"github.com/user/libcat-go/store"
)

// Service implements author and book CRUD against the authors and books
// collections. Reads are public; writes require LIBRARIAN or ADMIN.
type Service struct {
	st      *store.Store
	authors *store.Collection[Author]
	books   *store.Collection[Book]
	log     *logrus.Logger
}

// NewService creates a new catalog Service.
func NewService(st *store.Store, log *logrus.Logger) *Service {
	return &Service{
		st:      st,
		authors: store.NewCollection[Author](st, "authors"),
		books:   store.NewCollection[Book](st, "books"),
		log:     log,
	}
}

// Books exposes the books collection for the loans service, which updates
// available-copy counts as part of borrow and return. Callers must hold the
// store lock.
func (s *Service) Books() *store.Collection[Book] { return s.books }

// ---- Authors ----

// ListAuthors returns one page of authors after search and ordering.
func (s *Service) ListAuthors(p AuthorListParams) (query.Page[Author], error) {
	s.st.RLock()
	defer s.st.RUnlock()

	authors, err := s.authors.Load()
	if err != nil {
		return query.Page[Author]{}, err
	}

	authors = query.Search(authors, p.Search, func(a Author) string { return a.Name })
	authors = query.Order(authors, p.Ordering, map[string]func(a, b Author) int{
		"id":   func(a, b Author) int { return a.ID - b.ID },
		"name": func(a, b Author) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) },
	})
	paged, meta := query.Paginate(authors, p.Page, p.PageSize)
	return query.NewPage(paged, meta), nil
}

// GetAuthor returns one author by id.
func (s *Service) GetAuthor(id int) (Author, error) {
	s.st.RLock()
	defer s.st.RUnlock()

	authors, err := s.authors.Load()
	if err != nil {
		return Author{}, err
	}
	for _, a := range authors {
		if a.ID == id {
			return a, nil
		}
	}
	return Author{}, apperror.NewNotFoundError("author not found", nil)
}

// CreateAuthor creates a new author. Staff only.
func (s *Service) CreateAuthor(user auth.User, req AuthorRequest) (Author, error) {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return Author{}, err
	}
	if req.Name == "" {
		return Author{}, apperror.NewValidationError("name is required", nil)
	}

	s.st.Lock()
	defer s.st.Unlock()

	authors, err := s.authors.Load()
	if err != nil {
		return Author{}, err
	}
	author := Author{ID: s.authors.NextID(authors), Name: req.Name}
	authors = append(authors, author)
	if err := s.authors.Save(authors); err != nil {
		return Author{}, err
	}

	s.log.WithFields(logrus.Fields{"author_id": author.ID, "by": user.ID}).Info("author created")
	return author, nil
}

// UpdateAuthor renames an author. An empty name keeps the current one.
// Staff only.
func (s *Service) UpdateAuthor(user auth.User, id int, req AuthorRequest) (Author, error) {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return Author{}, err
	}

	s.st.Lock()
	defer s.st.Unlock()

	authors, err := s.authors.Load()
	if err != nil {
		return Author{}, err
	}
	for i := range authors {
		if authors[i].ID != id {
			continue
		}
		if req.Name != "" {
			authors[i].Name = req.Name
			if err := s.authors.Save(authors); err != nil {
				return Author{}, err
			}
		}
		return authors[i], nil
	}
	return Author{}, apperror.NewNotFoundError("author not found", nil)
}

// DeleteAuthor removes an author. The reference from books is soft, so
// books pointing at the deleted author are left untouched. Staff only.
func (s *Service) DeleteAuthor(user auth.User, id int) error {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return err
	}

	s.st.Lock()
	defer s.st.Unlock()

	authors, err := s.authors.Load()
	if err != nil {
		return err
	}
	kept := authors[:0]
	found := false
	for _, a := range authors {
		if a.ID == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return apperror.NewNotFoundError("author not found", nil)
	}
	if err := s.authors.Save(kept); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"author_id": id, "by": user.ID}).Info("author deleted")
	return nil
}

// ---- Books ----

// bookOrderings are the comparators recognised by the book list's
// "ordering" parameter; any other field name passes the order through.
var bookOrderings = map[string]func(a, b Book) int{
	"id":               func(a, b Book) int { return a.ID - b.ID },
	"title":            func(a, b Book) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) },
	"publication_year": func(a, b Book) int { return a.PublicationYear - b.PublicationYear },
	"author":           func(a, b Book) int { return a.AuthorID - b.AuthorID },
}

// ListBooks returns one page of books after search, filters and ordering.
// The search term matches the book title or the resolved author name.
func (s *Service) ListBooks(p BookListParams) (query.Page[Book], error) {
	s.st.RLock()
	defer s.st.RUnlock()

	books, err := s.books.Load()
	if err != nil {
		return query.Page[Book]{}, err
	}
	authors, err := s.authors.Load()
	if err != nil {
		return query.Page[Book]{}, err
	}
	authorNames := make(map[int]string, len(authors))
	for _, a := range authors {
		authorNames[a.ID] = a.Name
	}

	books = query.Search(books, p.Search,
		func(b Book) string { return b.Title },
		func(b Book) string { return authorNames[b.AuthorID] },
	)
	if p.AuthorID != nil {
		books = query.Filter(books, func(b Book) bool { return b.AuthorID == *p.AuthorID })
	}
	if p.PublicationYear != nil {
		books = query.Filter(books, func(b Book) bool { return b.PublicationYear == *p.PublicationYear })
	}
	books = query.Order(books, p.Ordering, bookOrderings)
	paged, meta := query.Paginate(books, p.Page, p.PageSize)
	return query.NewPage(paged, meta), nil
}

// GetBook returns one book by id.
func (s *Service) GetBook(id int) (Book, error) {
	s.st.RLock()
	defer s.st.RUnlock()

	books, err := s.books.Load()
	if err != nil {
		return Book{}, err
	}
	for _, b := range books {
		if b.ID == id {
			return b, nil
		}
	}
	return Book{}, apperror.NewNotFoundError("book not found", nil)
}

// CreateBook creates a new book. The referenced author must exist and the
// copy counts must satisfy 0 <= available <= total. Staff only.
func (s *Service) CreateBook(user auth.User, req CreateBookRequest) (Book, error) {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return Book{}, err
	}
	if req.Title == "" || req.ISBN == "" || req.PublicationYear == nil || req.AuthorID == nil || req.TotalCopies == nil {
		return Book{}, apperror.NewValidationError("title, publication_year, isbn, author and total_copies are required", nil)
	}
	total := *req.TotalCopies
	if total < 0 {
		return Book{}, apperror.NewValidationError("total_copies must not be negative", nil)
	}
	available := total
	if req.AvailableCopies != nil {
		available = *req.AvailableCopies
	}
	if available < 0 || available > total {
		return Book{}, apperror.NewValidationError("available_copies must be between 0 and total_copies", nil)
	}

	s.st.Lock()
	defer s.st.Unlock()

	authors, err := s.authors.Load()
	if err != nil {
		return Book{}, err
	}
	if !authorExists(authors, *req.AuthorID) {
		return Book{}, apperror.NewValidationError("author not found", nil)
	}

	books, err := s.books.Load()
	if err != nil {
		return Book{}, err
	}
	book := Book{
		ID:              s.books.NextID(books),
		Title:           req.Title,
		PublicationYear: *req.PublicationYear,
		ISBN:            req.ISBN,
		AuthorID:        *req.AuthorID,
		TotalCopies:     total,
		AvailableCopies: available,
	}
	books = append(books, book)
	if err := s.books.Save(books); err != nil {
		return Book{}, err
	}

	s.log.WithFields(logrus.Fields{"book_id": book.ID, "by": user.ID}).Info("book created")
	return book, nil
}

// UpdateBook applies a partial update. Changing total_copies moves
// available_copies by the same delta so the number of copies on loan is
// preserved; a reduction that would push available_copies below zero is
// rejected rather than clamped. Staff only.
func (s *Service) UpdateBook(user auth.User, id int, req UpdateBookRequest) (Book, error) {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return Book{}, err
	}

	s.st.Lock()
	defer s.st.Unlock()

	books, err := s.books.Load()
	if err != nil {
		return Book{}, err
	}
	idx := -1
	for i := range books {
		if books[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Book{}, apperror.NewNotFoundError("book not found", nil)
	}
	book := books[idx]

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.PublicationYear != nil {
		book.PublicationYear = *req.PublicationYear
	}
	if req.ISBN != nil {
		book.ISBN = *req.ISBN
	}
	if req.AuthorID != nil {
		authors, err := s.authors.Load()
		if err != nil {
			return Book{}, err
		}
		if !authorExists(authors, *req.AuthorID) {
			return Book{}, apperror.NewValidationError("author not found", nil)
		}
		book.AuthorID = *req.AuthorID
	}
	if req.TotalCopies != nil {
		newTotal := *req.TotalCopies
		if newTotal < 0 {
			return Book{}, apperror.NewValidationError("total_copies must not be negative", nil)
		}
		diff := newTotal - book.TotalCopies
		if book.AvailableCopies+diff < 0 {
			return Book{}, apperror.NewValidationError("cannot reduce total_copies below the number of copies on loan", nil)
		}
		book.TotalCopies = newTotal
		book.AvailableCopies += diff
	}
	if req.AvailableCopies != nil {
		if *req.AvailableCopies < 0 || *req.AvailableCopies > book.TotalCopies {
			return Book{}, apperror.NewValidationError("available_copies must be between 0 and total_copies", nil)
		}
		book.AvailableCopies = *req.AvailableCopies
	}

	books[idx] = book
	if err := s.books.Save(books); err != nil {
		return Book{}, err
	}

	s.log.WithFields(logrus.Fields{"book_id": book.ID, "by": user.ID}).Info("book updated")
	return book, nil
}

// DeleteBook removes a book. Loans referencing it are left in place; a later
// return of such a loan simply has no copy count to restore. Staff only.
func (s *Service) DeleteBook(user auth.User, id int) error {
	if err := auth.Authorize(user, auth.RoleLibrarian, auth.RoleAdmin); err != nil {
		return err
	}

	s.st.Lock()
	defer s.st.Unlock()

	books, err := s.books.Load()
	if err != nil {
		return err
	}
	kept := books[:0]
	found := false
	for _, b := range books {
		if b.ID == id {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return apperror.NewNotFoundError("book not found", nil)
	}
	if err := s.books.Save(kept); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"book_id": id, "by": user.ID}).Info("book deleted")
	return nil
}

func authorExists(authors []Author, id int) bool {
	for _, a := range authors {
		if a.ID == id {
			return true
		}
	}
	return false
}
