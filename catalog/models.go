// Package catalog manages the library catalogue: authors and the books that
// reference them, with role-gated writes and public reads.
package catalog

// Author represents an author of one or more books. Books reference authors
// by id; the reference is soft, so deleting an author leaves its books in
// place.
type Author struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RecordID implements store.Record.
func (a Author) RecordID() int { return a.ID }

// Book represents a book in the library.
//
// Invariant: 0 <= AvailableCopies <= TotalCopies at all times. The loans
// service decrements AvailableCopies on borrow and increments it on return;
// catalogue updates that would break the invariant are rejected.
type Book struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	PublicationYear int    `json:"publication_year"`
	ISBN            string `json:"isbn"`
	AuthorID        int    `json:"author_id"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// RecordID implements store.Record.
func (b Book) RecordID() int { return b.ID }
