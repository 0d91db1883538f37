// Data transfer objects for the catalogue endpoints.
package catalog

// AuthorRequest is the payload for creating or updating an author.
type AuthorRequest struct {
	Name string `json:"name" example:"J.R.R. Tolkien"`
}

// CreateBookRequest is the payload for creating a book. AvailableCopies is
// optional and defaults to TotalCopies.
type CreateBookRequest struct {
	Title           string `json:"title" example:"The Hobbit"`
	PublicationYear *int   `json:"publication_year" example:"1937"`
	ISBN            string `json:"isbn" example:"978-0-261-10221-7"`
	AuthorID        *int   `json:"author" example:"1"`
	TotalCopies     *int   `json:"total_copies" example:"3"`
	AvailableCopies *int   `json:"available_copies,omitempty" example:"3"`
}

// UpdateBookRequest is the payload for a partial or full book update.
// Nil fields are left unchanged.
type UpdateBookRequest struct {
	Title           *string `json:"title,omitempty"`
	PublicationYear *int    `json:"publication_year,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	AuthorID        *int    `json:"author,omitempty"`
	TotalCopies     *int    `json:"total_copies,omitempty"`
	AvailableCopies *int    `json:"available_copies,omitempty"`
}

// AuthorListParams are the recognised query parameters for the author list.
type AuthorListParams struct {
	Search   string
	Ordering string
	Page     int
	PageSize int
}

// BookListParams are the recognised query parameters for the book list.
type BookListParams struct {
	Search          string
	Ordering        string
	Page            int
	PageSize        int
	AuthorID        *int
	PublicationYear *int
}
