package catalog_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/catalog"
	"github.com/user/libcat-go/config"
	"github.com/user/libcat-go/store"
)

// newServer assembles the catalogue routes the way main wires them: reads
// are public, writes sit behind the token middleware.
func newServer(t *testing.T) (*httptest.Server, *auth.Service, *catalog.Service) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)

	authSvc := auth.NewService(st, config.AuthConfig{BcryptCost: 4}, log)
	catSvc := catalog.NewService(st, log)
	h := catalog.NewHandlers(catSvc, config.QueryConfig{DefaultPageSize: 10, MaxPageSize: 100})

	requireToken := auth.TokenMiddleware(authSvc)
	optionalToken := auth.OptionalTokenMiddleware(authSvc)

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Route("/api", func(r chi.Router) {
		r.Route("/authors", func(r chi.Router) {
			r.With(optionalToken).Get("/", h.HandleListAuthors())
			r.With(optionalToken).Get("/{id}", h.HandleGetAuthor())
			r.Group(func(r chi.Router) {
				r.Use(requireToken)
				r.Post("/", h.HandleCreateAuthor())
				r.Put("/{id}", h.HandleUpdateAuthor())
				r.Delete("/{id}", h.HandleDeleteAuthor())
			})
		})
		r.Route("/books", func(r chi.Router) {
			r.With(optionalToken).Get("/", h.HandleListBooks())
			r.With(optionalToken).Get("/{id}", h.HandleGetBook())
			r.Group(func(r chi.Router) {
				r.Use(requireToken)
				r.Post("/", h.HandleCreateBook())
				r.Put("/{id}", h.HandleUpdateBook())
				r.Delete("/{id}", h.HandleDeleteBook())
			})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, authSvc, catSvc
}

// tokenFor registers a user with the given role and logs them in.
func tokenFor(t *testing.T, svc *auth.Service, username string, role auth.Role) string {
	t.Helper()
	_, err := svc.Register(auth.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
		Role:     string(role),
	})
	require.NoError(t, err)
	resp, err := svc.Login(auth.LoginRequest{Username: username, Password: "secret123"})
	require.NoError(t, err)
	return resp.Token
}

func doJSON(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBookSearch_AnonymousWithPagination(t *testing.T) {
	srv, _, catSvc := newServer(t)

	librarian := auth.User{ID: 99, Role: auth.RoleLibrarian}
	tolkien, err := catSvc.CreateAuthor(librarian, catalog.AuthorRequest{Name: "J.R.R. Tolkien"})
	require.NoError(t, err)
	herbert, err := catSvc.CreateAuthor(librarian, catalog.AuthorRequest{Name: "Frank Herbert"})
	require.NoError(t, err)

	year := 1954
	one, two, three := 1, 1, 1
	for _, b := range []catalog.CreateBookRequest{
		{Title: "The Fellowship of the Ring", PublicationYear: &year, ISBN: "isbn-1", AuthorID: &tolkien.ID, TotalCopies: &one},
		{Title: "The Two Towers", PublicationYear: &year, ISBN: "isbn-2", AuthorID: &tolkien.ID, TotalCopies: &two},
		{Title: "The Return of the King", PublicationYear: &year, ISBN: "isbn-3", AuthorID: &tolkien.ID, TotalCopies: &three},
		{Title: "Dune", PublicationYear: &year, ISBN: "isbn-4", AuthorID: &herbert.ID, TotalCopies: &one},
	} {
		_, err := catSvc.CreateBook(librarian, b)
		require.NoError(t, err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/books/?search=Tolkien&page=1&page_size=2", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Results []catalog.Book `json:"results"`
		Count   int            `json:"count"`
		Page    int            `json:"page"`
		Pages   int            `json:"total_pages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "The Fellowship of the Ring", page.Results[0].Title)
	assert.Equal(t, "The Two Towers", page.Results[1].Title)
}

func TestAuthorWrite_RequiresStaff(t *testing.T) {
	srv, authSvc, _ := newServer(t)
	body := `{"name": "Ursula K. Le Guin"}`

	// No token at all: 401 with the error envelope.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/authors/", "", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var envelope struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.NotEmpty(t, envelope.Error)

	// A garbage token: also 401.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/authors/", "not-a-token", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// An authenticated member: 403, not 401.
	memberToken := tokenFor(t, authSvc, "reader", auth.RoleMember)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/authors/", memberToken, body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A librarian succeeds.
	staffToken := tokenFor(t, authSvc, "curator", auth.RoleLibrarian)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/authors/", staffToken, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var author catalog.Author
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&author))
	assert.Equal(t, "Ursula K. Le Guin", author.Name)
	assert.NotZero(t, author.ID)
}

func TestTrailingSlash_BothFormsRoute(t *testing.T) {
	srv, _, catSvc := newServer(t)
	librarian := auth.User{ID: 99, Role: auth.RoleLibrarian}
	author, err := catSvc.CreateAuthor(librarian, catalog.AuthorRequest{Name: "Octavia Butler"})
	require.NoError(t, err)

	for _, url := range []string{
		srv.URL + "/api/authors/",
		srv.URL + "/api/authors",
		srv.URL + "/api/authors/" + strconv.Itoa(author.ID) + "/",
		srv.URL + "/api/authors/" + strconv.Itoa(author.ID),
	} {
		resp := doJSON(t, http.MethodGet, url, "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, url)
	}
}

func TestGetBook_BadAndMissingIDs(t *testing.T) {
	srv, _, _ := newServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/books/not-a-number", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/books/12345", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
