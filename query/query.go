// Package query provides generic search, filter, order and paginate helpers
// applied to in-memory collections after they are loaded from the store.
// All helpers preserve the original record order unless an explicit ordering
// is requested, and none of them ever fails: bad input degrades to the
// identity transformation or an empty page.
package query

import (
	"sort"
	"strings"
)

// Search returns the records whose selected string fields contain term,
// case-insensitively, preserving the input order. An empty term matches
// everything.
func Search[T any](items []T, term string, fields ...func(T) string) []T {
	if term == "" {
		return items
	}
	needle := strings.ToLower(term)
	var out []T
	for _, it := range items {
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field(it)), needle) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Filter returns the records for which keep is true, preserving order.
func Filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Order sorts items by the named field using the comparator map. A leading
// "-" on ordering selects descending order. The sort is stable.
//
// Contract: an unknown (or empty) field name is ignored and the input order
// is passed through unchanged; it is never an error.
func Order[T any](items []T, ordering string, cmps map[string]func(a, b T) int) []T {
	if ordering == "" {
		return items
	}
	field := ordering
	descending := false
	if strings.HasPrefix(ordering, "-") {
		descending = true
		field = ordering[1:]
	}
	cmp, ok := cmps[field]
	if !ok {
		return items
	}

	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return cmp(out[i], out[j]) > 0
		}
		return cmp(out[i], out[j]) < 0
	})
	return out
}

// Pagination carries page metadata returned alongside every list response.
type Pagination struct {
	Count      int `json:"count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns the 1-indexed page of items of size pageSize, clipped to
// bounds. A page beyond the end yields an empty (non-nil) slice, never an
// error. Page and pageSize values below 1 are clamped to 1.
func Paginate[T any](items []T, page, pageSize int) ([]T, Pagination) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	paged := make([]T, end-start)
	copy(paged, items[start:end])

	return paged, Pagination{
		Count:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// Page is the JSON envelope for paginated list responses.
type Page[T any] struct {
	Results    []T `json:"results"`
	Count      int `json:"count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPage assembles a Page envelope from a paginated slice and its metadata.
func NewPage[T any](results []T, p Pagination) Page[T] {
	if results == nil {
		results = []T{}
	}
	return Page[T]{
		Results:    results,
		Count:      p.Count,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}
