package query

import (
	"net/url"
	"strconv"
	"strings"
)

// PageParams reads the 1-indexed "page" and "page_size" query parameters,
// applying the configured default and cap. Unparseable values fall back to
// the defaults; they are never an error.
func PageParams(q url.Values, defaultSize, maxSize int) (page, pageSize int) {
	page = 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	pageSize = defaultSize
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}

// IntFilter reads an integer query parameter. The second return value is
// false when the parameter is absent or unparseable, in which case the
// filter is simply not applied.
func IntFilter(q url.Values, key string) (int, bool) {
	raw := q.Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BoolFilter reports whether a query parameter is set to "true",
// case-insensitively. Anything else counts as false.
func BoolFilter(q url.Values, key string) bool {
	return strings.EqualFold(q.Get(key), "true")
}
