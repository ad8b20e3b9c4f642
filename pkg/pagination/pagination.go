// Package pagination reads page/per_page query parameters and shapes list
// responses.
package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams is page 1 of DefaultPerPage rows.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Offset is the number of rows before the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest is FromQuery on the request URL.
func FromRequest(r *http.Request) Params {
	return FromQuery(r.URL.Query())
}

// FromQuery falls back to the defaults for anything that is not a positive
// integer and clamps per_page to MaxPerPage.
func FromQuery(q url.Values) Params {
	p := DefaultParams()
	if n, ok := positive(q.Get("page")); ok {
		p.Page = n
	}
	if n, ok := positive(q.Get("per_page")); ok {
		p.PerPage = min(n, MaxPerPage)
	}
	return p
}

func positive(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

// Result is one page of a list endpoint.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult builds the page for items out of total rows. Data is never
// null in JSON.
func NewResult[T any](items []T, total int, p Params) Result[T] {
	if items == nil {
		items = make([]T, 0)
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	pages := total / p.PerPage
	if total%p.PerPage != 0 {
		pages++
	}
	return Result[T]{
		Data:       items,
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
