package domain

import "strings"

// Paging defaults.
const (
	DefaultPageSize   = 20
	MaxPageSize       = 100
	ReviewsPageSize   = 10
	AnyCategory       = "all"
	maxSearchTermSize = 200
)

// SearchFilter narrows a directory search. Empty fields match everything.
// City, state and minority type match exactly, ignoring case. Term matches
// name, description or category as a substring.
type SearchFilter struct {
	City         string `validate:"max=100"`
	State        string `validate:"max=50"`
	Category     string `validate:"max=100"`
	MinorityType string `validate:"max=100"`
	Term         string `validate:"max=200"`
	Page         int    `validate:"gte=0"`
	PerPage      int    `validate:"gte=0"`
}

// Normalize trims fields, maps the "all" category to no filter and clamps
// paging.
func (f SearchFilter) Normalize() SearchFilter {
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.Category = strings.TrimSpace(f.Category)
	f.MinorityType = strings.TrimSpace(f.MinorityType)
	f.Term = strings.TrimSpace(f.Term)
	if len(f.Term) > maxSearchTermSize {
		f.Term = f.Term[:maxSearchTermSize]
	}
	if strings.EqualFold(f.Category, AnyCategory) {
		f.Category = ""
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PerPage <= 0:
		f.PerPage = DefaultPageSize
	case f.PerPage > MaxPageSize:
		f.PerPage = MaxPageSize
	}
	return f
}

// Offset is the number of rows before the page.
func (f SearchFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Page is one page of results.
type Page[T any] struct {
	Items   []T
	Total   int
	Page    int
	PerPage int
}

// Pages is the page count, at least 1 when there are results.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasNext reports whether another page follows.
func (p Page[T]) HasNext() bool {
	return p.Page < p.Pages()
}

// CityState is a distinct listing location.
type CityState struct {
	City  string
	State string
}

// String formats the location as "City, ST".
func (c CityState) String() string {
	return c.City + ", " + c.State
}
