// Package pagination provides page parameters, paged results and validated
// sort clauses for list queries.
package pagination

import (
	"math"
	"strconv"
	"strings"
)

// Page size bounds.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// MaxOffset bounds Offset so it never overflows and stays within what
// Postgres accepts.
const MaxOffset = math.MaxInt32

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// New creates a Pagination, falling back to page 1 and the default size.
// The size is capped at MaxPerPage and the page so that Offset stays within
// MaxOffset.
func New(page, perPage int) Pagination {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)
	page = max(page, 1)
	page = min(page, MaxOffset/perPage+1)
	return Pagination{Page: page, PerPage: perPage}
}

// FromQuery parses raw query values. Malformed values fall back to defaults.
func FromQuery(page, perPage string) Pagination {
	p, _ := strconv.Atoi(page)
	pp, _ := strconv.Atoi(perPage)
	return New(p, pp)
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the number of rows to return.
func (p Pagination) Limit() int {
	return p.PerPage
}

// Result is one page of a list.
type Result[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewResult wraps a page of data. A nil slice is returned as empty.
func NewResult[T any](data []T, total int64, p Pagination) Result[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if p.PerPage > 0 {
		totalPages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
	}
}

// SortOrder is a sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Sort is one ORDER BY term.
type Sort struct {
	Field string
	Order SortOrder
}

// SortOption is a sort request restricted to an allow-list of columns.
type SortOption struct {
	sorts         []Sort
	allowedFields map[string]string // request field -> column
}

// NewSortOption creates a SortOption accepting only allowedFields.
func NewSortOption(allowedFields map[string]string) *SortOption {
	return &SortOption{allowedFields: allowedFields}
}

// Parse reads a comma separated list such as "-occurred_at,action". A "-"
// prefix sorts descending. Unknown fields are dropped.
func (s *SortOption) Parse(raw string) *SortOption {
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		order := SortAsc
		switch {
		case strings.HasPrefix(part, "-"):
			order, part = SortDesc, part[1:]
		case strings.HasPrefix(part, "+"):
			part = part[1:]
		}
		if column, ok := s.allowedFields[part]; ok {
			s.sorts = append(s.sorts, Sort{Field: column, Order: order})
		}
	}
	return s
}

// Sorts returns the accepted sort terms.
func (s *SortOption) Sorts() []Sort {
	if s == nil {
		return nil
	}
	return s.sorts
}

// IsEmpty reports whether no term was accepted.
func (s *SortOption) IsEmpty() bool {
	return len(s.Sorts()) == 0
}

// SQL returns the ORDER BY terms without the keyword, e.g.
// "occurred_at DESC, action ASC".
func (s *SortOption) SQL() string {
	sorts := s.Sorts()
	parts := make([]string, len(sorts))
	for i, sort := range sorts {
		parts[i] = sort.Field + " " + string(sort.Order)
	}
	return strings.Join(parts, ", ")
}

// SQLWithDefault returns SQL, or defaultSort when no term was accepted.
func (s *SortOption) SQLWithDefault(defaultSort string) string {
	if sql := s.SQL(); sql != "" {
		return sql
	}
	return defaultSort
}
