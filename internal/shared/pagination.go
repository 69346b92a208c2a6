package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata, clamping page and page size.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)
	if page <= 0 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PaginationFromQuery reads page and per_page; malformed values fall back to defaults.
func PaginationFromQuery(q url.Values, total int) Pagination {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return NewPagination(page, perPage, total)
}

// Bounds returns the half-open slice window of the current page.
func (p Pagination) Bounds() (start, end int) {
	start = min((p.Page-1)*p.PerPage, p.Total)
	end = min(start+p.PerPage, p.Total)
	return start, end
}
