package handlers

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v3"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// customerSortColumns lists the sortable customer fields; the first is the
// fallback.
var customerSortColumns = []string{"join_date", "name", "email", "total_spend", "last_seen"}

// PageQuery is the parsed ?page=&per=&sort_by=&sort_order= window.
type PageQuery struct {
	Page  int
	Per   int
	Sort  string
	Order SortDirection
}

// PageMeta describes where a page sits in the full listing.
type PageMeta struct {
	Page       int   `json:"page"`
	Per        int   `json:"per"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// Page is one window of a listing.
type Page[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageMeta `json:"pagination"`
}

// ParsePageQuery reads the paging window from c. Out-of-range values are
// clamped; a sort column outside sortable falls back to its first entry.
// A nil sortable accepts any column.
func ParsePageQuery(c fiber.Ctx, sortable []string) PageQuery {
	q := PageQuery{
		Page:  max(fiber.Query[int](c, "page", 1), 1),
		Per:   min(max(fiber.Query[int](c, "per", defaultPerPage), 1), maxPerPage),
		Sort:  strings.ToLower(strings.TrimSpace(c.Query("sort_by"))),
		Order: SortDirection(strings.ToLower(c.Query("sort_order"))),
	}
	if q.Order != SortAsc {
		q.Order = SortDesc
	}
	if sortable != nil && !slices.Contains(sortable, q.Sort) {
		q.Sort = sortable[0]
	}
	return q
}

// Offset is the index of the first item on the page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Per
}

// Meta computes page metadata for a listing of total items.
func (q PageQuery) Meta(total int64) PageMeta {
	meta := PageMeta{Page: q.Page, Per: q.Per, Total: total}
	if total > 0 && q.Per > 0 {
		meta.TotalPages = int((total + int64(q.Per) - 1) / int64(q.Per))
	}
	meta.HasMore = q.Page < meta.TotalPages
	return meta
}

// Paginate slices items down to the window q selects. A page past the end
// is empty, not an error.
func Paginate[T any](items []T, q PageQuery) Page[T] {
	start := min(q.Offset(), len(items))
	end := min(start+q.Per, len(items))
	return Page[T]{
		Data:       items[start:end:end],
		Pagination: q.Meta(int64(len(items))),
	}
}
