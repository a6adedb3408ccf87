package httpapi

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type OffsetPage[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// parsePage reads page and page_size. ok is false when the request did not
// ask for paging at all.
func parsePage(r *http.Request) (page, pageSize int, ok bool) {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("page_size") {
		return 0, 0, false
	}

	page, _ = strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize, true
}

func paginate[T any](items []T, page, pageSize int) OffsetPage[T] {
	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize

	// Pages past the end are empty. The offset is only computed for pages
	// that exist, so it cannot overflow.
	start := total
	if page-1 < totalPages {
		start = (page - 1) * pageSize
	}
	end := min(start+pageSize, total)

	window := items[start:end]
	if window == nil {
		window = []T{}
	}

	return OffsetPage[T]{
		Items:      window,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
