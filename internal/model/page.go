package model

// Pagination limits for list endpoints.
const (
	DefaultPerPage = 10
	MaxPerPage     = 50
)

// Pagination describes one page of a listing.
type Pagination struct {
	Total        int64 `json:"total"`
	Pages        int   `json:"pages"`
	CurrentPage  int   `json:"currentPage"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// ClampPage normalizes a requested page and page size: page is at least 1
// and perPage is kept within [1, MaxPerPage].  A zero perPage means the
// caller did not ask for a size and DefaultPerPage is used.
func ClampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Offset returns the number of rows to skip for page.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}

// NewPagination computes the page count for total items.
func NewPagination(total int64, page, perPage int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Pagination{Total: total, Pages: pages, CurrentPage: page, ItemsPerPage: perPage}
}
