// Package pagination turns ordered listings into page windows. Ordering is
// always established upstream; this package only performs windowing.
package pagination

// DefaultPerPage is used when a request does not specify a page size.
const DefaultPerPage = 25

// MaxPerPage bounds response size; larger requests are clamped, not rejected.
const MaxPerPage = 100

// Params describes a requested window over an ordered listing.
type Params struct {
	Page    int
	PerPage int
}

// Normalize clamps the parameters into valid bounds. Page is 1-based.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the zero-based element offset of the window start.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// Page describes the returned window of an ordered listing.
type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// Paginate windows items by params. Out-of-range pages yield an empty
// window with the correct total, never an error.
func Paginate[T any](items []T, params Params) ([]T, Page) {
	params = params.Normalize()
	page := Page{Page: params.Page, PerPage: params.PerPage, Total: len(items)}

	start := params.Offset()
	if start >= len(items) {
		return []T{}, page
	}
	end := start + params.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page
}

// PageFor builds page metadata for a store-side windowed query, where the
// store applied LIMIT/OFFSET and reported the unwindowed total.
func PageFor(params Params, total int) Page {
	params = params.Normalize()
	return Page{Page: params.Page, PerPage: params.PerPage, Total: total}
}
