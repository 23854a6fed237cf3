package paginationutil

// Page describes the window [Start, End) taken out of Total items.
type Page struct {
	Start int
	End   int
	Total int
}

// More reports how many items follow the page.
func (p Page) More() int { return p.Total - p.End }

// Paginate returns items[offset:offset+limit] clamped to the slice bounds. A
// limit of 0 takes everything from offset on.
func Paginate[T any](items []T, offset, limit int) ([]T, Page) {
	total := len(items)
	start := min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return items[start:end], Page{Start: start, End: end, Total: total}
}
