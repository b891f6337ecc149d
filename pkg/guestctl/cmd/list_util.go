package cmd

import "fmt"

// paginate returns one page of items and a footer describing the position. A
// non-positive page size or all disables paging.
func paginate[T any](items []T, page, pageSize int, all bool) ([]T, string) {
	if all || pageSize <= 0 {
		return items, ""
	}
	page = max(page, 1)
	footer := fmt.Sprintf("Page %d of %d (%d jobs); use --page N or --all", page, pageCount(len(items), pageSize), len(items))
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}, footer
	}
	end := min(start+pageSize, len(items))
	return items[start:end], footer
}

func pageCount(total, pageSize int) int {
	if pageSize <= 0 || total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
