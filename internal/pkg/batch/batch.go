// Package batch splits slices into size-bounded pages.
package batch

// Split returns consecutive sub-slices of items holding at most size elements
// each. The sub-slices share the backing array of items. A size below 1 yields
// a single page with every item.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 || size >= len(items) {
		return [][]T{items}
	}
	pages := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		pages = append(pages, items[start:end:end])
	}
	return pages
}

// Unique returns items without repeats, keeping first-seen order.
func Unique[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
