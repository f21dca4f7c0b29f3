package feed

// Arrange permutes items so that, laid out row-major with gridWidth columns,
// no tile shares an author with its left or top neighbor, where the input
// makes that possible. It is pure and deterministic: the same input always
// produces the same output, and the input slice is never modified.
//
// Items are grouped into per-author queues that preserve the original order
// within each author. A rotating cursor walks the authors (in order of first
// appearance) and, for each grid position, picks the first author whose next
// item differs from both placed neighbors. When no author can satisfy the
// constraint — a single author dominating the tail is the common case — the
// first non-empty queue in rotation order is drained instead, so every item
// is always placed.
//
// A gridWidth below 1 is treated as 1.
func Arrange(items []Item, gridWidth int) []Item {
	if len(items) == 0 {
		return nil
	}
	if gridWidth < 1 {
		gridWidth = 1
	}

	// Stable per-author queues, authors in first-appearance order.
	var authors []string
	queues := make(map[string][]Item)
	for _, it := range items {
		if _, ok := queues[it.AuthorID]; !ok {
			authors = append(authors, it.AuthorID)
		}
		queues[it.AuthorID] = append(queues[it.AuthorID], it)
	}

	out := make([]Item, 0, len(items))
	cursor := 0

	for len(out) < len(items) {
		pos := len(out)
		left, top := neighbors(out, pos, gridWidth)

		picked := -1
		for i := 0; i < len(authors); i++ {
			idx := (cursor + i) % len(authors)
			a := authors[idx]
			if len(queues[a]) == 0 {
				continue
			}
			if a == left || a == top {
				continue
			}
			picked = idx
			break
		}

		if picked < 0 {
			// Constraint relaxation: take the first non-empty queue so the
			// arrangement always terminates.
			for i := 0; i < len(authors); i++ {
				idx := (cursor + i) % len(authors)
				if len(queues[authors[idx]]) > 0 {
					picked = idx
					break
				}
			}
		}

		a := authors[picked]
		out = append(out, queues[a][0])
		queues[a] = queues[a][1:]
		cursor = (picked + 1) % len(authors)
	}

	return out
}

// neighbors returns the author IDs already placed to the left of and above
// grid position pos. Empty string means no neighbor on that side.
func neighbors(placed []Item, pos, gridWidth int) (left, top string) {
	if pos%gridWidth > 0 {
		left = placed[pos-1].AuthorID
	}
	if pos >= gridWidth {
		top = placed[pos-gridWidth].AuthorID
	}
	return left, top
}
