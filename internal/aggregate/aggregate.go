// Package aggregate merges per-item conversion outcomes into one view and
// derives the overall session phase from it.
package aggregate

import "converter/internal/domain"

// Counts summarizes a result set.
type Counts struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Seed returns one pending item per url, index-aligned with urls.
func Seed(urls []string) []domain.ResultItem {
	items := make([]domain.ResultItem, len(urls))
	for i, u := range urls {
		items[i] = domain.ResultItem{SourceURL: u, Status: domain.ItemStatusPending}
	}
	return items
}

// Merge matches incoming to existing by position. A terminal incoming item
// replaces the existing one; a pending incoming item never regresses a terminal
// one. Neither slice is modified.
func Merge(existing, incoming []domain.ResultItem) []domain.ResultItem {
	n := len(existing)
	if len(incoming) > n {
		n = len(incoming)
	}
	out := make([]domain.ResultItem, n)
	copy(out, existing)
	for i, in := range incoming {
		if i >= len(existing) {
			out[i] = in
			continue
		}
		out[i] = mergeItem(out[i], in)
	}
	return out
}

func mergeItem(cur, in domain.ResultItem) domain.ResultItem {
	if in.Status.IsTerminal() {
		if in.SourceURL == "" {
			in.SourceURL = cur.SourceURL
		}
		if in.Title == "" {
			in.Title = cur.Title
		}
		return in
	}
	if cur.Status.IsTerminal() {
		return cur
	}
	if cur.Title == "" {
		cur.Title = in.Title
	}
	if cur.SourceURL == "" {
		cur.SourceURL = in.SourceURL
	}
	return cur
}

// Align reorders incoming to follow urls when every incoming item echoes a
// distinct source url from the request. Otherwise incoming is returned as is
// and positional matching applies.
func Align(urls []string, incoming []domain.ResultItem) []domain.ResultItem {
	if len(incoming) != len(urls) {
		return incoming
	}
	index := make(map[string]int, len(urls))
	for i, u := range urls {
		if _, dup := index[u]; dup {
			return incoming
		}
		index[u] = i
	}
	out := make([]domain.ResultItem, len(urls))
	seen := make([]bool, len(urls))
	for _, item := range incoming {
		pos, ok := index[item.SourceURL]
		if !ok || seen[pos] {
			return incoming
		}
		seen[pos] = true
		out[pos] = item
	}
	return out
}

// DerivePhase maps a result set onto the session phase.
func DerivePhase(items []domain.ResultItem) domain.Phase {
	c := Summary(items)
	switch {
	case c.Total == 0 || c.Pending > 0:
		return domain.PhasePolling
	case c.Failed > 0:
		return domain.PhasePartiallyFailed
	default:
		return domain.PhaseSucceeded
	}
}

// Summary counts items per status.
func Summary(items []domain.ResultItem) Counts {
	c := Counts{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case domain.ItemStatusSuccess:
			c.Succeeded++
		case domain.ItemStatusFailed:
			c.Failed++
		default:
			c.Pending++
		}
	}
	return c
}
