package feed

import "sort"

// Entry is one cached item placed in the window.
type Entry[T any] struct {
	Position int64
	Key      string
	Value    T
}

// Boundaries are the loaded cursors of a window. Known is false until the
// first successful merge.
type Boundaries struct {
	Highest int64
	Lowest  int64
	Known   bool
}

// Window is an ordered, deduplicated cache of entries, newest first.
// It is not safe for concurrent use; an Engine serializes all access.
type Window[T any] struct {
	entries []Entry[T]
	keys    map[string]struct{}
	bounds  Boundaries
}

// NewWindow creates an empty window.
func NewWindow[T any]() *Window[T] {
	return &Window[T]{keys: make(map[string]struct{})}
}

// Merge inserts entries at the head or the tail and returns how many were added.
//
// Entries with an empty key, a key already cached or a key repeated in the batch
// are dropped. Head entries must sit strictly above Highest and tail entries
// strictly below Lowest; anything else is dropped so existing items never move.
func (w *Window[T]) Merge(batch []Entry[T], dir Direction) int {
	if len(batch) == 0 {
		return 0
	}

	sorted := make([]Entry[T], len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position > sorted[j].Position
	})

	accepted := make([]Entry[T], 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, e := range sorted {
		if e.Key == "" {
			continue
		}
		if _, ok := w.keys[e.Key]; ok {
			continue
		}
		if _, ok := seen[e.Key]; ok {
			continue
		}
		if w.bounds.Known {
			if dir == Head && e.Position <= w.bounds.Highest {
				continue
			}
			if dir == Tail && e.Position >= w.bounds.Lowest {
				continue
			}
		}
		// Strictly descending: equal positions in one batch keep the first.
		if n := len(accepted); n > 0 && accepted[n-1].Position == e.Position {
			continue
		}
		seen[e.Key] = struct{}{}
		accepted = append(accepted, e)
	}
	if len(accepted) == 0 {
		return 0
	}

	for _, e := range accepted {
		w.keys[e.Key] = struct{}{}
	}

	top, bottom := accepted[0].Position, accepted[len(accepted)-1].Position
	switch {
	case !w.bounds.Known:
		w.entries = accepted
		w.bounds = Boundaries{Highest: top, Lowest: bottom, Known: true}
	case dir == Head:
		w.entries = append(accepted, w.entries...)
		w.bounds.Highest = top
	default:
		w.entries = append(w.entries, accepted...)
		w.bounds.Lowest = bottom
	}
	return len(accepted)
}

// Items returns a copy of the cached entries, newest first.
func (w *Window[T]) Items() []Entry[T] {
	out := make([]Entry[T], len(w.entries))
	copy(out, w.entries)
	return out
}

// Boundaries returns the loaded cursors.
func (w *Window[T]) Boundaries() Boundaries {
	return w.bounds
}

// Contains reports whether key is cached.
func (w *Window[T]) Contains(key string) bool {
	_, ok := w.keys[key]
	return ok
}

// Len returns the number of cached entries.
func (w *Window[T]) Len() int {
	return len(w.entries)
}
