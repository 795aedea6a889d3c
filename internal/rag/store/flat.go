package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var _ Index = (*FlatIndex)(nil)

// FlatIndex is an exact in-memory index under squared Euclidean distance.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry
	sealed  bool
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dim: dimension}
}

// FlatFactory is a Factory for FlatIndex.
func FlatFactory(_ context.Context, dimension int) (Index, error) {
	return NewFlatIndex(dimension), nil
}

// Add implements Index. Either every entry is appended or none is.
func (f *FlatIndex) Add(_ context.Context, entries ...Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sealed {
		return ErrSealed
	}
	for i, e := range entries {
		if len(e.Vector) != f.dim {
			return fmt.Errorf("entry %d has %d dimensions, index has %d: %w", i, len(e.Vector), f.dim, ErrDimensionMismatch)
		}
	}
	for _, e := range entries {
		f.entries = append(f.entries, Entry{
			Text:   e.Text,
			Vector: append([]float32(nil), e.Vector...),
		})
	}
	return nil
}

// Search implements Index.
func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	// 空索引不校验维度，任何查询都返回空结果。
	if len(f.entries) == 0 {
		return []Match{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(query), f.dim, ErrDimensionMismatch)
	}

	matches := make([]Match, len(f.entries))
	for i, e := range f.entries {
		matches[i] = Match{
			Position: i,
			Distance: SquaredL2(query, e.Vector),
			Text:     e.Text,
		}
	}

	// 稳定排序：距离相同时保持位置顺序。
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Get implements Index.
func (f *FlatIndex) Get(position int) (Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if position < 0 || position >= len(f.entries) {
		return Entry{}, fmt.Errorf("position %d of %d: %w", position, len(f.entries), ErrOutOfRange)
	}
	return f.entries[position], nil
}

// Len implements Index.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Dimension implements Index.
func (f *FlatIndex) Dimension() int {
	return f.dim
}

// Seal implements Index.
func (f *FlatIndex) Seal() {
	f.mu.Lock()
	f.sealed = true
	f.mu.Unlock()
}

// Close implements Index.
func (f *FlatIndex) Close(context.Context) error {
	return nil
}

// SquaredL2 returns the squared Euclidean distance between a and b.
// a and b must have the same length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
