package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/pkg/component/milvus"
)

// MilvusBackend 是 MilvusIndex 依赖的最小客户端接口，*milvus.Client 满足该接口。
type MilvusBackend interface {
	RecreateCollection(ctx context.Context, name string, dimension int) error
	Insert(ctx context.Context, collection string, positions []int64, contents []string, vectors [][]float32) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]milvus.Hit, error)
	DropCollection(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

var _ MilvusBackend = (*milvus.Client)(nil)

var _ Index = (*MilvusIndex)(nil)

// MilvusIndex stores vectors in a Milvus collection with a FLAT/L2 index.
// Passage texts and vectors are also kept in memory so Get never round-trips.
type MilvusIndex struct {
	mu         sync.RWMutex
	backend    MilvusBackend
	collection string
	dim        int
	entries    []Entry
	sealed     bool
	// dropOnClose 关闭时删除集合。
	dropOnClose bool
}

// NewMilvusIndex recreates collection on backend and returns an empty index.
// Any collection left over from a previous run is dropped.
func NewMilvusIndex(ctx context.Context, backend MilvusBackend, collection string, dimension int) (*MilvusIndex, error) {
	if backend == nil {
		return nil, fmt.Errorf("milvus backend is nil")
	}
	if err := backend.RecreateCollection(ctx, collection, dimension); err != nil {
		return nil, err
	}

	logger.Infow("Milvus collection ready",
		"collection", collection,
		"dimension", dimension,
	)

	return &MilvusIndex{
		backend:    backend,
		collection: collection,
		dim:        dimension,
	}, nil
}

// MilvusFactory returns a Factory that builds MilvusIndex instances on backend.
func MilvusFactory(backend MilvusBackend, collection string) Factory {
	return func(ctx context.Context, dimension int) (Index, error) {
		return NewMilvusIndex(ctx, backend, collection, dimension)
	}
}

// Add implements Index.
func (m *MilvusIndex) Add(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return ErrSealed
	}

	base := len(m.entries)
	positions := make([]int64, len(entries))
	contents := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		if len(e.Vector) != m.dim {
			return fmt.Errorf("entry %d has %d dimensions, index has %d: %w", i, len(e.Vector), m.dim, ErrDimensionMismatch)
		}
		positions[i] = int64(base + i)
		contents[i] = e.Text
		vectors[i] = append([]float32(nil), e.Vector...)
	}

	if err := m.backend.Insert(ctx, m.collection, positions, contents, vectors); err != nil {
		return err
	}

	for i := range entries {
		m.entries = append(m.entries, Entry{Text: contents[i], Vector: vectors[i]})
	}
	return nil
}

// Search implements Index. Hits are re-ordered by (distance, position) so
// ties resolve the same way as FlatIndex.
func (m *MilvusIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if n == 0 {
		return []Match{}, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(query), m.dim, ErrDimensionMismatch)
	}
	if k > n {
		k = n
	}

	hits, err := m.backend.Search(ctx, m.collection, query, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		pos := int(h.Position)
		if pos < 0 || pos >= n {
			return nil, fmt.Errorf("milvus returned position %d of %d: %w", pos, n, ErrOutOfRange)
		}
		matches = append(matches, Match{
			Position: pos,
			Distance: h.Distance,
			Text:     m.entries[pos].Text,
		})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Distance != matches[b].Distance {
			return matches[a].Distance < matches[b].Distance
		}
		return matches[a].Position < matches[b].Position
	})
	return matches, nil
}

// Get implements Index.
func (m *MilvusIndex) Get(position int) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if position < 0 || position >= len(m.entries) {
		return Entry{}, fmt.Errorf("position %d of %d: %w", position, len(m.entries), ErrOutOfRange)
	}
	return m.entries[position], nil
}

// Len implements Index.
func (m *MilvusIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimension implements Index.
func (m *MilvusIndex) Dimension() int {
	return m.dim
}

// Seal implements Index.
func (m *MilvusIndex) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// DropOnClose makes Close drop the collection before closing the backend.
func (m *MilvusIndex) DropOnClose(drop bool) {
	m.mu.Lock()
	m.dropOnClose = drop
	m.mu.Unlock()
}

// Close implements Index.
func (m *MilvusIndex) Close(ctx context.Context) error {
	m.mu.RLock()
	drop := m.dropOnClose
	m.mu.RUnlock()

	if drop {
		if err := m.backend.DropCollection(ctx, m.collection); err != nil {
			logger.Warnw("Failed to drop milvus collection", "collection", m.collection, "error", err)
		}
	}
	return m.backend.Close(ctx)
}
