package vectordb

import (
	"context"
	"sync/atomic"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// MemoryIndex is a non-persistent vector index. Useful for tests and for
// running without a store path; it meets the same snapshot semantics as the
// durable index.
type MemoryIndex struct {
	snap atomic.Pointer[snapshot]
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	m := &MemoryIndex{}
	m.snap.Store(&snapshot{})
	return m
}

// Replace swaps the whole index for a snapshot built from chunks.
func (m *MemoryIndex) Replace(ctx context.Context, chunks []entities.Chunk) error {
	snap, err := newSnapshot(chunks)
	if err != nil {
		return err
	}
	m.snap.Store(snap)
	return nil
}

// Search returns at most k hits ordered by ascending distance.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]ports.IndexHit, error) {
	return m.snap.Load().search(vector, k)
}

// Load is a no-op; nothing is persisted.
func (m *MemoryIndex) Load(ctx context.Context) error { return nil }

// Len reports the number of indexed vectors.
func (m *MemoryIndex) Len() int {
	return len(m.snap.Load().chunks)
}
