// Package vectordb provides vector index adapters.
// Searches run lock-free against an immutable snapshot; a rebuild prepares
// the next snapshot off to the side and swaps it in atomically, so reads in
// flight complete against the old one and never observe a partial index.
package vectordb

import (
	"fmt"
	"sort"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// snapshot is one immutable generation of the index.
type snapshot struct {
	dim    int
	chunks []entities.Chunk
}

// newSnapshot validates that every chunk carries an embedding of one shared
// dimension. A mismatch is a ConfigurationError.
func newSnapshot(chunks []entities.Chunk) (*snapshot, error) {
	if len(chunks) == 0 {
		return &snapshot{}, nil
	}
	dim := len(chunks[0].Embedding)
	if dim == 0 {
		return nil, &entities.ConfigurationError{Reason: "chunk 0 has an empty embedding"}
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) != dim {
			return nil, &entities.ConfigurationError{
				Reason: fmt.Sprintf("chunk %d has dimension %d, index dimension is %d",
					chunk.Seq, len(chunk.Embedding), dim),
			}
		}
	}
	return &snapshot{dim: dim, chunks: chunks}, nil
}

// search is exact k-NN by squared Euclidean distance, ascending.
func (s *snapshot) search(vector []float32, k int) ([]ports.IndexHit, error) {
	if s == nil || len(s.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, &entities.ConfigurationError{
			Reason: fmt.Sprintf("query dimension %d does not match index dimension %d",
				len(vector), s.dim),
		}
	}

	hits := make([]ports.IndexHit, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		hits = append(hits, ports.IndexHit{
			Chunk:    chunk,
			Distance: squaredL2(vector, chunk.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
