package usecases

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// Retriever embeds a query, runs exact nearest-neighbor search, and filters
// candidates by a similarity-score threshold. Scores are in [0,1], higher =
// more similar; the threshold always compares against the converted score,
// never the raw distance.
type Retriever struct {
	embedder  ports.EmbeddingService
	index     ports.VectorIndex
	defaultK  int
	threshold float64
	logger    log.Logger
}

// NewRetriever creates a retriever. defaultK applies when a call does not
// override k; threshold is fixed per configuration.
func NewRetriever(
	embedder ports.EmbeddingService,
	index ports.VectorIndex,
	defaultK int,
	threshold float64,
	logger log.Logger,
) *Retriever {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		defaultK:  defaultK,
		threshold: threshold,
		logger:    logger,
	}
}

// Retrieve returns ranked sources for the query, best first. k <= 0 means
// the configured default. The threshold filter is a pure post-step: it
// drops low-scoring candidates without reordering the k-NN result. An
// empty index yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]entities.RetrievedSource, error) {
	if k <= 0 {
		k = r.defaultK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &entities.RetrievalError{Err: fmt.Errorf("embedding query: %w", err)}
	}

	hits, err := r.index.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	sources := make([]entities.RetrievedSource, 0, len(hits))
	for _, hit := range hits {
		similarity := distanceToSimilarity(hit.Distance)
		if similarity < r.threshold {
			continue
		}
		sources = append(sources, entities.RetrievedSource{
			Chunk:      hit.Chunk,
			Similarity: similarity,
		})
	}

	r.logger.Debug().
		Int("candidates", len(hits)).
		Int("retained", len(sources)).
		Float64("threshold", r.threshold).
		Msg("retrieval complete")
	return sources, nil
}

// distanceToSimilarity converts squared Euclidean distance (lower = closer)
// into a similarity score in [0,1]: zero distance maps to 1.0.
func distanceToSimilarity(distance float64) float64 {
	similarity := 1.0 - distance/2.0
	if similarity < 0 {
		return 0
	}
	return similarity
}
