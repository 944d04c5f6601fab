// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, not concrete implementations;
// adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// EmbeddingService maps text to a fixed-length dense vector.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationService produces answer text from an assembled prompt.
type GenerationService interface {
	// Generate produces a complete response for the prompt.
	Generate(ctx context.Context, prompt entities.Prompt) (string, error)

	// GenerateStream produces a token-by-token response. The channel is
	// closed after the final token or on cancellation.
	GenerateStream(ctx context.Context, prompt entities.Prompt) (<-chan StreamToken, error)
}

// StreamToken is a single fragment of a streaming generation response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// IndexHit pairs a chunk with its raw squared Euclidean distance to the
// query vector. Lower distance = more similar; score conversion is the
// retriever's job.
type IndexHit struct {
	Chunk    entities.Chunk
	Distance float64
}

// VectorIndex stores (vector, chunk) entries and answers exact
// nearest-neighbor queries. Reads run against an immutable snapshot;
// Replace swaps in a fully built snapshot atomically and persists it.
type VectorIndex interface {
	// Replace rebuilds the index from the given chunks, persists it, and
	// swaps it in. In-flight searches complete against the old snapshot.
	Replace(ctx context.Context, chunks []entities.Chunk) error

	// Search returns at most k hits ordered by ascending distance.
	// An empty index yields an empty result, not an error. A query vector
	// whose dimension differs from the indexed vectors is a
	// ConfigurationError.
	Search(ctx context.Context, vector []float32, k int) ([]IndexHit, error)

	// Load restores the persisted snapshot, if any.
	Load(ctx context.Context) error

	// Len reports the number of indexed vectors.
	Len() int
}

// DocumentLoader reads one document from the corpus.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// HistoryStore is the append-only interaction log.
type HistoryStore interface {
	// Append writes one entry as an atomic unit.
	Append(ctx context.Context, entry entities.HistoryEntry) error

	// Recent returns the last limit entries, oldest first.
	Recent(ctx context.Context, limit int) ([]entities.HistoryEntry, error)

	// Clear removes all entries and reports how many were removed.
	Clear(ctx context.Context) (int, error)

	// Delete removes the entry at the given 0-based position.
	// An out-of-range position is a NotFoundError and a no-op.
	Delete(ctx context.Context, position int) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events until the
	// context is cancelled.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
