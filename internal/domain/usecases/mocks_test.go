package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

var testLogger = log.Logger{Level: log.PanicLevel}

var errUnreadable = errors.New("unreadable")

func basename(path string) string { return filepath.Base(path) }

// mockEmbedder implements ports.EmbeddingService for testing.
type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockIndex implements ports.VectorIndex for testing. Search returns the
// pre-seeded hits regardless of the query vector.
type mockIndex struct {
	chunks   []entities.Chunk
	hits     []ports.IndexHit
	searchFn func(vector []float32, k int) ([]ports.IndexHit, error)
}

func (m *mockIndex) Replace(ctx context.Context, chunks []entities.Chunk) error {
	m.chunks = chunks
	return nil
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, k int) ([]ports.IndexHit, error) {
	if m.searchFn != nil {
		return m.searchFn(vector, k)
	}
	hits := m.hits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockIndex) Load(ctx context.Context) error { return nil }

func (m *mockIndex) Len() int { return len(m.chunks) }

// mockGenerator implements ports.GenerationService for testing.
type mockGenerator struct {
	response   string
	err        error
	lastPrompt entities.Prompt
	tokens     []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt entities.Prompt) (string, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockGenerator) GenerateStream(ctx context.Context, prompt entities.Prompt) (<-chan ports.StreamToken, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan ports.StreamToken)
	go func() {
		defer close(out)
		for _, tok := range m.tokens {
			out <- ports.StreamToken{Content: tok}
		}
		out <- ports.StreamToken{Done: true}
	}()
	return out, nil
}

// mockHistory implements ports.HistoryStore in memory.
type mockHistory struct {
	mu      sync.Mutex
	entries []entities.HistoryEntry
	err     error
}

func (m *mockHistory) Append(ctx context.Context, entry entities.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistory) Recent(ctx context.Context, limit int) ([]entities.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[len(m.entries)-limit:], nil
}

func (m *mockHistory) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = nil
	return n, nil
}

func (m *mockHistory) Delete(ctx context.Context, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if position < 0 || position >= len(m.entries) {
		return &entities.NotFoundError{Position: position}
	}
	m.entries = append(m.entries[:position], m.entries[position+1:]...)
	return nil
}

func (m *mockHistory) last() entities.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

// mockLoader implements ports.DocumentLoader over an in-memory corpus
// keyed by base filename.
type mockLoader struct {
	docs map[string]string // filename -> content
	fail map[string]bool
}

func (m *mockLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	name := basename(path)
	if m.fail[name] {
		return nil, errUnreadable
	}
	content, ok := m.docs[name]
	if !ok {
		return nil, errUnreadable
	}
	return &entities.Document{Filename: name, Path: path, Content: content}, nil
}

func (m *mockLoader) SupportedExtensions() []string { return []string{".txt", ".md"} }

func (m *mockLoader) filenames() []string {
	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	for name := range m.fail {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
