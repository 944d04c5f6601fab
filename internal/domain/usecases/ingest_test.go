package usecases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// seedCorpus materializes the mock loader's corpus as real files so the
// directory walk finds them.
func seedCorpus(t *testing.T, loader *mockLoader) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range loader.filenames() {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("placeholder"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestIngest_IndexesAllDocuments(t *testing.T) {
	loader := &mockLoader{docs: map[string]string{
		"alpha.txt": strings.Repeat("alpha content sentence. ", 10),
		"beta.md":   "beta is short.",
	}}
	dir := seedCorpus(t, loader)
	index := &mockIndex{}

	p, err := NewIngestPipeline(loader, &mockEmbedder{}, index, dir, 100, 20, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Ingest(context.Background(), true)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if result.DocumentsLoaded != 2 {
		t.Errorf("documents loaded = %d, want 2", result.DocumentsLoaded)
	}
	if result.DocumentsSkipped != 0 {
		t.Errorf("documents skipped = %d, want 0", result.DocumentsSkipped)
	}
	if result.ChunksIndexed != len(index.chunks) {
		t.Errorf("result reports %d chunks, index holds %d", result.ChunksIndexed, len(index.chunks))
	}
	if len(index.chunks) == 0 {
		t.Fatal("expected chunks in the index")
	}
	for i, c := range index.chunks {
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d, want insertion order", i, c.Seq)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestIngest_SkipsUnreadableDocument(t *testing.T) {
	loader := &mockLoader{
		docs: map[string]string{"good.txt": "readable content here."},
		fail: map[string]bool{"bad.txt": true},
	}
	dir := seedCorpus(t, loader)
	index := &mockIndex{}

	p, _ := NewIngestPipeline(loader, &mockEmbedder{}, index, dir, 100, 20, testLogger)
	result, err := p.Ingest(context.Background(), true)
	if err != nil {
		t.Fatalf("one bad document must not abort the run: %v", err)
	}
	if result.DocumentsLoaded != 1 || result.DocumentsSkipped != 1 {
		t.Errorf("loaded=%d skipped=%d, want 1/1", result.DocumentsLoaded, result.DocumentsSkipped)
	}
}

func TestIngest_AllDocumentsFailing(t *testing.T) {
	loader := &mockLoader{fail: map[string]bool{"one.txt": true, "two.txt": true}}
	dir := seedCorpus(t, loader)

	p, _ := NewIngestPipeline(loader, &mockEmbedder{}, &mockIndex{}, dir, 100, 20, testLogger)
	if _, err := p.Ingest(context.Background(), true); err == nil {
		t.Fatal("expected an error when every document fails to load")
	}
}

func TestIngest_EmptyCorpus(t *testing.T) {
	p, _ := NewIngestPipeline(&mockLoader{}, &mockEmbedder{}, &mockIndex{}, t.TempDir(), 100, 20, testLogger)
	if _, err := p.Ingest(context.Background(), true); err == nil {
		t.Fatal("expected an error for an empty corpus")
	}
}

func TestIngest_SkipsRebuildWhenPopulated(t *testing.T) {
	loader := &mockLoader{docs: map[string]string{"doc.txt": "content"}}
	dir := seedCorpus(t, loader)
	embedder := &mockEmbedder{}
	index := &mockIndex{}

	p, _ := NewIngestPipeline(loader, embedder, index, dir, 100, 20, testLogger)
	if _, err := p.Ingest(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	embedder.calls = 0

	result, err := p.Ingest(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if embedder.calls != 0 {
		t.Error("force=false on a populated index must not re-embed")
	}
	if result.ChunksIndexed != index.Len() {
		t.Errorf("skip must report current stats: got %d, want %d", result.ChunksIndexed, index.Len())
	}
}

func TestIngest_EmbedderFailureAborts(t *testing.T) {
	loader := &mockLoader{docs: map[string]string{"doc.txt": "some content to embed."}}
	dir := seedCorpus(t, loader)
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("backend down")
	}}
	index := &mockIndex{}

	p, _ := NewIngestPipeline(loader, embedder, index, dir, 100, 20, testLogger)
	if _, err := p.Ingest(context.Background(), true); err == nil {
		t.Fatal("expected embedding failure to abort the run")
	}
	if len(index.chunks) != 0 {
		t.Error("a failed run must leave the index untouched")
	}
}

// shortBatchEmbedder returns one embedding fewer than requested.
type shortBatchEmbedder struct {
	mockEmbedder
}

func (s *shortBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	full, err := s.mockEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return full[:len(full)-1], nil
}

func TestIngest_ShortEmbeddingBatchFails(t *testing.T) {
	loader := &mockLoader{docs: map[string]string{"doc.txt": "some content to embed."}}
	dir := seedCorpus(t, loader)
	index := &mockIndex{}

	p, _ := NewIngestPipeline(loader, &shortBatchEmbedder{}, index, dir, 100, 20, testLogger)
	if _, err := p.Ingest(context.Background(), true); err == nil {
		t.Fatal("an embedding count mismatch must abort the run, not panic later")
	}
	if len(index.chunks) != 0 {
		t.Error("a failed run must leave the index untouched")
	}
}

func TestNewIngestPipeline_InvalidChunking(t *testing.T) {
	if _, err := NewIngestPipeline(&mockLoader{}, &mockEmbedder{}, &mockIndex{}, ".", 0, 0, testLogger); err == nil {
		t.Fatal("expected a configuration error")
	}
}
