package vectordb

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

func TestSQLiteIndex_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	original := NewSQLiteIndex(dir)
	chunks := []entities.Chunk{
		{Seq: 0, Filename: "a.txt", Text: "first chunk", StartIndex: 0, Embedding: []float32{0.1, 0.2}},
		{Seq: 1, Filename: "a.txt", Text: "second chunk", StartIndex: 80, Embedding: []float32{0.3, 0.4}},
		{Seq: 2, Filename: "b.md", Text: "other doc", StartIndex: 0, Embedding: []float32{0.9, 0.8}},
	}
	require.NoError(t, original.Replace(ctx, chunks))

	wantHits, err := original.Search(ctx, []float32{0.1, 0.2}, 3)
	require.NoError(t, err)

	reloaded := NewSQLiteIndex(dir)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 3, reloaded.Len())

	gotHits, err := reloaded.Search(ctx, []float32{0.1, 0.2}, 3)
	require.NoError(t, err)
	assert.Equal(t, wantHits, gotHits, "reloaded index must answer queries identically")
}

func TestSQLiteIndex_LoadMissingFileIsEmpty(t *testing.T) {
	idx := NewSQLiteIndex(t.TempDir())
	require.NoError(t, idx.Load(context.Background()))
	assert.Equal(t, 0, idx.Len())
}

func TestSQLiteIndex_LoadCorruptFileIsRetrievalError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte("not a database"), 0o644))

	idx := NewSQLiteIndex(dir)
	err := idx.Load(context.Background())
	require.Error(t, err)
	var retErr *entities.RetrievalError
	require.ErrorAs(t, err, &retErr)
}

func TestSQLiteIndex_ReplaceLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	idx := NewSQLiteIndex(dir)
	require.NoError(t, idx.Replace(context.Background(), []entities.Chunk{
		{Seq: 0, Filename: "a.txt", Text: "x", Embedding: []float32{1}},
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, indexFile, entries[0].Name())
}

func TestSQLiteIndex_RebuildReplacesPersistedState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx := NewSQLiteIndex(dir)
	require.NoError(t, idx.Replace(ctx, []entities.Chunk{
		{Seq: 0, Filename: "old.txt", Text: "old", Embedding: []float32{1, 0}},
		{Seq: 1, Filename: "old.txt", Text: "older", Embedding: []float32{0, 1}},
	}))
	require.NoError(t, idx.Replace(ctx, []entities.Chunk{
		{Seq: 0, Filename: "new.txt", Text: "new", Embedding: []float32{0.5, 0.5}},
	}))

	reloaded := NewSQLiteIndex(dir)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())

	hits, err := reloaded.Search(ctx, []float32{0.5, 0.5}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new.txt", hits[0].Chunk.Filename)
}

func TestSQLiteIndex_SearchesDuringRebuildSeeOneGeneration(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	generation := func(tag string) []entities.Chunk {
		return []entities.Chunk{
			{Seq: 0, Filename: tag, Text: "x", Embedding: []float32{0, 1}},
			{Seq: 1, Filename: tag, Text: "y", Embedding: []float32{1, 1}},
		}
	}

	idx := NewSQLiteIndex(dir)
	require.NoError(t, idx.Replace(ctx, generation("a.txt")))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				hits, err := idx.Search(ctx, []float32{0, 1}, 10)
				if err != nil {
					t.Error(err)
					return
				}
				if len(hits) != 2 || hits[0].Chunk.Filename != hits[1].Chunk.Filename {
					t.Errorf("inconsistent result during rebuild: %+v", hits)
					return
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		tag := "a.txt"
		if i%2 == 0 {
			tag = "b.txt"
		}
		require.NoError(t, idx.Replace(ctx, generation(tag)))
	}
	close(done)
	wg.Wait()
}

func TestSQLiteIndex_RejectedReplaceKeepsOldSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx := NewSQLiteIndex(dir)
	require.NoError(t, idx.Replace(ctx, []entities.Chunk{
		{Seq: 0, Filename: "a.txt", Text: "x", Embedding: []float32{1, 0}},
	}))

	err := idx.Replace(ctx, []entities.Chunk{
		{Seq: 0, Filename: "bad.txt", Text: "y", Embedding: []float32{1, 0}},
		{Seq: 1, Filename: "bad.txt", Text: "z", Embedding: []float32{1}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, idx.Len(), "failed rebuild must leave the live snapshot intact")

	reloaded := NewSQLiteIndex(dir)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 1, reloaded.Len(), "failed rebuild must leave the persisted index intact")
}
