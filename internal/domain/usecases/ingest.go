package usecases

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// embedBatchSize bounds how many chunk texts go to the embedder per call.
const embedBatchSize = 32

// IngestPipeline turns the document corpus into a populated, persisted
// vector index: load, split, embed, replace.
type IngestPipeline struct {
	loader       ports.DocumentLoader
	embedder     ports.EmbeddingService
	index        ports.VectorIndex
	splitter     *Splitter
	documentsDir string
	logger       log.Logger
}

// NewIngestPipeline creates an ingestion pipeline with injected adapters.
// Invalid chunking parameters are a ConfigurationError.
func NewIngestPipeline(
	loader ports.DocumentLoader,
	embedder ports.EmbeddingService,
	index ports.VectorIndex,
	documentsDir string,
	chunkSize, chunkOverlap int,
	logger log.Logger,
) (*IngestPipeline, error) {
	splitter, err := NewSplitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return &IngestPipeline{
		loader:       loader,
		embedder:     embedder,
		index:        index,
		splitter:     splitter,
		documentsDir: documentsDir,
		logger:       logger,
	}, nil
}

// Ingest runs the full offline path. With force=false an already populated
// index is left as-is and the current stats are reported. A document that
// fails to load is skipped with a warning; a failing embedder aborts the
// run and leaves the previous persisted index untouched.
func (p *IngestPipeline) Ingest(ctx context.Context, force bool) (entities.IngestResult, error) {
	var result entities.IngestResult

	if !force && p.index.Len() > 0 {
		result.ChunksIndexed = p.index.Len()
		p.logger.Info().
			Int("total_vectors", result.ChunksIndexed).
			Msg("index already populated, skipping rebuild")
		return result, nil
	}

	paths, err := p.corpusPaths()
	if err != nil {
		return result, err
	}
	if len(paths) == 0 {
		return result, fmt.Errorf("no documents found in %s", p.documentsDir)
	}

	var chunks []entities.Chunk
	for _, path := range paths {
		doc, err := p.loader.Load(ctx, path)
		if err != nil {
			result.DocumentsSkipped++
			ingErr := &entities.IngestionError{Filename: filepath.Base(path), Err: err}
			p.logger.Warn().Err(ingErr).Msg("skipping unreadable document")
			continue
		}
		result.DocumentsLoaded++
		chunks = append(chunks, p.splitter.Split(*doc)...)
	}
	if result.DocumentsLoaded == 0 {
		return result, fmt.Errorf("all %d documents in %s failed to load", len(paths), p.documentsDir)
	}

	// Sequence ids follow insertion order across the whole run.
	for i := range chunks {
		chunks[i].Seq = i
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		return result, fmt.Errorf("embedding corpus: %w", err)
	}

	if err := p.index.Replace(ctx, chunks); err != nil {
		return result, err
	}

	result.ChunksIndexed = len(chunks)
	p.logger.Info().
		Int("documents_loaded", result.DocumentsLoaded).
		Int("documents_skipped", result.DocumentsSkipped).
		Int("chunks_indexed", result.ChunksIndexed).
		Msg("ingestion complete")
	return result, nil
}

// embedChunks fills in chunk embeddings, batched for throughput.
func (p *IngestPipeline) embedChunks(ctx context.Context, chunks []entities.Chunk) error {
	for lo := 0; lo < len(chunks); lo += embedBatchSize {
		hi := lo + embedBatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}

		texts := make([]string, hi-lo)
		for i := lo; i < hi; i++ {
			texts[i-lo] = chunks[i].Text
		}

		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedder returned %d embeddings for %d texts", len(embeddings), len(texts))
		}
		for i := lo; i < hi; i++ {
			chunks[i].Embedding = embeddings[i-lo]
		}
	}
	return nil
}

// corpusPaths lists supported files under the documents directory, sorted
// for deterministic sequence ids.
func (p *IngestPipeline) corpusPaths() ([]string, error) {
	supported := make(map[string]bool)
	for _, ext := range p.loader.SupportedExtensions() {
		supported[ext] = true
	}

	var paths []string
	err := filepath.WalkDir(p.documentsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supported[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning documents directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
