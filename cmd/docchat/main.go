// Command docchat serves grounded question answering over a private
// document corpus: ingest documents into a vector index, then answer
// questions with citations via the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/0xcro3dile/docchat-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docchat-go/internal/adapters/history"
	"github.com/0xcro3dile/docchat-go/internal/adapters/llm"
	"github.com/0xcro3dile/docchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/docchat-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
	"github.com/0xcro3dile/docchat-go/internal/domain/usecases"
	"github.com/0xcro3dile/docchat-go/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/docchat-go/internal/infrastructure/http"
	"github.com/0xcro3dile/docchat-go/internal/infrastructure/logging"

	"github.com/phuslu/log"
)

// reingestDebounce coalesces bursts of corpus file events into one rebuild.
const reingestDebounce = 2 * time.Second

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var ingestOnly bool
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	flag.BoolVar(&ingestOnly, "ingest", false, "rebuild the index and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedder init failed")
	}

	index := vectordb.NewSQLiteIndex(cfg.StorePath)
	if err := index.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not load persisted index, starting empty")
	} else if index.Len() > 0 {
		logger.Info().Int("total_vectors", index.Len()).Msg("index loaded")
	}

	docLoader := loader.NewTextLoader()
	pipeline, err := usecases.NewIngestPipeline(
		docLoader, embedder, index,
		cfg.DocumentsPath, cfg.Chunking.Size, cfg.Chunking.Overlap,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid chunking configuration")
	}

	if ingestOnly {
		result, err := pipeline.Ingest(ctx, true)
		if err != nil {
			logger.Fatal().Err(err).Msg("ingestion failed")
		}
		fmt.Printf("ingestion complete: %d documents, %d chunks indexed (%d skipped)\n",
			result.DocumentsLoaded, result.ChunksIndexed, result.DocumentsSkipped)
		return
	}

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("generation backend init failed")
	}

	retriever := usecases.NewRetriever(embedder, index, cfg.Retrieval.K, cfg.Retrieval.ScoreThreshold, logger)
	maxTurns := 0
	if cfg.Memory.IsEnabled() {
		maxTurns = cfg.Memory.MaxTurns
	}
	assembler := usecases.NewAssembler(maxTurns)
	historyStore := history.NewJSONLStore(cfg.HistoryPath)
	ask := usecases.NewAskService(retriever, assembler, generator, historyStore, logger)

	if cfg.Watch {
		if err := watchCorpus(ctx, cfg.DocumentsPath, docLoader.SupportedExtensions(), pipeline, logger); err != nil {
			logger.Warn().Err(err).Msg("corpus watcher disabled")
		}
	}

	server := httpserver.NewServer(
		ask, pipeline, historyStore, index,
		httpserver.HealthInfo{
			ChunkSize:        cfg.Chunking.Size,
			ChunkOverlap:     cfg.Chunking.Overlap,
			RetrievalK:       cfg.Retrieval.K,
			EmbedderProvider: cfg.Embedder.Provider,
			LLMProvider:      cfg.LLM.Provider,
		},
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		logger,
	)
	if err := server.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func buildEmbedder(cfg *config.Config, logger log.Logger) (ports.EmbeddingService, error) {
	timeout := time.Duration(cfg.Embedder.TimeoutSecs) * time.Second
	switch cfg.Embedder.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedder.BaseURL, cfg.Embedder.Model, cfg.Embedder.APIKeyEnv, timeout, logger)
	default:
		return embedding.NewOllamaEmbedder(cfg.Embedder.BaseURL, cfg.Embedder.Model, timeout, logger), nil
	}
}

func buildGenerator(cfg *config.Config, logger log.Logger) (ports.GenerationService, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	switch cfg.LLM.Provider {
	case "claude":
		return llm.NewClaudeGenerator(cfg.LLM.Model, cfg.LLM.APIKeyEnv, cfg.LLM.MaxTokens, cfg.LLM.Temperature, timeout, logger)
	default:
		return llm.NewOllamaGenerator(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Temperature, timeout, logger), nil
	}
}

// watchCorpus re-ingests after corpus changes, debounced so a batch of
// file writes triggers a single rebuild.
func watchCorpus(ctx context.Context, dir string, extensions []string, pipeline *usecases.IngestPipeline, logger log.Logger) error {
	watcher, err := filewatcher.NewFSNotifyWatcher(extensions)
	if err != nil {
		return err
	}
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		watcher.Stop()
		return err
	}

	go func() {
		defer watcher.Stop()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				logger.Debug().Str("path", event.Path).Msg("corpus change detected")
				pending = time.After(reingestDebounce)
			case <-pending:
				pending = nil
				if _, err := pipeline.Ingest(ctx, true); err != nil {
					logger.Error().Err(err).Msg("watched re-ingestion failed")
				}
			}
		}
	}()

	logger.Info().Str("dir", dir).Msg("watching corpus for changes")
	return nil
}
