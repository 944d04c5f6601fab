// Package http provides the HTTP server infrastructure.
// Outermost layer: routing, middleware, and the JSON boundary. The pipeline
// itself lives in the usecases and knows nothing about transport.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
	"github.com/0xcro3dile/docchat-go/internal/domain/usecases"
)

// HealthInfo is the static part of the health snapshot, fixed at startup.
type HealthInfo struct {
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	RetrievalK       int    `json:"retrieval_k"`
	EmbedderProvider string `json:"embedder_provider"`
	LLMProvider      string `json:"llm_provider"`
}

// Server is the HTTP server for the question-answering API.
type Server struct {
	ask      *usecases.AskService
	pipeline *usecases.IngestPipeline
	history  ports.HistoryStore
	index    ports.VectorIndex
	info     HealthInfo
	logger   log.Logger
	addr     string
}

// NewServer creates the HTTP server with injected collaborators.
func NewServer(
	ask *usecases.AskService,
	pipeline *usecases.IngestPipeline,
	history ports.HistoryStore,
	index ports.VectorIndex,
	info HealthInfo,
	addr string,
	logger log.Logger,
) *Server {
	return &Server{
		ask:      ask,
		pipeline: pipeline,
		history:  history,
		index:    index,
		info:     info,
		logger:   logger,
		addr:     addr,
	}
}

// routes wires the API endpoints and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/ask/stream", s.handleAskStream)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/history/clear", s.handleHistoryClear)
	mux.HandleFunc("DELETE /api/history/{position}", s.handleHistoryDelete)

	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // streaming responses run long
	}

	s.logger.Info().Str("address", s.addr).Msg("HTTP server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
