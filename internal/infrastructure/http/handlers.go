package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

const maxQuestionLen = 2000

type askRequest struct {
	Question            string          `json:"question"`
	ConversationHistory []entities.Turn `json:"conversation_history"`
	TopK                int             `json:"top_k"`
}

// handleAsk answers one question grounded in the corpus.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" || len(question) > maxQuestionLen {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("question must be 1..%d characters", maxQuestionLen))
		return
	}

	answer, err := s.ask.Ask(r.Context(), question, req.ConversationHistory, req.TopK)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleAskStream answers one question with server-sent events: a sources
// event first, then content fragments, then a done event.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("q"))
	if question == "" || len(question) > maxQuestionLen {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("q must be 1..%d characters", maxQuestionLen))
		return
	}
	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		topK, _ = strconv.Atoi(v)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	tokens, sources, err := s.ask.AskStream(r.Context(), question, nil, topK)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendSSE(w, flusher, map[string]interface{}{"sources": sources})
	for token := range tokens {
		if token.Error != nil {
			sendSSE(w, flusher, map[string]interface{}{"error": token.Error.Error(), "done": true})
			return
		}
		sendSSE(w, flusher, map[string]interface{}{"content": token.Content, "done": token.Done})
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]interface{}) {
	payload, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// handleIngest rebuilds the index from the corpus. force defaults to true;
// force=false keeps an already populated index.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	force := true
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}

	result, err := s.pipeline.Ingest(r.Context(), force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "ingestion complete",
		"documents_loaded":  result.DocumentsLoaded,
		"documents_skipped": result.DocumentsSkipped,
		"chunks_indexed":    result.ChunksIndexed,
	})
}

// handleHealth reports a read-only snapshot of index readiness and the
// configured pipeline parameters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	total := s.index.Len()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"index_ready":       total > 0,
		"total_vectors":     total,
		"chunk_size":        s.info.ChunkSize,
		"chunk_overlap":     s.info.ChunkOverlap,
		"retrieval_k":       s.info.RetrievalK,
		"embedder_provider": s.info.EmbedderProvider,
		"llm_provider":      s.info.LLMProvider,
	})
}

// handleHistory returns the last limit entries, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []entities.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	removed, err := s.history.Clear(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"message": fmt.Sprintf("cleared %d history entries", removed),
	})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "position must be an integer")
		return
	}

	if err := s.history.Delete(r.Context(), position); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":  true,
		"position": position,
		"message":  fmt.Sprintf("deleted history entry %d", position),
	})
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *entities.NotFoundError
		retrieval  *entities.RetrievalError
		generation *entities.GenerationError
		config     *entities.ConfigurationError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &retrieval):
		status = http.StatusServiceUnavailable
	case errors.As(err, &generation):
		status = http.StatusBadGateway
	case errors.As(err, &config):
		status = http.StatusInternalServerError
	}

	s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
