// Package entities contains core business entities.
// Pure domain objects with no knowledge of storage or external systems.
package entities

import "time"

// Document is a named text blob loaded from the corpus.
// Immutable once ingested; the source of one or more chunks.
type Document struct {
	Filename string
	Path     string
	Content  string
	ModTime  time.Time
}

// Chunk is a bounded excerpt of a document used as a retrieval unit.
// Seq is the ingestion-assigned sequence id (insertion order across the
// whole run). StartIndex is the character offset of Text in the original
// document, kept for citation and overlap de-duplication.
type Chunk struct {
	Seq        int
	Filename   string
	Text       string
	StartIndex int
	Embedding  []float32
}

// RetrievedSource is a chunk annotated with a similarity score for one
// specific query. Ephemeral; created per request, never persisted.
// Similarity is in [0,1], higher = more similar.
type RetrievedSource struct {
	Chunk      Chunk
	Similarity float64
}

// Turn is one prior conversation message supplied by the caller.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Prompt is the assembled input for a generation backend: a system
// instruction enforcing the grounding policy plus ordered messages,
// the last of which carries the retrieved context and the question.
type Prompt struct {
	System   string
	Messages []Turn
}

// SourceCitation is the citation-friendly view of a retrieved source,
// deduplicated per file and truncated for transport and logging.
type SourceCitation struct {
	Filename        string  `json:"filename"`
	Snippet         string  `json:"snippet"`
	SimilarityScore float64 `json:"similarity_score"`
	StartIndex      int     `json:"start_index"`
}

// Answer is the result of one grounded question/answer exchange.
type Answer struct {
	Question        string           `json:"question"`
	Answer          string           `json:"answer"`
	ChunksRetrieved int              `json:"chunks_retrieved"`
	Sources         []SourceCitation `json:"sources"`
}

// HistoryEntry is one persisted interaction, success or failure.
// Entries are addressed by 0-based position in insertion order.
type HistoryEntry struct {
	Timestamp       string           `json:"timestamp"`
	Question        string           `json:"question"`
	Answer          string           `json:"answer"`
	Sources         []SourceCitation `json:"sources"`
	ChunksRetrieved int              `json:"chunks_retrieved"`
	Error           string           `json:"error,omitempty"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	DocumentsLoaded  int `json:"documents_loaded"`
	DocumentsSkipped int `json:"documents_skipped"`
	ChunksIndexed    int `json:"chunks_indexed"`
}
