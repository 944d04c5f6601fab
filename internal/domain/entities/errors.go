package entities

import "fmt"

// ConfigurationError reports invalid settings: bad chunking parameters,
// an embedder/index dimension mismatch, or missing credentials.
// Fatal to the operation; never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// IngestionError reports a document that failed to load or parse.
// Per-document; non-fatal to the batch.
type IngestionError struct {
	Filename string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting %s: %v", e.Filename, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// RetrievalError reports an unreadable or corrupted index.
// Fatal to the request; surfaced as service-unavailable.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a failed generation backend call.
// Transient marks timeout/rate-limit classes that a caller may retry;
// the pipeline itself never retries.
type GenerationError struct {
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Transient {
		return fmt.Sprintf("generation (transient): %v", e.Err)
	}
	return fmt.Sprintf("generation: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NotFoundError reports an operation against a history position
// that does not exist.
type NotFoundError struct {
	Position int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("history entry %d not found", e.Position)
}
