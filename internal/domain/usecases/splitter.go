// Package usecases contains application business rules.
// Usecases orchestrate entities and depend on port interfaces only.
package usecases

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// separators, most preferred first: paragraph, line, sentence, word.
// The empty fallback is a raw character cut at the size limit.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter breaks document content into overlapping chunks. Every chunk is
// at most chunkSize characters, and consecutive chunks of the same document
// overlap by exactly chunkOverlap characters (the final chunk may be
// shorter), so no content is lost at a boundary.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter validates the chunking parameters.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, &entities.ConfigurationError{
			Reason: fmt.Sprintf("chunk_size must be positive, got %d", chunkSize),
		}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, &entities.ConfigurationError{
			Reason: fmt.Sprintf("chunk_overlap must be in [0, chunk_size), got %d", chunkOverlap),
		}
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split chunks a document, recording each chunk's character offset in the
// original content. Sequence ids are assigned later, at insertion time.
func (s *Splitter) Split(doc entities.Document) []entities.Chunk {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []entities.Chunk
	start := 0
	for start < len(content) {
		end := s.cut(content, start)
		chunks = append(chunks, entities.Chunk{
			Filename:   doc.Filename,
			Text:       content[start:end],
			StartIndex: start,
		})
		if end >= len(content) {
			break
		}
		start = end - s.chunkOverlap
	}
	return chunks
}

// cut picks the end of the chunk starting at start: the whole remainder if
// it fits, otherwise the latest preferred boundary inside the window, and
// the raw size limit as a last resort. A boundary is only usable if the
// next start (end - overlap) still moves forward.
func (s *Splitter) cut(content string, start int) int {
	limit := start + s.chunkSize
	if limit >= len(content) {
		return len(content)
	}

	window := content[start:limit]
	minEnd := s.chunkOverlap + 1
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx >= 0 && idx+len(sep) >= minEnd {
			return start + idx + len(sep)
		}
	}
	return limit
}
