package usecases

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// snippetLen bounds the excerpt kept per cited source.
const snippetLen = 350

// AskService drives the online path: retrieve, assemble, generate, log.
// Every ask, successful or failed, produces exactly one history entry.
type AskService struct {
	retriever *Retriever
	assembler *Assembler
	generator ports.GenerationService
	history   ports.HistoryStore
	logger    log.Logger
}

// NewAskService creates the ask orchestrator with injected collaborators.
func NewAskService(
	retriever *Retriever,
	assembler *Assembler,
	generator ports.GenerationService,
	history ports.HistoryStore,
	logger log.Logger,
) *AskService {
	return &AskService{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		history:   history,
		logger:    logger,
	}
}

// Ask answers one question grounded in the corpus. topK <= 0 uses the
// configured default. Failures are recorded in the history before they
// propagate, preserving the audit trail.
func (s *AskService) Ask(ctx context.Context, question string, history []entities.Turn, topK int) (*entities.Answer, error) {
	sources, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		s.recordFailure(ctx, question, 0, err)
		return nil, err
	}

	prompt := s.assembler.Assemble(question, sources, history)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.recordFailure(ctx, question, len(sources), err)
		return nil, err
	}

	answer := &entities.Answer{
		Question:        question,
		Answer:          strings.TrimSpace(text),
		ChunksRetrieved: len(sources),
		Sources:         citeSources(sources),
	}

	entry := entities.HistoryEntry{
		Timestamp:       nowISO(),
		Question:        question,
		Answer:          answer.Answer,
		Sources:         answer.Sources,
		ChunksRetrieved: answer.ChunksRetrieved,
	}
	if err := s.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn().Err(err).Msg("could not write history entry")
	}
	return answer, nil
}

// AskStream answers one question with a streaming response. The returned
// channel is closed after the final token or on cancellation; either way a
// well-formed (possibly truncated) history entry is written.
func (s *AskService) AskStream(ctx context.Context, question string, history []entities.Turn, topK int) (<-chan ports.StreamToken, []entities.SourceCitation, error) {
	sources, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		s.recordFailure(ctx, question, 0, err)
		return nil, nil, err
	}

	prompt := s.assembler.Assemble(question, sources, history)
	tokens, err := s.generator.GenerateStream(ctx, prompt)
	if err != nil {
		s.recordFailure(ctx, question, len(sources), err)
		return nil, nil, err
	}

	citations := citeSources(sources)
	out := make(chan ports.StreamToken)
	go func() {
		defer close(out)

		var answer strings.Builder
		var streamErr error
		abandoned := false
		for token := range tokens {
			if token.Error != nil {
				streamErr = token.Error
			} else {
				answer.WriteString(token.Content)
			}
			if abandoned {
				continue
			}
			select {
			case out <- token:
			case <-ctx.Done():
				abandoned = true
			}
		}

		entry := entities.HistoryEntry{
			Timestamp:       nowISO(),
			Question:        question,
			Answer:          strings.TrimSpace(answer.String()),
			Sources:         citations,
			ChunksRetrieved: len(sources),
		}
		if streamErr != nil {
			entry.Error = streamErr.Error()
		} else if abandoned {
			entry.Error = "client cancelled mid-stream"
		}
		if err := s.history.Append(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Warn().Err(err).Msg("could not write history entry")
		}
	}()
	return out, citations, nil
}

// recordFailure appends a history entry carrying the error so failed asks
// are auditable alongside successes.
func (s *AskService) recordFailure(ctx context.Context, question string, retrieved int, cause error) {
	entry := entities.HistoryEntry{
		Timestamp:       nowISO(),
		Question:        question,
		Sources:         []entities.SourceCitation{},
		ChunksRetrieved: retrieved,
		Error:           cause.Error(),
	}
	if err := s.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn().Err(err).Msg("could not write failure history entry")
	}
}

// citeSources collapses multiple chunks from the same file into one
// citation, keeping the highest-scoring chunk per file and truncating the
// excerpt. First-appearance order is preserved.
func citeSources(sources []entities.RetrievedSource) []entities.SourceCitation {
	citations := make([]entities.SourceCitation, 0, len(sources))
	byFile := make(map[string]int)

	for _, src := range sources {
		citation := entities.SourceCitation{
			Filename:        src.Chunk.Filename,
			Snippet:         truncateSnippet(src.Chunk.Text),
			SimilarityScore: src.Similarity,
			StartIndex:      src.Chunk.StartIndex,
		}
		if pos, seen := byFile[src.Chunk.Filename]; seen {
			if citation.SimilarityScore > citations[pos].SimilarityScore {
				citations[pos] = citation
			}
			continue
		}
		byFile[src.Chunk.Filename] = len(citations)
		citations = append(citations, citation)
	}
	return citations
}

func truncateSnippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= snippetLen {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multibyte
	// character.
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.TrimSpace(text[:cut]) + "…"
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
