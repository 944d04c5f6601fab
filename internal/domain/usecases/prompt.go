package usecases

import (
	"strings"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// groundingPolicy is the system instruction sent with every prompt. The
// generator must answer strictly from the supplied context and say so when
// the context is insufficient.
const groundingPolicy = `You are a helpful and knowledgeable AI assistant.
Use ONLY the context provided in the user's message to answer the question.
Do not rely on outside knowledge: every factual claim must be supported by
the context. If the context does not contain enough information to fully
answer the question, say so clearly and do not make up information.
When you use information from a source, mention its filename.`

// noContextNotice replaces the context block when retrieval found nothing.
const noContextNotice = "No relevant context was found in the knowledge base."

// Assembler builds the grounded prompt from retrieved sources, prior
// conversation turns, and the new question.
type Assembler struct {
	maxHistoryTurns int // 0 disables conversation memory
}

// NewAssembler creates an assembler that injects up to maxHistoryTurns
// prior turns, oldest first.
func NewAssembler(maxHistoryTurns int) *Assembler {
	if maxHistoryTurns < 0 {
		maxHistoryTurns = 0
	}
	return &Assembler{maxHistoryTurns: maxHistoryTurns}
}

// Assemble produces the prompt. Source order preserves the retriever's
// ranking; each source carries a visible provenance tag so the generator
// can cite it. With no sources the prompt still instructs the generator to
// report that no grounding context was found.
func (a *Assembler) Assemble(question string, sources []entities.RetrievedSource, history []entities.Turn) entities.Prompt {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	if len(sources) == 0 {
		sb.WriteString(noContextNotice)
	} else {
		for i, src := range sources {
			if i > 0 {
				sb.WriteString("\n\n---\n\n")
			}
			sb.WriteString("[Source: ")
			sb.WriteString(src.Chunk.Filename)
			sb.WriteString("]\n")
			sb.WriteString(src.Chunk.Text)
		}
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	var messages []entities.Turn
	if a.maxHistoryTurns > 0 && len(history) > 0 {
		turns := history
		if len(turns) > a.maxHistoryTurns {
			turns = turns[len(turns)-a.maxHistoryTurns:]
		}
		messages = append(messages, turns...)
	}
	messages = append(messages, entities.Turn{Role: "user", Content: sb.String()})

	return entities.Prompt{System: groundingPolicy, Messages: messages}
}
