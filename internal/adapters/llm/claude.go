package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// ClaudeGenerator implements ports.GenerationService using the Anthropic
// API.
type ClaudeGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	logger      log.Logger
}

// NewClaudeGenerator creates an Anthropic generation adapter, resolving the
// API key from the named environment variable. A missing key is a
// ConfigurationError.
func NewClaudeGenerator(model, apiKeyEnv string, maxTokens int, temperature float64, timeout time.Duration, logger log.Logger) (*ClaudeGenerator, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, &entities.ConfigurationError{Reason: "missing API key in env " + apiKeyEnv}
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ClaudeGenerator{
		client:      anthropic.NewClient(option.WithAPIKey(key)),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Generate produces a complete response for the prompt.
func (a *ClaudeGenerator) Generate(ctx context.Context, prompt entities.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, a.params(prompt))
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	a.logger.Debug().
		Str("model", a.model).
		Int("response_length", sb.Len()).
		Msg("claude completion finished")
	return sb.String(), nil
}

// GenerateStream produces a token-by-token response. The channel closes
// after the final token or on cancellation.
func (a *ClaudeGenerator) GenerateStream(ctx context.Context, prompt entities.Prompt) (<-chan ports.StreamToken, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(prompt))

	ch := make(chan ports.StreamToken, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					ch <- ports.StreamToken{Content: delta.Text}
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- ports.StreamToken{Done: true, Error: classifyAnthropicError(err)}
			return
		}
		ch <- ports.StreamToken{Done: true}
	}()
	return ch, nil
}

// params converts the assembled prompt into Anthropic message parameters.
// The grounding policy travels in the system parameter; prior turns keep
// their roles and chronological order.
func (a *ClaudeGenerator) params(prompt entities.Prompt) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(prompt.Messages))
	for _, msg := range prompt.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    messages,
		Temperature: anthropic.Float(a.temperature),
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}
	return params
}

// classifyAnthropicError wraps backend failures, marking rate limits,
// timeouts, and server-side errors as transient.
func classifyAnthropicError(err error) error {
	if isCancellation(err) {
		return &entities.GenerationError{
			Transient: true,
			Err:       fmt.Errorf("claude call timed out: %w", err),
		}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		transient := apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= http.StatusInternalServerError
		return &entities.GenerationError{
			Transient: transient,
			Err:       fmt.Errorf("claude API error (status %d): %w", apiErr.StatusCode, err),
		}
	}

	return &entities.GenerationError{
		Transient: true,
		Err:       fmt.Errorf("calling claude: %w", err),
	}
}
