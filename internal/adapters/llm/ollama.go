// Package llm provides generation backend adapters.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// OllamaGenerator implements ports.GenerationService against the Ollama
// generate API.
type OllamaGenerator struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	logger      log.Logger
}

// NewOllamaGenerator creates an Ollama generation adapter.
func NewOllamaGenerator(baseURL, model string, temperature float64, timeout time.Duration, logger log.Logger) *OllamaGenerator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaGenerator{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces a complete response for the prompt.
func (a *OllamaGenerator) Generate(ctx context.Context, prompt entities.Prompt) (string, error) {
	resp, err := a.call(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", &entities.GenerationError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return genResp.Response, nil
}

// GenerateStream produces a token-by-token response via Ollama's streaming
// API. The channel closes after the final token or on cancellation.
func (a *OllamaGenerator) GenerateStream(ctx context.Context, prompt entities.Prompt) (<-chan ports.StreamToken, error) {
	resp, err := a.call(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				ch <- ports.StreamToken{Done: true, Error: ctx.Err()}
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaGenerateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // skip malformed lines
			}

			ch <- ports.StreamToken{Content: chunk.Response, Done: chunk.Done}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- ports.StreamToken{Done: true, Error: err}
		}
	}()

	return ch, nil
}

func (a *OllamaGenerator) call(ctx context.Context, prompt entities.Prompt, stream bool) (*http.Response, error) {
	reqBody := ollamaGenerateRequest{
		Model:   a.model,
		System:  prompt.System,
		Prompt:  flattenMessages(prompt.Messages),
		Stream:  stream,
		Options: map[string]interface{}{"temperature": a.temperature},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &entities.GenerationError{Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &entities.GenerationError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// Network failures and timeouts are retry candidates for the caller.
		return nil, &entities.GenerationError{
			Transient: true,
			Err:       fmt.Errorf("calling ollama: %w", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &entities.GenerationError{
			Transient: isTransientStatus(resp.StatusCode),
			Err:       fmt.Errorf("ollama returned status %d", resp.StatusCode),
		}
	}
	return resp, nil
}

// flattenMessages renders conversation turns as a plain transcript for the
// single-prompt generate endpoint. The final turn carries the context block
// and question, so it is emitted last without a role label repeat.
func flattenMessages(messages []entities.Turn) string {
	if len(messages) == 1 {
		return messages[0].Content
	}

	var sb strings.Builder
	for _, msg := range messages[:len(messages)-1] {
		switch msg.Role {
		case "assistant":
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString(messages[len(messages)-1].Content)
	return sb.String()
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}

// isCancellation reports whether the error stems from the caller's context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
