package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// OpenAIEmbedder implements ports.EmbeddingService against any
// OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  log.Logger
}

// NewOpenAIEmbedder creates the adapter, resolving the API key from the
// named environment variable. A missing key is a ConfigurationError.
func NewOpenAIEmbedder(baseURL, model, apiKeyEnv string, timeout time.Duration, logger log.Logger) (*OpenAIEmbedder, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, &entities.ConfigurationError{Reason: "missing API key in env " + apiKeyEnv}
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  key,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (a *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch sends all texts in one request; the endpoint accepts an array
// input and returns embeddings in order.
func (a *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openaiEmbedRequest{Input: texts, Model: a.model})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embeddings endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings endpoint returned status %d", resp.StatusCode)
	}

	var out openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Data))
	}

	embeddings := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		embeddings[i] = d.Embedding
	}
	a.logger.Trace().Int("batch", len(texts)).Msg("embeddings generated")
	return embeddings, nil
}
