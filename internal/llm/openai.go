package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/pkg/types"
)

// DefaultOpenAIBaseURL is the default OpenAI API base URL.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig holds configuration for the OpenAI clients. BaseURL may point
// at any OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // default: gpt-4o (chat) or text-embedding-3-small (embeddings)
	BaseURL     string        // default: https://api.openai.com/v1
	Timeout     time.Duration // default: 30s; bounds embeddings and stream setup, not streaming
	MaxTokens   int
	Temperature float64
}

func (c *OpenAIConfig) applyDefaults(model string) {
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultOpenAIBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// OpenAIClient implements ChatStreamer using streamed chat completions.
type OpenAIClient struct {
	cfg            OpenAIConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIClient creates a new OpenAI chat client with the given configuration.
func NewOpenAIClient(cfg OpenAIConfig, log zerolog.Logger) *OpenAIClient {
	cfg.applyDefaults("gpt-4o")
	return &OpenAIClient{
		cfg:            cfg,
		client:         streamingHTTPClient(cfg.Timeout),
		circuitBreaker: NewCircuitBreaker("openai-chat", log),
	}
}

// StreamChat sends the transcript and streams back the answer.
func (c *OpenAIClient) StreamChat(ctx context.Context, transcript types.Transcript) (<-chan Chunk, error) {
	resp, err := Execute(ctx, c.circuitBreaker, func() (*http.Response, error) {
		return c.openStream(ctx, transcript)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go pump(ctx, resp.Body, out, sseData, decodeOpenAIChunk)
	return out, nil
}

func (c *OpenAIClient) openStream(ctx context.Context, transcript types.Transcript) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": convertToOpenAIMessages(transcript),
		"stream":   true,
	}
	if c.cfg.MaxTokens > 0 {
		reqBody["max_tokens"] = c.cfg.MaxTokens
	}
	if c.cfg.Temperature > 0 {
		reqBody["temperature"] = c.cfg.Temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, newStatusError("openai", resp)
	}
	return resp, nil
}

// decodeOpenAIChunk extracts the content delta from one SSE payload.
func decodeOpenAIChunk(data string) (string, bool, error) {
	if data == "[DONE]" {
		return "", true, nil
	}

	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, nil // Skip malformed chunks silently
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	return chunk.Choices[0].Delta.Content, false, nil
}

// convertToOpenAIMessages maps a transcript onto OpenAI message params.
func convertToOpenAIMessages(transcript types.Transcript) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, msg := range transcript {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ ChatStreamer = (*OpenAIClient)(nil)

// OpenAIEmbeddingClient implements EmbeddingGenerator using the OpenAI embeddings API.
type OpenAIEmbeddingClient struct {
	cfg            OpenAIConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIEmbeddingClient creates a new OpenAI embedding client.
func NewOpenAIEmbeddingClient(cfg OpenAIConfig, log zerolog.Logger) *OpenAIEmbeddingClient {
	cfg.applyDefaults("text-embedding-3-small")
	return &OpenAIEmbeddingClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker("openai-embed", log),
	}
}

// Embed generates an embedding vector for the given text.
func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return Execute(ctx, c.circuitBreaker, func() ([]float32, error) {
		return c.embed(ctx, text)
	})
}

func (c *OpenAIEmbeddingClient) embed(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(map[string]string{
		"model": c.cfg.Model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("openai", resp)
	}

	var respData openai.CreateEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Data) == 0 || len(respData.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	raw := respData.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// GetModel returns the configured model name.
func (c *OpenAIEmbeddingClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ EmbeddingGenerator = (*OpenAIEmbeddingClient)(nil)
