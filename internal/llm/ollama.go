package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/pkg/types"
)

// DefaultOllamaURL is where a local Ollama listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient handles communication with the Ollama API for local inference.
// One client serves chat (model) and embeddings (embedModel). All calls run
// behind circuit breakers to prevent cascading failures.
type OllamaClient struct {
	rest         *resty.Client // bounded requests: embeddings, version
	stream       *resty.Client // streamed chat, header timeout only
	chatBreaker  *CircuitBreaker
	embedBreaker *CircuitBreaker
	model        string
	embedModel   string
	temperature  float64
}

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the chat model (default: qwen2.5:7b)
	Model string

	// EmbeddingModel is the embedding model (default: nomic-embed-text)
	EmbeddingModel string

	// Timeout bounds embedding calls and stream setup (default: 60s)
	Timeout time.Duration

	Temperature float64
}

// ollamaChatRequest represents the request body for the /api/chat endpoint
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

// ollamaChatLine is one NDJSON line of a streamed /api/chat response
type ollamaChatLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// ollamaEmbedRequest represents the request body for /api/embed endpoint
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// ollamaEmbedResponse represents the response from /api/embed endpoint.
// The embeddings field is a 2D array; we always use the first (and only) embedding.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaClient creates a new Ollama client with the given configuration.
func NewOllamaClient(config OllamaConfig, log zerolog.Logger) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaURL
	}
	if config.Model == "" {
		config.Model = "qwen2.5:7b"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "nomic-embed-text"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	rest := resty.New().
		SetBaseURL(config.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(config.Timeout)

	stream := resty.NewWithClient(streamingHTTPClient(config.Timeout)).
		SetBaseURL(config.BaseURL).
		SetHeader("Content-Type", "application/json")

	return &OllamaClient{
		rest:         rest,
		stream:       stream,
		chatBreaker:  NewCircuitBreaker("ollama-chat", log),
		embedBreaker: NewCircuitBreaker("ollama-embed", log),
		model:        config.Model,
		embedModel:   config.EmbeddingModel,
		temperature:  config.Temperature,
	}
}

// StreamChat sends the transcript to /api/chat and streams the reply.
func (c *OllamaClient) StreamChat(ctx context.Context, transcript types.Transcript) (<-chan Chunk, error) {
	body, err := Execute(ctx, c.chatBreaker, func() (io.ReadCloser, error) {
		return c.openChat(ctx, transcript)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go pump(ctx, body, out, ndjsonLine, decodeOllamaLine)
	return out, nil
}

func (c *OllamaClient) openChat(ctx context.Context, transcript types.Transcript) (io.ReadCloser, error) {
	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: transcript,
		Stream:   true,
	}
	if c.temperature > 0 {
		reqBody.Options = map[string]any{"temperature": c.temperature}
	}

	resp, err := c.stream.R().
		SetContext(ctx).
		SetBody(&reqBody).
		SetDoNotParseResponse(true).
		Post("/api/chat")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer func() { _ = raw.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return nil, &StatusError{Provider: "ollama", Code: resp.StatusCode(), Body: strings.TrimSpace(string(msg))}
	}
	return raw, nil
}

func decodeOllamaLine(line string) (string, bool, error) {
	var msg ollamaChatLine
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return "", false, nil // Skip malformed lines silently
	}
	if msg.Error != "" {
		return "", false, errors.New("ollama: " + msg.Error)
	}
	return msg.Message.Content, msg.Done, nil
}

// Embed generates embeddings for the given text using the embedding model.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return Execute(ctx, c.embedBreaker, func() ([]float32, error) {
		return c.embed(ctx, text)
	})
}

func (c *OllamaClient) embed(ctx context.Context, text string) ([]float32, error) {
	var result ollamaEmbedResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(&ollamaEmbedRequest{Model: c.embedModel, Input: text}).
		SetResult(&result).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{Provider: "ollama", Code: resp.StatusCode(), Body: resp.String()}
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding vector")
	}
	return result.Embeddings[0], nil
}

// HealthCheck verifies that Ollama is reachable by checking the /api/version endpoint.
// This does not use circuit breaker protection since it's a health check itself.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get("/api/version")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// GetModel returns the chat model name.
func (c *OllamaClient) GetModel() string {
	return c.model
}

// OllamaEmbedder exposes an OllamaClient's embedding model through
// EmbeddingGenerator so GetModel reports the embedding model.
type OllamaEmbedder struct {
	*OllamaClient
}

// GetModel returns the embedding model name.
func (e OllamaEmbedder) GetModel() string {
	return e.embedModel
}

// Compile-time assertions.
var (
	_ ChatStreamer       = (*OllamaClient)(nil)
	_ EmbeddingGenerator = OllamaEmbedder{}
)
