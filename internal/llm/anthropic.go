package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/pkg/types"
)

// DefaultAnthropicBaseURL is the Anthropic API base URL.
const DefaultAnthropicBaseURL = "https://api.anthropic.com"

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey      string
	Model       string        // default: claude-3-5-sonnet-20241022
	BaseURL     string        // default: https://api.anthropic.com
	Timeout     time.Duration // default: 60s, stream setup only
	MaxTokens   int           // default: 2048
	Temperature float64
}

// AnthropicClient implements ChatStreamer using the Anthropic Messages API.
// Anthropic offers no embeddings, so it only ever serves generation.
type AnthropicClient struct {
	cfg            AnthropicConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewAnthropicClient creates a new Anthropic client with the given configuration.
func NewAnthropicClient(cfg AnthropicConfig, log zerolog.Logger) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	return &AnthropicClient{
		cfg:            cfg,
		client:         streamingHTTPClient(cfg.Timeout),
		circuitBreaker: NewCircuitBreaker("anthropic-chat", log),
	}
}

// anthropicMessagesRequest is the request body for POST /v1/messages.
type anthropicMessagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicEvent covers the streamed event payloads we act on.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamChat sends the transcript and streams back the answer. System
// messages are lifted into the top-level system prompt.
func (c *AnthropicClient) StreamChat(ctx context.Context, transcript types.Transcript) (<-chan Chunk, error) {
	resp, err := Execute(ctx, c.circuitBreaker, func() (*http.Response, error) {
		return c.openStream(ctx, transcript)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go pump(ctx, resp.Body, out, sseData, decodeAnthropicEvent)
	return out, nil
}

func (c *AnthropicClient) openStream(ctx context.Context, transcript types.Transcript) (*http.Response, error) {
	system, messages := splitSystem(transcript)
	reqBody := anthropicMessagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    system,
		Messages:  messages,
		Stream:    true,
	}
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		reqBody.Temperature = &t
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "text/event-stream")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, newStatusError("anthropic", resp)
	}
	return resp, nil
}

// splitSystem joins system messages into one prompt and keeps the rest in order.
func splitSystem(transcript types.Transcript) (string, []anthropicMessage) {
	var system []string
	messages := make([]anthropicMessage, 0, len(transcript))
	for _, msg := range transcript {
		switch msg.Role {
		case types.RoleSystem:
			system = append(system, msg.Content)
		case types.RoleAssistant:
			messages = append(messages, anthropicMessage{Role: "assistant", Content: msg.Content})
		default:
			messages = append(messages, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}
	return strings.Join(system, "\n\n"), messages
}

func decodeAnthropicEvent(data string) (string, bool, error) {
	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", false, nil // Skip malformed events silently
	}
	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, false, nil
		}
	case "message_stop":
		return "", true, nil
	case "error":
		return "", false, errors.New("anthropic: " + ev.Error.Type + ": " + ev.Error.Message)
	}
	return "", false, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ ChatStreamer = (*AnthropicClient)(nil)
