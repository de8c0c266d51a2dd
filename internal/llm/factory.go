package llm

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/config"
	"github.com/scrypster/reverie/internal/retry"
)

// NewChatStreamer creates the ChatStreamer for cfg.Provider, wrapped with
// stream-open retries.
func NewChatStreamer(cfg config.LLMConfig, log zerolog.Logger) (ChatStreamer, error) {
	var base ChatStreamer
	switch cfg.Provider {
	case "openai":
		base = NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			Timeout:     cfg.RequestTimeout,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, log)
	case "anthropic":
		base = NewAnthropicClient(AnthropicConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			Timeout:     cfg.RequestTimeout,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, log)
	case "ollama", "":
		base = NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			Model:          cfg.OllamaModel,
			EmbeddingModel: cfg.OllamaEmbedModel,
			Timeout:        cfg.RequestTimeout,
			Temperature:    cfg.Temperature,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
	return NewRetryingStreamer(base, RetryPolicy(cfg), log), nil
}

// NewEmbeddingGenerator creates the EmbeddingGenerator for
// cfg.EmbeddingProvider (falling back to cfg.Provider), wrapped with retries.
func NewEmbeddingGenerator(cfg config.LLMConfig, log zerolog.Logger) (EmbeddingGenerator, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	var base EmbeddingGenerator
	switch provider {
	case "openai":
		base = NewOpenAIEmbeddingClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIEmbedModel,
			BaseURL: cfg.OpenAIBaseURL,
		}, log)
	case "ollama", "":
		base = OllamaEmbedder{NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			Model:          cfg.OllamaModel,
			EmbeddingModel: cfg.OllamaEmbedModel,
		}, log)}
	default:
		// Anthropic and others don't support embeddings
		return nil, fmt.Errorf("provider %q does not support embeddings", provider)
	}
	return NewRetryingEmbedder(base, RetryPolicy(cfg), log), nil
}

// RetryPolicy derives the provider retry policy from configuration.
func RetryPolicy(cfg config.LLMConfig) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.RetryMaxElapsed > 0 {
		p.MaxElapsed = cfg.RetryMaxElapsed
	}
	return p
}
