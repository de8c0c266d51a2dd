package main

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0, // random port
			RateLimit:       50,
			RateBurst:       50,
			ShutdownTimeout: 2 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Storage: config.StorageConfig{Engine: "sqlite", DataPath: filepath.Join(t.TempDir(), "data")},
		LLM: config.LLMConfig{
			Provider:          "ollama",
			EmbeddingProvider: "ollama",
			OllamaURL:         "http://127.0.0.1:1",
			OllamaModel:       "qwen2.5:7b",
			OllamaEmbedModel:  "nomic-embed-text",
			RequestTimeout:    time.Second,
			RetryMaxElapsed:   100 * time.Millisecond,
		},
		Retrieval: config.RetrievalConfig{TopK: 15, Threshold: 0.3, HistoryWindow: 8, DefaultMode: "coach"},
	}
}

func TestMainServer_Routes(t *testing.T) {
	cfg := testConfig(t)
	a, err := app.Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, addr, err := startServer(ctx, cfg, a, zerolog.Nop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/api/context")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// WebSocket upgrade fails via plain GET, but the route exists.
	resp, err = http.Get("http://" + addr + "/api/query/ws")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)

	// Ollama is unreachable, so the health check reports the embedding failure.
	resp, err = http.Get("http://" + addr + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	assert.NoError(t, srv.Wait())
}

func TestMainServer_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	a, err := app.Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	srv, _, err := startServer(ctx, cfg, a, zerolog.Nop())
	require.NoError(t, err)

	cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- srv.Wait() }()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down gracefully")
	}
}
