package llm_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/pkg/types"
)

// ExampleOllamaClient_StreamChat demonstrates streaming an answer from a local Ollama server.
func ExampleOllamaClient_StreamChat() {
	client := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL: "http://localhost:11434",
		Model:   "qwen2.5:7b",
		Timeout: 30 * time.Second,
	}, zerolog.Nop())

	chunks, err := client.StreamChat(context.Background(), types.Transcript{
		{Role: types.RoleSystem, Content: "You are a concise assistant."},
		{Role: types.RoleUser, Content: "What is the capital of France?"},
	})
	if err != nil {
		log.Fatalf("Failed to open stream: %v", err)
	}

	for c := range chunks {
		if c.Err != nil {
			log.Fatalf("Stream failed: %v", c.Err)
		}
		fmt.Print(c.Content)
	}
	fmt.Println()
}

// ExampleOllamaClient_Embed demonstrates generating an embedding with the embedding model.
func ExampleOllamaClient_Embed() {
	embedder := llm.OllamaEmbedder{OllamaClient: llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:        "http://localhost:11434",
		EmbeddingModel: "nomic-embed-text",
	}, zerolog.Nop())}

	vec, err := embedder.Embed(context.Background(), "Walked along the river after work")
	if err != nil {
		log.Fatalf("Failed to embed: %v", err)
	}

	fmt.Printf("%s produced %d dimensions\n", embedder.GetModel(), len(vec))
}
