// Package llm declares the LanguageBackend capability: the provider plug-in
// point for embeddings and text generation. Concrete adapters (OpenAI-like,
// Anthropic-like, Gemini-like, Ollama-like, ...) live outside this module;
// this package only specifies the contract every adapter must satisfy.
package llm

import (
	"context"
	"iter"
)

// StreamChunk is a single incremental piece of a streamed generation.
type StreamChunk struct {
	Delta        string
	FinishReason string
	Usage        *Usage
}

// Usage reports token accounting for a generation call, when the backend
// provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Backend is the capability interface every language-model provider plugs
// into the orchestrator through. Implementations must keep the embedding
// dimension consistent across calls and must yield streaming chunks in
// production order.
type Backend interface {
	// EmbedDocuments embeds a batch of texts, returning one vector per
	// input in the same order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)

	// Generate produces a complete, non-streamed answer for prompt, with
	// an optional system instruction.
	Generate(ctx context.Context, prompt string, system string) (string, error)

	// GenerateStream produces an answer incrementally. The returned
	// iterator must stop producing values and release any underlying
	// connection when its consumer stops ranging over it or ctx is
	// cancelled.
	GenerateStream(ctx context.Context, prompt string, system string) iter.Seq2[StreamChunk, error]
}

// Scorer is a narrower capability used by the reranker and evaluator: a
// single free-form completion used to extract a numeric judgement.
type Scorer interface {
	Generate(ctx context.Context, prompt string, system string) (string, error)
}
