package port

import "context"

// AIProvider abstracts the AI/LLM backend for embeddings and chat completions.
// Implementations can target Ollama, OpenAI, or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the chat model being used.
	ModelName() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call,
	// order-preserving: one vector per input string.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat sends a system + user prompt and returns the LLM response text.
	Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
