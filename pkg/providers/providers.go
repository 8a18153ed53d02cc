// Package providers talks to the language model API: chat turns,
// mini-model summaries, and embeddings, with retries and error
// classification. Everything model-shaped in the engine goes through
// the Client interface so tests can swap in fakes.
package providers

import "context"

// Message is one chat turn in API wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UsageInfo reports token accounting from the API.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is a parsed chat completion.
type LLMResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

// Options tune a single chat call. Zero values fall back to config.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Client is the model surface the rest of the engine consumes.
type Client interface {
	// Chat runs one completion against the main chat model.
	Chat(ctx context.Context, messages []Message, opts Options) (*LLMResponse, error)
	// SummarizeMini compresses text with the mini model, bounded to
	// roughly maxWords words.
	SummarizeMini(ctx context.Context, text string, maxWords int) (string, error)
	// Embed returns the embedding vector for a text.
	Embed(ctx context.Context, text string) ([]float64, error)
}
