package driven

import "context"

// LLMService provides language model operations for query understanding.
// This is an optional service - when nil, query classification falls back
// to deterministic heuristics.
type LLMService interface {
	// Chat conducts a completion over a message sequence.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ClassifyQuery classifies a search query's intent and likely
	// source types, optionally suggesting expansion terms.
	ClassifyQuery(ctx context.Context, query string) (QueryClassification, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// QueryClassification is the raw classifier output before the query
// processor validates it against the supported enums.
type QueryClassification struct {
	// Intent is the classified intent name.
	Intent string

	// SourceTypes are the likely source type names.
	SourceTypes []string

	// ExpandedTerms are optional additional search terms.
	ExpandedTerms []string
}
