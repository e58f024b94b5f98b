package llm

import "context"

// #region completer
// Request is one single-turn completion.
type Request struct {
	System string
	User   string

	// Schema, when set, asks the provider for JSON matching it.
	Schema     map[string]any
	SchemaName string

	MaxOutputTokens int64
}

// Completer is the narrow contract every provider satisfies.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// #endregion completer

// #region config
// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // optional override, used by tests
	Retry    RetryPolicy
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "gpt-4o"
	}
}

// #endregion config
