package llm

import (
	"context"
	"fmt"
)

// New builds the completer named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
