package generation

import (
	"context"
	"fmt"

	"github.com/deckly-app/deckly/internal/config"
)

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderHTTP:
		return NewHTTPGenerator(cfg.Endpoint, cfg.Timeout)
	case config.ProviderGemini, "":
		return NewGeminiGenerator(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.Endpoint})
	default:
		return nil, fmt.Errorf("generation: unknown provider %q", cfg.Provider)
	}
}
