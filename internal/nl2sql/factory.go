package nl2sql

import (
	"fmt"

	"github.com/tickerql/tickerql/internal/config"
)

// NewFromConfig builds the generator selected by cfg.Provider.
func NewFromConfig(cfg config.AIConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderDummy, "":
		return DummyGenerator{}, nil
	case config.ProviderOllama:
		return NewOllamaGenerator(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Seed:        cfg.Seed,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported sql generator provider %q", cfg.Provider)
	}
}
