package llm

import (
	"context"
	"fmt"

	"github.com/tesis/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OptionsFromConfig maps the llm config section to call options
func OptionsFromConfig(cfg config.LLMConfig) Options {
	opts := DefaultOptions()
	if cfg.RequestsPerSecond > 0 {
		opts.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.Burst > 0 {
		opts.Burst = cfg.Burst
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	return opts
}

// RegistryFromConfig registers every provider that has an API key. A
// registry without providers is valid; generation then fails with
// INVALID_INPUT until one is configured.
func RegistryFromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Registry, error) {
	registry := NewRegistry(cfg.DefaultProvider)
	opts := OptionsFromConfig(cfg)

	if cfg.GeminiAPIKey != "" {
		p, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:       cfg.GeminiAPIKey,
			DefaultModel: cfg.GeminiModel,
		}, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		registry.Register(p)
	}
	if cfg.GroqAPIKey != "" {
		p, err := NewGroqProvider(GroqConfig{
			APIKey:       cfg.GroqAPIKey,
			DefaultModel: cfg.GroqModel,
			BaseURL:      cfg.GroqBaseURL,
		}, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("groq: %w", err)
		}
		registry.Register(p)
	}

	if names := registry.Names(); len(names) == 0 {
		logger.Warn("No LLM provider configured; set TESIS_LLM_GEMINI_API_KEY or TESIS_LLM_GROQ_API_KEY")
	} else {
		logger.Info("LLM providers registered",
			zap.Strings("providers", names),
			zap.String("default", registry.DefaultName()))
	}
	return registry, nil
}
