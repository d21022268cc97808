package generation

import (
	"context"

	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/logger"
)

// New builds the client selected by cfg.Provider, rate limited when
// RateLimitRPS is set.
func New(ctx context.Context, cfg config.GenAIConfig, log logger.Logger) (Client, error) {
	var client Client
	switch cfg.Provider {
	case "gemini":
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, log)
		if err != nil {
			return nil, err
		}
		client = g
	case "http":
		if cfg.BaseURL == "" {
			log.Warn("genai base_url not set, generation disabled", nil)
			return Unconfigured{}, nil
		}
		client = NewHTTPClient(HTTPConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			MaxRetries: cfg.MaxRetries,
			Timeout:    config.GetDuration(cfg.Timeout),
		}, log)
	default:
		return Unconfigured{}, nil
	}

	if cfg.RateLimitRPS > 0 {
		client = NewRateLimited(client, cfg.RateLimitRPS, cfg.Burst)
	}
	return client, nil
}
