package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"restaurant-receptionist/internal/common/logger"
)

// GeminiClient generates text through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger logger.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, log logger.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  model,
		logger: log.With(map[string]interface{}{
			"component": "generation.gemini",
			"model":     model,
		}),
	}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", g.mapError(ctx, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrMalformed)
	}
	return text, nil
}

func (g *GeminiClient) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		g.logger.Warn("gemini api error", map[string]interface{}{
			"code":   apiErr.Code,
			"status": apiErr.Status,
		})
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return fmt.Errorf("%w: %v", ErrQuota, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
