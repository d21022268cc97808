package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "restaurant-receptionist/internal/common/http"
	"restaurant-receptionist/internal/common/logger"
)

type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	Timeout    time.Duration
}

// HTTPClient calls a JSON generate endpoint ({base}/api/ai/generate).
type HTTPClient struct {
	config HTTPConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewHTTPClient(config HTTPConfig, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{
			"component": "generation.http",
		}),
	}
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	body := map[string]interface{}{
		"prompt":      req.Prompt,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if req.System != "" {
		body["system"] = req.System
	}

	headers := map[string]string{}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrTimeout
			}
		}

		resp, lastErr = c.client.PostJSON(ctx, c.config.BaseURL+"/api/ai/generate", headers, body)
		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			if resp != nil {
				resp.Body.Close()
			}
			return "", ErrTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				return "", fmt.Errorf("%w: status %d", ErrQuota, resp.StatusCode)
			}
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		c.logger.Warn("generate call failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrMalformed, err)
	}
	text := strings.TrimSpace(apiResponse.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrMalformed)
	}
	return text, nil
}
