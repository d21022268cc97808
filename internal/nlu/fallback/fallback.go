package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/generation"
	"restaurant-receptionist/internal/models"
)

var ErrFallbackFailed = errors.New("FALLBACK_CLASSIFICATION_FAILED")

type Config struct {
	Timeout    time.Duration
	Confidence float64
	// HistoryTurns is how many recent exchanges are quoted in the prompt.
	HistoryTurns int
}

func DefaultConfig() Config {
	return Config{Timeout: 3 * time.Second, Confidence: 0.6, HistoryTurns: 2}
}

// Classifier asks a generative model to label an utterance with one of the
// known intents.
type Classifier struct {
	config Config
	client generation.Client
	logger logger.Logger
}

func New(config Config, client generation.Client, log logger.Logger) *Classifier {
	return &Classifier{
		config: config,
		client: client,
		logger: log.With(map[string]interface{}{
			"component": "fallback_classifier",
		}),
	}
}

// Classify returns the parsed label. An unrecognized reply is unknown at
// confidence 0; call failures are returned as errors.
func (c *Classifier) Classify(ctx context.Context, text string, history []models.Exchange) (models.Classification, error) {
	res := generation.Invoke(ctx, c.client, "fallback", generation.Request{
		Prompt:      c.buildPrompt(text, history),
		MaxTokens:   20,
		Temperature: 0.1,
		Timeout:     c.config.Timeout,
	})
	if !res.OK() {
		return models.Classification{}, fmt.Errorf("%w: %v", ErrFallbackFailed, res.Err)
	}

	intent := ParseLabel(res.Text)
	cls := models.Classification{
		Intent:     intent,
		Provenance: models.ProvenanceGenerativeFallback,
	}
	if intent != models.IntentUnknown {
		cls.Confidence = c.config.Confidence
	}

	c.logger.Debug("fallback label parsed", map[string]interface{}{
		"raw":    res.Text,
		"intent": string(intent),
	})
	return cls, nil
}

func (c *Classifier) buildPrompt(text string, history []models.Exchange) string {
	labels := make([]string, 0, len(models.AllIntents()))
	for _, in := range models.AllIntents() {
		labels = append(labels, string(in))
	}

	var parts []string
	parts = append(parts, "You label what a restaurant caller wants.")
	parts = append(parts, "Reply with exactly one label from this list and nothing else:")
	parts = append(parts, strings.Join(labels, ", "))

	if n := c.config.HistoryTurns; n > 0 && len(history) > 0 {
		if len(history) > n {
			history = history[len(history)-n:]
		}
		parts = append(parts, "\nRecent conversation:")
		for _, ex := range history {
			parts = append(parts, fmt.Sprintf("Caller: %s", ex.Utterance))
			parts = append(parts, fmt.Sprintf("Receptionist: %s", ex.Reply))
		}
	}

	parts = append(parts, fmt.Sprintf("\nCaller: %s", text))
	parts = append(parts, "Label:")
	return strings.Join(parts, "\n")
}

// ParseLabel maps the first token of a model reply onto the intent set.
func ParseLabel(reply string) models.Intent {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return models.IntentUnknown
	}
	first := fields[0]
	if i := strings.IndexByte(first, ':'); i >= 0 && i < len(first)-1 {
		// "intent:hours"
		first = first[i+1:]
	}
	return models.ParseIntent(first)
}
