package cascade

import (
	"context"
	"strings"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/metrics"
	"restaurant-receptionist/internal/models"
)

// Cascade resolves an utterance by trying stages in order and returning the
// first accepted classification.
type Cascade struct {
	stages []Stage
	logger logger.Logger
}

func New(log logger.Logger, stages ...Stage) *Cascade {
	kept := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Cascade{
		stages: kept,
		logger: log.With(map[string]interface{}{
			"component": "cascade",
		}),
	}
}

// Insert adds a stage at position i, clamped to the list bounds.
func (c *Cascade) Insert(i int, s Stage) {
	if i < 0 {
		i = 0
	}
	if i > len(c.stages) {
		i = len(c.stages)
	}
	c.stages = append(c.stages, nil)
	copy(c.stages[i+1:], c.stages[i:])
	c.stages[i] = s
}

// Stages returns stage names in evaluation order.
func (c *Cascade) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Resolve never fails: stage errors are logged and counted, and when no
// stage accepts the result is unknown at confidence 0.
func (c *Cascade) Resolve(ctx context.Context, text string, history []models.Exchange) models.Classification {
	if strings.TrimSpace(text) == "" {
		return models.Unclassified()
	}

	for _, stage := range c.stages {
		if ctx.Err() != nil {
			break
		}
		cls, accepted, err := stage.Attempt(ctx, text, history)
		if err != nil {
			metrics.CascadeStageErrors.WithLabelValues(stage.Name()).Inc()
			c.logger.Warn("cascade stage failed", map[string]interface{}{
				"stage": stage.Name(),
				"error": err.Error(),
			})
			continue
		}
		if !accepted {
			continue
		}

		metrics.IntentResolutions.WithLabelValues(string(cls.Provenance), string(cls.Intent)).Inc()
		c.logger.Debug("intent resolved", map[string]interface{}{
			"stage":      stage.Name(),
			"intent":     string(cls.Intent),
			"confidence": cls.Confidence,
		})
		return cls
	}

	unknown := models.Unclassified()
	metrics.IntentResolutions.WithLabelValues(string(unknown.Provenance), string(unknown.Intent)).Inc()
	return unknown
}
