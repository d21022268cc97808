package cascade

import (
	"context"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/classifier"
	"restaurant-receptionist/internal/nlu/fallback"
	"restaurant-receptionist/internal/nlu/rules"
)

// Stage is one step of the cascade. accepted=false passes the utterance on
// to the next stage; an error is logged and treated the same way.
type Stage interface {
	Name() string
	Attempt(ctx context.Context, text string, history []models.Exchange) (cls models.Classification, accepted bool, err error)
}

// ClassifierStage accepts a trained model's label when its confidence
// reaches the threshold (inclusive). A nil model is skipped.
type ClassifierStage struct {
	Model     classifier.Classifier
	Threshold float64
}

func (s *ClassifierStage) Name() string { return string(models.ProvenanceClassifier) }

func (s *ClassifierStage) Attempt(ctx context.Context, text string, _ []models.Exchange) (models.Classification, bool, error) {
	if s.Model == nil {
		return models.Classification{}, false, nil
	}
	intent, conf := s.Model.Predict(text)
	cls := models.Classification{Intent: intent, Confidence: conf, Provenance: models.ProvenanceClassifier}
	if intent == models.IntentUnknown || conf < s.Threshold {
		return cls, false, nil
	}
	return cls, true, nil
}

type RuleStage struct {
	Matcher *rules.Matcher
}

func (s *RuleStage) Name() string { return string(models.ProvenanceRule) }

func (s *RuleStage) Attempt(ctx context.Context, text string, _ []models.Exchange) (models.Classification, bool, error) {
	intent, ok := s.Matcher.Match(text)
	if !ok {
		return models.Classification{}, false, nil
	}
	return models.Classification{Intent: intent, Confidence: 1.0, Provenance: models.ProvenanceRule}, true, nil
}

type FallbackStage struct {
	Classifier *fallback.Classifier
}

func (s *FallbackStage) Name() string { return string(models.ProvenanceGenerativeFallback) }

func (s *FallbackStage) Attempt(ctx context.Context, text string, history []models.Exchange) (models.Classification, bool, error) {
	cls, err := s.Classifier.Classify(ctx, text, history)
	if err != nil {
		return models.Classification{}, false, err
	}
	return cls, true, nil
}
