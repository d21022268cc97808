package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

const AlgorithmNaiveBayes = "multinomial_naive_bayes"

// Classifier maps an utterance to an intent and a confidence in [0,1].
type Classifier interface {
	Predict(text string) (models.Intent, float64)
}

// Model is a multinomial Naive Bayes classifier over Vectorizer features.
// A loaded Model is read-only and safe for concurrent use.
type Model struct {
	Name           string               `json:"name"`
	Version        string               `json:"version"`
	Algorithm      string               `json:"algorithm"`
	Labels         []models.Intent      `json:"labels"`
	Vectorizer     *features.Vectorizer `json:"vectorizer"`
	LogPriors      []float64            `json:"log_priors"`
	LogLikelihoods [][]float64          `json:"log_likelihoods"`
	CreatedAt      time.Time            `json:"created_at"`
}

var _ Classifier = (*Model)(nil)

// Predict returns the most probable label and its posterior probability.
// Text with no known features yields unknown at confidence 0.
func (m *Model) Predict(text string) (models.Intent, float64) {
	x := m.Vectorizer.Transform(text)

	hasSignal := false
	for _, v := range x {
		if v != 0 {
			hasSignal = true
			break
		}
	}
	if !hasSignal || len(m.Labels) == 0 {
		return models.IntentUnknown, 0
	}

	scores := make([]float64, len(m.Labels))
	for c := range m.Labels {
		s := m.LogPriors[c]
		row := m.LogLikelihoods[c]
		for i, v := range x {
			if v != 0 {
				s += v * row[i]
			}
		}
		scores[c] = s
	}

	best := 0
	maxScore := scores[0]
	for c, s := range scores {
		if s > maxScore {
			best, maxScore = c, s
		}
	}

	// softmax, shifted by the max for stability
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	return m.Labels[best], 1 / sum
}

func (m *Model) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	if m.Vectorizer == nil {
		return errors.New("missing vectorizer")
	}
	if len(m.LogPriors) != len(m.Labels) || len(m.LogLikelihoods) != len(m.Labels) {
		return errors.New("label, prior and likelihood counts differ")
	}
	dim := m.Vectorizer.Dim()
	for _, row := range m.LogLikelihoods {
		if len(row) != dim {
			return fmt.Errorf("likelihood row has %d features, vectorizer has %d", len(row), dim)
		}
	}
	return nil
}
