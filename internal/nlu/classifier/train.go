package classifier

import (
	"errors"
	"math"
	"sort"
	"time"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

// Example is one labeled training utterance.
type Example struct {
	Text   string        `json:"text"`
	Intent models.Intent `json:"intent"`
}

type TrainOptions struct {
	Name     string
	Version  string
	Features features.Options
	// Alpha is the additive (Laplace) smoothing constant.
	Alpha float64
}

// Train fits a vectorizer and a multinomial Naive Bayes model on examples.
func Train(examples []Example, opts TrainOptions) (*Model, error) {
	if len(examples) == 0 {
		return nil, errors.New("no training examples")
	}
	if opts.Alpha == 0 {
		opts.Alpha = 1.0
	}
	// multinomial NB wants raw counts
	if opts.Features.Method == "" {
		opts.Features.Method = features.MethodBagOfWords
	}

	texts := make([]string, len(examples))
	labelSet := make(map[models.Intent]bool)
	for i, ex := range examples {
		texts[i] = ex.Text
		labelSet[ex.Intent] = true
	}
	labels := make([]models.Intent, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	labelIdx := make(map[models.Intent]int, len(labels))
	for i, l := range labels {
		labelIdx[l] = i
	}

	vec := features.Fit(texts, opts.Features)
	dim := vec.Dim()

	counts := make([][]float64, len(labels))
	for c := range counts {
		counts[c] = make([]float64, dim)
	}
	docs := make([]float64, len(labels))
	for _, ex := range examples {
		c := labelIdx[ex.Intent]
		docs[c]++
		for i, v := range vec.Transform(ex.Text) {
			counts[c][i] += v
		}
	}

	m := &Model{
		Name:           opts.Name,
		Version:        opts.Version,
		Algorithm:      AlgorithmNaiveBayes,
		Labels:         labels,
		Vectorizer:     vec,
		LogPriors:      make([]float64, len(labels)),
		LogLikelihoods: make([][]float64, len(labels)),
		CreatedAt:      time.Now().UTC(),
	}
	total := float64(len(examples))
	for c := range labels {
		m.LogPriors[c] = math.Log(docs[c] / total)

		var sum float64
		for _, v := range counts[c] {
			sum += v
		}
		denom := sum + opts.Alpha*float64(dim)
		row := make([]float64, dim)
		for i, v := range counts[c] {
			row[i] = math.Log((v + opts.Alpha) / denom)
		}
		m.LogLikelihoods[c] = row
	}
	return m, nil
}

// Metrics summarizes a holdout evaluation.
type Metrics struct {
	Accuracy float64                   `json:"accuracy"`
	MacroF1  float64                   `json:"macro_f1"`
	PerLabel map[models.Intent]float64 `json:"per_label_f1"`
	Support  int                       `json:"support"`
}

func Evaluate(c Classifier, examples []Example) Metrics {
	tp := make(map[models.Intent]float64)
	fp := make(map[models.Intent]float64)
	fn := make(map[models.Intent]float64)
	labels := make(map[models.Intent]bool)

	correct := 0
	for _, ex := range examples {
		got, _ := c.Predict(ex.Text)
		labels[ex.Intent] = true
		if got == ex.Intent {
			correct++
			tp[got]++
			continue
		}
		fp[got]++
		fn[ex.Intent]++
	}

	m := Metrics{PerLabel: make(map[models.Intent]float64), Support: len(examples)}
	if len(examples) == 0 {
		return m
	}
	m.Accuracy = float64(correct) / float64(len(examples))

	var f1Sum float64
	for l := range labels {
		precision, recall := 0.0, 0.0
		if tp[l]+fp[l] > 0 {
			precision = tp[l] / (tp[l] + fp[l])
		}
		if tp[l]+fn[l] > 0 {
			recall = tp[l] / (tp[l] + fn[l])
		}
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		m.PerLabel[l] = f1
		f1Sum += f1
	}
	m.MacroF1 = f1Sum / float64(len(labels))
	return m
}

// Split deterministically partitions examples, sending every k-th example
// to the holdout set.
func Split(examples []Example, k int) (train, holdout []Example) {
	if k < 2 {
		return examples, nil
	}
	for i, ex := range examples {
		if i%k == k-1 {
			holdout = append(holdout, ex)
		} else {
			train = append(train, ex)
		}
	}
	return train, holdout
}
