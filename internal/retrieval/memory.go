package retrieval

import (
	"context"
	"sort"

	"restaurant-receptionist/internal/nlu/features"
)

// MemoryIndex ranks passages by tf-idf cosine similarity.
type MemoryIndex struct {
	passages []Passage
	vec      *features.Vectorizer
	vectors  [][]float64
}

func NewMemoryIndex(passages []Passage) *MemoryIndex {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Title + " " + p.Text
	}
	opts := features.DefaultOptions()
	opts.NGramMax = 1
	vec := features.Fit(texts, opts)

	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		vectors[i] = vec.Transform(t)
	}
	return &MemoryIndex{passages: passages, vec: vec, vectors: vectors}
}

// Retrieve returns passages with a positive similarity to query.
func (m *MemoryIndex) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := m.vec.Transform(query)

	scored := make([]Passage, 0, len(m.passages))
	for i, p := range m.passages {
		s := features.Cosine(q, m.vectors[i])
		if s <= 0 {
			continue
		}
		p.Score = s
		scored = append(scored, p)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
