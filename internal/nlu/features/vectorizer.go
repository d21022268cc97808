package features

import (
	"math"
	"sort"
)

type Method string

const (
	MethodTFIDF      Method = "tfidf"
	MethodBagOfWords Method = "bow"
)

type Options struct {
	Method      Method
	NGramMax    int
	MaxFeatures int
	MinDF       int
}

func DefaultOptions() Options {
	return Options{Method: MethodTFIDF, NGramMax: 2, MaxFeatures: 5000, MinDF: 1}
}

// Vectorizer maps text to a fixed-length vector over a fitted vocabulary.
// A fitted Vectorizer is read-only and safe for concurrent use.
type Vectorizer struct {
	Method     Method         `json:"method"`
	NGramMax   int            `json:"ngram_max"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf,omitempty"`
}

// Fit learns the vocabulary (and idf weights for tf-idf) from texts.
func Fit(texts []string, opts Options) *Vectorizer {
	if opts.Method == "" {
		opts.Method = MethodTFIDF
	}
	if opts.NGramMax == 0 {
		opts.NGramMax = 2
	}
	if opts.MinDF == 0 {
		opts.MinDF = 1
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(text, opts.NGramMax) {
			tf[tok]++
			if !seen[tok] {
				df[tok]++
				seen[tok] = true
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= opts.MinDF {
			terms = append(terms, term)
		}
	}
	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:opts.MaxFeatures]
	}
	sort.Strings(terms)

	v := &Vectorizer{
		Method:     opts.Method,
		NGramMax:   opts.NGramMax,
		Vocabulary: make(map[string]int, len(terms)),
	}
	for i, term := range terms {
		v.Vocabulary[term] = i
	}

	if opts.Method == MethodTFIDF {
		n := float64(len(texts))
		v.IDF = make([]float64, len(terms))
		for i, term := range terms {
			v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
		}
	}
	return v
}

func (v *Vectorizer) Dim() int {
	return len(v.Vocabulary)
}

// Transform returns the feature vector of text. Tokens outside the
// vocabulary are ignored; tf-idf vectors are L2-normalized.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, len(v.Vocabulary))
	for _, tok := range Tokenize(text, v.NGramMax) {
		if idx, ok := v.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}

	if v.Method != MethodTFIDF {
		return vec
	}

	var norm float64
	for i := range vec {
		if vec[i] == 0 {
			continue
		}
		vec[i] *= v.IDF[i]
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
