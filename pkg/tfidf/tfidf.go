// Package tfidf implements a term-frequency / inverse-document-frequency
// text vectorizer producing L2-normalized sparse vectors.
package tfidf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ErrEmptyVocabulary is returned when pruning removes every term.
var ErrEmptyVocabulary = errors.New("no terms remain after pruning; try a lower min_df or a higher max_df")

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Params control vocabulary construction.
type Params struct {
	MaxFeatures int     `json:"max_features" yaml:"max_features"`
	MinDF       int     `json:"min_df"       yaml:"min_df"`
	MaxDF       float64 `json:"max_df"       yaml:"max_df"`
	NGramMin    int     `json:"ngram_min"    yaml:"ngram_min"`
	NGramMax    int     `json:"ngram_max"    yaml:"ngram_max"`
}

// DefaultParams returns the vectorizer settings used for listing text.
func DefaultParams() Params {
	return Params{MaxFeatures: 5000, MinDF: 1, MaxDF: 0.95, NGramMin: 1, NGramMax: 2}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	var errs []error
	if p.MaxFeatures < 0 {
		errs = append(errs, fmt.Errorf("max_features must be >= 0 (got %d)", p.MaxFeatures))
	}
	if p.MinDF < 1 {
		errs = append(errs, fmt.Errorf("min_df must be >= 1 (got %d)", p.MinDF))
	}
	if p.MaxDF <= 0 || p.MaxDF > 1 {
		errs = append(errs, fmt.Errorf("max_df must be in (0, 1] (got %g)", p.MaxDF))
	}
	if p.NGramMin < 1 || p.NGramMax < p.NGramMin {
		errs = append(errs, fmt.Errorf("invalid ngram range (%d, %d)", p.NGramMin, p.NGramMax))
	}
	return errors.Join(errs...)
}

// Vectorizer is a fitted TF-IDF model.
type Vectorizer struct {
	Params     Params         `json:"params"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// Vector is a sparse vector with ascending indexes.
type Vector struct {
	Indexes []int
	Values  []float64
}

// Analyze lower-cases text, tokenizes it, drops stop words and expands the
// token stream into n-grams.
func (p Params) Analyze(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, stop := englishStopWords[t]; !stop {
			tokens = append(tokens, t)
		}
	}

	var terms []string
	for n := p.NGramMin; n <= p.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// Fit learns the vocabulary and idf weights from docs.
func Fit(docs []string, p Params) (*Vectorizer, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents")
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]struct{})
		for _, term := range p.Analyze(d) {
			tf[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	maxDocs := p.MaxDF * float64(len(docs))
	kept := make([]string, 0, len(df))
	for term, n := range df {
		if n >= p.MinDF && float64(n) <= maxDocs {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}

	if p.MaxFeatures > 0 && len(kept) > p.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:p.MaxFeatures]
	}
	sort.Strings(kept)

	v := &Vectorizer{
		Params:     p,
		Vocabulary: make(map[string]int, len(kept)),
		IDF:        make([]float64, len(kept)),
	}
	n := float64(len(docs))
	for i, term := range kept {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v, nil
}

// Validate reports structural problems in a deserialized vectorizer.
func (v *Vectorizer) Validate() error {
	if len(v.Vocabulary) == 0 {
		return ErrEmptyVocabulary
	}
	if len(v.IDF) != len(v.Vocabulary) {
		return fmt.Errorf("vocabulary has %d terms but %d idf weights", len(v.Vocabulary), len(v.IDF))
	}
	for term, i := range v.Vocabulary {
		if i < 0 || i >= len(v.IDF) {
			return fmt.Errorf("term %q has index %d out of range", term, i)
		}
	}
	return nil
}

// Transform vectorizes every document against the fitted vocabulary.
// Unknown terms are ignored.
func (v *Vectorizer) Transform(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for d, doc := range docs {
		counts := make(map[int]float64)
		for _, term := range v.Params.Analyze(doc) {
			if i, ok := v.Vocabulary[term]; ok {
				counts[i]++
			}
		}
		vec := Vector{Indexes: make([]int, 0, len(counts)), Values: make([]float64, 0, len(counts))}
		for i := range counts {
			vec.Indexes = append(vec.Indexes, i)
		}
		sort.Ints(vec.Indexes)
		var norm float64
		for _, i := range vec.Indexes {
			w := counts[i] * v.IDF[i]
			vec.Values = append(vec.Values, w)
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for i := range vec.Values {
				vec.Values[i] /= norm
			}
		}
		out[d] = vec
	}
	return out
}

// Dot is the inner product of two sparse vectors.
func Dot(a, b Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indexes) && j < len(b.Indexes) {
		switch {
		case a.Indexes[i] == b.Indexes[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indexes[i] < b.Indexes[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm is the Euclidean length of v.
func Norm(v Vector) float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero.
func Cosine(a, b Vector) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}
