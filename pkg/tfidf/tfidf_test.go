package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	p := Params{NGramMin: 1, NGramMax: 2}
	got := p.Analyze("The Fresh sourdough, and a loaf!")
	assert.Equal(t, []string{"fresh", "sourdough", "loaf", "fresh sourdough", "sourdough loaf"}, got)

	assert.Empty(t, p.Analyze("a an the"))
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultParams().Validate())
	require.Error(t, Params{MinDF: 0, MaxDF: 2, NGramMin: 2, NGramMax: 1}.Validate())
}

func TestFit(t *testing.T) {
	t.Parallel()

	docs := []string{
		"fresh bread bakery",
		"stale bread bakery",
		"whole milk dairy",
		"greek yogurt dairy",
	}
	v, err := Fit(docs, Params{MinDF: 1, MaxDF: 1, NGramMin: 1, NGramMax: 1})
	require.NoError(t, err)
	require.NoError(t, v.Validate())

	assert.Contains(t, v.Vocabulary, "bread")
	assert.Contains(t, v.Vocabulary, "dairy")
	assert.Greater(t, v.IDF[v.Vocabulary["fresh"]], v.IDF[v.Vocabulary["bread"]],
		"rarer terms weigh more")
}

func TestFit_DocumentFrequencyBounds(t *testing.T) {
	t.Parallel()

	docs := []string{"apple pear", "apple plum", "apple fig"}

	v, err := Fit(docs, Params{MinDF: 2, MaxDF: 1, NGramMin: 1, NGramMax: 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"apple": 0}, v.Vocabulary)

	v, err = Fit(docs, Params{MinDF: 1, MaxDF: 0.9, NGramMin: 1, NGramMax: 1})
	require.NoError(t, err)
	assert.NotContains(t, v.Vocabulary, "apple")

	_, err = Fit([]string{"the and"}, DefaultParams())
	require.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestFit_MaxFeaturesKeepsMostFrequent(t *testing.T) {
	t.Parallel()

	docs := []string{"milk milk cheese", "milk butter", "cheese eggs"}
	v, err := Fit(docs, Params{MaxFeatures: 2, MinDF: 1, MaxDF: 1, NGramMin: 1, NGramMax: 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cheese": 0, "milk": 1}, v.Vocabulary)
}

func TestTransform_Normalized(t *testing.T) {
	t.Parallel()

	docs := []string{"fresh bread bakery", "stale bread bakery", "whole milk dairy"}
	v, err := Fit(docs, DefaultParams())
	require.NoError(t, err)

	vecs := v.Transform(append(docs, "unseen words only"))
	require.Len(t, vecs, 4)
	for _, vec := range vecs[:3] {
		assert.InDelta(t, 1.0, Norm(vec), 1e-9)
	}
	assert.Empty(t, vecs[3].Indexes)
	assert.Equal(t, 0.0, Cosine(vecs[0], vecs[3]))

	assert.Greater(t, Cosine(vecs[0], vecs[1]), Cosine(vecs[0], vecs[2]))
	assert.InDelta(t, 1.0, Cosine(vecs[0], vecs[0]), 1e-9)
}

func TestDot(t *testing.T) {
	t.Parallel()

	a := Vector{Indexes: []int{0, 2, 5}, Values: []float64{1, 2, 3}}
	b := Vector{Indexes: []int{2, 3, 5}, Values: []float64{4, 1, 1}}
	assert.Equal(t, 11.0, Dot(a, b))
}
