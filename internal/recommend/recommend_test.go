package recommend

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/pkg/tfidf"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var groups = map[string][]string{
	"bakery":  {"sourdough bread loaf", "rye bread rolls", "wholemeal bread", "bread baguette", "bread croissant pastry", "seeded bread loaf", "bread buns"},
	"dairy":   {"whole milk bottle", "milk yogurt", "skimmed milk", "milk cheese cheddar", "oat milk carton", "milk butter", "chocolate milk"},
	"produce": {"apple fruit bag", "fruit banana bunch", "carrot fruit mix", "fruit salad bowl", "pear fruit", "fruit berries punnet", "citrus fruit box"},
}

func testCorpus() *domain.Corpus {
	c := &domain.Corpus{}
	for _, cat := range []string{"bakery", "dairy", "produce"} {
		for i, title := range groups[cat] {
			item := domain.CorpusItem{Title: title, Category: cat}
			if i%2 == 0 {
				c.Listings = append(c.Listings, item)
			} else {
				c.Products = append(c.Products, domain.CorpusItem{ProductName: title, Category: cat})
			}
		}
	}
	for u := int64(1); u <= 5; u++ {
		c.Interactions = append(c.Interactions, domain.Interaction{ID: u, UserID: u, Type: domain.InteractionConsumed})
	}
	return c
}

func testActions() []domain.CategoryAction {
	return []domain.CategoryAction{
		{UserID: 1, Category: "dairy", Type: domain.InteractionConsumed, Count: 2},
		{UserID: 1, Category: "Bakery", Type: domain.InteractionShared, Count: 3},
		{UserID: 1, Category: "produce", Type: domain.InteractionOther, Count: 50},
		{UserID: 2, Category: "produce", Type: domain.InteractionSold, Count: 1},
		{UserID: 3, Category: "dairy", Type: domain.InteractionOther, Count: 4},
	}
}

func trainedArtifact(t *testing.T) *Artifact {
	t.Helper()
	res, a, err := NewTrainer(DefaultTrainerConfig(), WithTrainerLogger(quietLogger())).Train(testCorpus(), testActions())
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	require.NotNil(t, a)
	return a
}

func ptr(v float64) *float64 { return &v }

func TestUserProfiles(t *testing.T) {
	t.Parallel()

	profiles := UserProfiles(testActions())

	require.Len(t, profiles, 2)
	assert.InDelta(t, 1.0, profiles[1]["bakery"], 1e-9)
	assert.InDelta(t, 1.0/3, profiles[1]["dairy"], 1e-9)
	assert.NotContains(t, profiles[1], "produce")
	assert.InDelta(t, 1.0, profiles[2]["produce"], 1e-9)
	assert.NotContains(t, profiles, int64(3))
}

func TestGlobalWeights(t *testing.T) {
	t.Parallel()

	t.Run("weighted and filled", func(t *testing.T) {
		t.Parallel()
		w := GlobalWeights(testActions())
		assert.InDelta(t, 1.0, w["bakery"], 1e-9)
		assert.InDelta(t, 0.3333, w["dairy"], 1e-9)
		assert.InDelta(t, 0.3333, w["produce"], 1e-9)
		assert.InDelta(t, DefaultCategoryWeight, w["seafood"], 1e-9)
		assert.Len(t, w, 11)
	})

	t.Run("no positive actions", func(t *testing.T) {
		t.Parallel()
		w := GlobalWeights([]domain.CategoryAction{{UserID: 1, Category: "dairy", Type: domain.InteractionOther, Count: 9}})
		assert.Len(t, w, 11)
		for c, v := range w {
			assert.InDelta(t, 1.0, v, 1e-9, c)
		}
	})
}

func TestTrain_InsufficientUsers(t *testing.T) {
	t.Parallel()

	c := testCorpus()
	c.Interactions = c.Interactions[:2]
	res, a, err := NewTrainer(DefaultTrainerConfig(), WithTrainerLogger(quietLogger())).Train(c, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.UsersAvailable)
	assert.Equal(t, 5, res.UsersRequired)
	require.ErrorIs(t, res.Err(), ErrInsufficientData)
	assert.Contains(t, res.Error, "2 users (need 5)")
}

func TestTrain_InsufficientProducts(t *testing.T) {
	t.Parallel()

	c := testCorpus()
	c.Products = nil
	res, a, err := NewTrainer(DefaultTrainerConfig(), WithTrainerLogger(quietLogger())).Train(c, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.False(t, res.Success)
	assert.Equal(t, 12, res.ProductsAvailable)
	assert.Equal(t, 20, res.ProductsRequired)
	assert.Contains(t, res.Error, "12 products (need 20)")
}

func TestTrain_Success(t *testing.T) {
	t.Parallel()

	res, a, err := NewTrainer(DefaultTrainerConfig(), WithTrainerLogger(quietLogger())).Train(testCorpus(), testActions())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, a)

	assert.Equal(t, Algorithm, res.Algorithm)
	assert.Equal(t, 21, res.ProductsTrained)
	assert.Equal(t, len(a.Vectorizer.Vocabulary), res.VocabularySize)
	assert.Equal(t, 2, res.UserPreferencesLearned)
	assert.Equal(t, map[string]int{"bakery": 7, "dairy": 7, "produce": 7}, res.CategoryDistribution)
	require.NotNil(t, res.Metrics)
	assert.InDelta(t, 1.0, res.Metrics.PrecisionAt5, 1e-9)
	assert.Greater(t, res.Metrics.Coverage, 0.0)
	assert.LessOrEqual(t, res.Metrics.Coverage, 1.0)
	assert.GreaterOrEqual(t, res.Metrics.Diversity, 0.0)
}

func TestQuality_SmallCorpus(t *testing.T) {
	t.Parallel()

	vecs := make([]tfidf.Vector, 9)
	cats := make([]string, 9)
	got := Quality(vecs, cats, 100, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, QualityMetrics{}, got)
}

func TestQuality_SeededSampleIsReproducible(t *testing.T) {
	t.Parallel()

	a := trainedArtifact(t)
	texts := make([]string, 0, 21)
	cats := make([]string, 0, 21)
	for cat, titles := range groups {
		for _, title := range titles {
			texts = append(texts, title)
			cats = append(cats, cat)
		}
	}
	vecs := a.Vectorizer.Transform(texts)

	first := Quality(vecs, cats, 12, rand.New(rand.NewPCG(42, 42)))
	second := Quality(vecs, cats, 12, rand.New(rand.NewPCG(42, 42)))
	assert.Equal(t, first, second)
}

func TestRecommender_UnavailableWithoutArtifacts(t *testing.T) {
	t.Parallel()

	r := NewRecommender(artifact.NewFileStore(t.TempDir()), WithLogger(quietLogger()))
	assert.False(t, r.Available())
	assert.False(t, r.Reload())

	resp := r.Recommend(&domain.Listing{ID: 1}, []domain.Listing{{ID: 2}}, 0, 0)
	assert.Equal(t, domain.SourceUnavailable, resp.Source)
	assert.NotEmpty(t, resp.Error)

	_, ok := r.UserProfile(1)
	assert.False(t, ok)
}

func TestRecommender_SaveReloadCycle(t *testing.T) {
	t.Parallel()

	store := artifact.NewFileStore(t.TempDir())
	require.NoError(t, SaveArtifact(store, trainedArtifact(t)))

	r := NewRecommender(store, WithLogger(quietLogger()))
	require.True(t, r.Available())
	profile, ok := r.UserProfile(1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, profile["bakery"], 1e-9)

	require.NoError(t, os.Remove(filepath.Join(store.Dir(), ModelFile)))
	assert.False(t, r.Reload())
	assert.False(t, r.Available())
}

func TestRecommender_CorruptArtifactIsUnavailable(t *testing.T) {
	t.Parallel()

	store := artifact.NewFileStore(t.TempDir())
	require.NoError(t, SaveArtifact(store, trainedArtifact(t)))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), VectorizerFile), []byte("{"), 0o600))

	r := NewRecommender(store, WithLogger(quietLogger()))
	assert.False(t, r.Available())
}

func TestRecommender_Scenario(t *testing.T) {
	t.Parallel()

	r := NewRecommenderFromArtifact(trainedArtifact(t), WithLogger(quietLogger()))
	target := &domain.Listing{ID: 1, SellerID: 9, Title: "Fresh bread", Category: "bakery"}
	candidates := []domain.Listing{
		{ID: 2, SellerID: 9, Title: "Bread rolls", Category: "bakery"},
		{ID: 3, SellerID: 5, Title: "Stale bread", Category: "bakery"},
	}

	resp := r.Recommend(target, candidates, 0, 0)
	require.Equal(t, domain.SourceModel, resp.Source, resp.Error)
	assert.False(t, resp.Personalized)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, int64(3), resp.SimilarProducts[0].ID)
	assert.Greater(t, resp.SimilarProducts[0].MatchFactors.TextSimilarity, 0.0)
	assert.InDelta(t, 0.0, resp.SimilarProducts[0].MatchFactors.UserPreference, 1e-9)
}

func TestRecommender_EmptyCandidates(t *testing.T) {
	t.Parallel()

	r := NewRecommenderFromArtifact(trainedArtifact(t), WithLogger(quietLogger()))
	resp := r.Recommend(&domain.Listing{ID: 1}, nil, 0, 0)
	assert.Equal(t, domain.SourceModel, resp.Source)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.SimilarProducts)
	assert.Empty(t, resp.SimilarProducts)
}

func TestRecommender_Personalized(t *testing.T) {
	t.Parallel()

	r := NewRecommenderFromArtifact(trainedArtifact(t), WithLogger(quietLogger()))
	target := &domain.Listing{ID: 1, SellerID: 9, Title: "Mixed groceries"}
	candidates := []domain.Listing{
		{ID: 10, SellerID: 1, Title: "Milk", Category: "dairy", Price: ptr(1.5)},
		{ID: 11, SellerID: 2, Title: "Bread", Category: "Bakery"},
	}

	resp := r.Recommend(target, candidates, 1, 0)
	require.Equal(t, domain.SourceModel, resp.Source, resp.Error)
	assert.True(t, resp.Personalized)
	require.Len(t, resp.SimilarProducts, 2)
	assert.Equal(t, int64(11), resp.SimilarProducts[0].ID)
	assert.InDelta(t, PreferenceWeight, resp.SimilarProducts[0].MatchFactors.UserPreference, 1e-9)
	assert.InDelta(t, 1.0, resp.SimilarProducts[0].MatchFactors.CategoryPopularity, 1e-9)
	assert.Equal(t, ptr(1.5), resp.SimilarProducts[1].Price)

	anon := r.Recommend(target, candidates, 404, 0)
	assert.False(t, anon.Personalized)
}

func TestRecommender_TieBreakByID(t *testing.T) {
	t.Parallel()

	r := NewRecommenderFromArtifact(trainedArtifact(t), WithLogger(quietLogger()))
	target := &domain.Listing{ID: 1, SellerID: 9, Title: "sourdough bread", Category: "bakery"}
	candidates := []domain.Listing{
		{ID: 7, SellerID: 3, Title: "rye bread", Category: "bakery"},
		{ID: 5, SellerID: 4, Title: "rye bread", Category: "bakery"},
		{ID: 6, SellerID: 2, Title: "rye bread", Category: "bakery"},
	}

	resp := r.Recommend(target, candidates, 0, 2)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, int64(5), resp.SimilarProducts[0].ID)
	assert.Equal(t, int64(6), resp.SimilarProducts[1].ID)
}

func TestRecommender_ExclusionAndDeterminism(t *testing.T) {
	t.Parallel()

	r := NewRecommenderFromArtifact(trainedArtifact(t), WithLogger(quietLogger()))
	rng := rand.New(rand.NewPCG(9, 9))
	titles := append(append(append([]string{}, groups["bakery"]...), groups["dairy"]...), groups["produce"]...)
	cats := []string{"bakery", "dairy", "produce", "other", ""}

	for round := range 25 {
		target := &domain.Listing{ID: int64(rng.IntN(10)), SellerID: int64(rng.IntN(4)), Title: titles[rng.IntN(len(titles))]}
		candidates := make([]domain.Listing, 15)
		for i := range candidates {
			candidates[i] = domain.Listing{
				ID:       int64(rng.IntN(10)),
				SellerID: int64(rng.IntN(4)),
				Title:    titles[rng.IntN(len(titles))],
				Category: cats[rng.IntN(len(cats))],
			}
		}

		user := int64(rng.IntN(3))
		first := r.Recommend(target, candidates, user, 0)
		require.Equal(t, domain.SourceModel, first.Source, first.Error)
		for _, res := range first.SimilarProducts {
			assert.NotEqual(t, target.ID, res.ID, fmt.Sprintf("round %d", round))
			assert.NotEqual(t, target.SellerID, res.SellerID, fmt.Sprintf("round %d", round))
		}
		assert.Equal(t, first, r.Recommend(target, candidates, user, 0))
	}
}

func TestRecommender_InvalidInput(t *testing.T) {
	t.Parallel()

	r := NewRecommenderFromArtifact(trainedArtifact(t), WithLogger(quietLogger()))
	assert.Equal(t, domain.SourceError, r.Recommend(nil, nil, 0, 0).Source)
	assert.Equal(t, domain.SourceError, r.Recommend(&domain.Listing{ID: 1}, nil, 0, -1).Source)
}

func TestRecommender_RecoversFromBrokenArtifact(t *testing.T) {
	t.Parallel()

	a := trainedArtifact(t)
	broken := *a.Vectorizer
	broken.IDF = broken.IDF[:1]
	r := NewRecommenderFromArtifact(&Artifact{Vectorizer: &broken, Preferences: a.Preferences}, WithLogger(quietLogger()))

	resp := r.Recommend(
		&domain.Listing{ID: 1, SellerID: 1, Title: "wholemeal bread milk fruit"},
		[]domain.Listing{{ID: 2, SellerID: 2, Title: "citrus fruit box skimmed milk"}},
		0, 0,
	)
	assert.Equal(t, domain.SourceError, resp.Source)
	assert.Contains(t, resp.Error, "recommendation failed")
}
