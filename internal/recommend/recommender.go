package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/internal/metrics"
	"github.com/donaldgifford/surplus-ml/pkg/features"
	"github.com/donaldgifford/surplus-ml/pkg/tfidf"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// Score blending weights.
const (
	PreferenceWeight = 0.2
	CategoryWeight   = 0.1
)

// DefaultLimit is the result count used when a caller passes no limit.
const DefaultLimit = 10

// MatchFactors break a result's score into its parts.
type MatchFactors struct {
	TextSimilarity     float64 `json:"text_similarity"`
	UserPreference     float64 `json:"user_preference"`
	CategoryPopularity float64 `json:"category_popularity"`
}

// Result is one ranked candidate.
type Result struct {
	domain.Listing
	SimilarityScore float64      `json:"similarity_score"`
	MatchFactors    MatchFactors `json:"match_factors"`
}

// Response is the tagged result of Recommend.
type Response struct {
	SimilarProducts []Result      `json:"similar_products"`
	Count           int           `json:"count"`
	Personalized    bool          `json:"personalized"`
	Source          domain.Source `json:"source"`
	Error           string        `json:"error,omitempty"`
}

// Recommender ranks candidate listings against a target listing.
type Recommender struct {
	store        artifact.Store
	log          *slog.Logger
	defaultLimit int

	reloadMu sync.Mutex
	model    atomic.Pointer[Artifact]
}

// RecommenderOption configures the Recommender.
type RecommenderOption func(*Recommender)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RecommenderOption {
	return func(r *Recommender) {
		r.log = l
	}
}

// WithDefaultLimit sets the result count used when Recommend gets limit 0.
func WithDefaultLimit(n int) RecommenderOption {
	return func(r *Recommender) {
		if n > 0 {
			r.defaultLimit = n
		}
	}
}

// NewRecommender creates a Recommender and attempts to load the model once.
func NewRecommender(s artifact.Store, opts ...RecommenderOption) *Recommender {
	r := newRecommender(opts)
	r.store = s
	r.Reload()
	return r
}

// NewRecommenderFromArtifact creates a ready Recommender without a store.
func NewRecommenderFromArtifact(a *Artifact, opts ...RecommenderOption) *Recommender {
	r := newRecommender(opts)
	r.model.Store(a)
	return r
}

func newRecommender(opts []RecommenderOption) *Recommender {
	r := &Recommender{log: slog.Default(), defaultLimit: DefaultLimit}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a model is loaded.
func (r *Recommender) Available() bool {
	return r.model.Load() != nil
}

// Reload loads the model from the store and publishes it in one swap. On
// failure the recommender becomes unavailable.
func (r *Recommender) Reload() bool {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	var (
		a   *Artifact
		err = artifact.ErrNotFound
	)
	if r.store != nil {
		a, err = LoadArtifact(r.store)
	}
	r.model.Store(a)
	metrics.SetAvailable(metrics.ModelRecommendation, a != nil)

	switch {
	case err == nil:
		metrics.ModelReloadsTotal.WithLabelValues(metrics.ModelRecommendation, "success").Inc()
		r.log.Info("recommendation model loaded", "profiles", len(a.Preferences.UserPreferences))
		return true
	case errors.Is(err, artifact.ErrNotFound):
		metrics.ModelReloadsTotal.WithLabelValues(metrics.ModelRecommendation, "not_found").Inc()
		r.log.Info("recommendation model not found, rule-based fallback will be used")
	default:
		metrics.ModelReloadsTotal.WithLabelValues(metrics.ModelRecommendation, "error").Inc()
		r.log.Error("failed to load recommendation model", "error", err)
	}
	return false
}

// UserProfile returns the learned category weights for a user. The map is
// a copy; ok is false when no model is loaded or the user has no profile.
func (r *Recommender) UserProfile(userID int64) (map[string]float64, bool) {
	a := r.model.Load()
	if a == nil {
		return nil, false
	}
	prefs, ok := a.Preferences.UserPreferences[userID]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(prefs))
	for c, w := range prefs {
		out[c] = w
	}
	return out, true
}

// Recommend ranks candidates by similarity to target, excluding the target
// itself and listings from the target's seller. userID 0 means anonymous.
// A limit of 0 uses the default limit. Like Predict in the pricing package
// it never panics or returns an error.
func (r *Recommender) Recommend(target *domain.Listing, candidates []domain.Listing, userID int64, limit int) (resp Response) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("recommendation panicked", "panic", rec)
			resp = Response{Source: domain.SourceError, Error: fmt.Sprintf("recommendation failed: %v", rec)}
		}
		metrics.RecommendationsTotal.WithLabelValues(string(resp.Source), strconv.FormatBool(resp.Personalized)).Inc()
		metrics.InferenceDuration.WithLabelValues(metrics.ModelRecommendation).Observe(time.Since(start).Seconds())
	}()

	a := r.model.Load()
	if a == nil {
		return Response{Source: domain.SourceUnavailable, Error: "recommendation model not available"}
	}
	if target == nil {
		return Response{Source: domain.SourceError, Error: "target listing is required"}
	}
	if limit < 0 {
		return Response{Source: domain.SourceError, Error: fmt.Sprintf("limit must not be negative (got %d)", limit)}
	}
	if limit == 0 {
		limit = r.defaultLimit
	}
	if len(candidates) == 0 {
		return Response{SimilarProducts: []Result{}, Source: domain.SourceModel}
	}

	return r.rank(a, target, candidates, userID, limit)
}

func (r *Recommender) rank(a *Artifact, target *domain.Listing, candidates []domain.Listing, userID int64, limit int) Response {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, features.ListingText(target))
	for i := range candidates {
		texts = append(texts, features.ListingText(&candidates[i]))
	}
	vecs := a.Vectorizer.Transform(texts)

	var userPrefs map[string]float64
	if userID != 0 {
		userPrefs = a.Preferences.UserPreferences[userID]
	}
	weights := a.Preferences.CategoryWeights

	results := make([]Result, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.ID == target.ID || c.SellerID == target.SellerID {
			continue
		}

		text := tfidf.Cosine(vecs[0], vecs[i+1])
		category := features.NormalizeCategory(c.Category)
		pref := userPrefs[category] * PreferenceWeight
		popularity, ok := weights[category]
		if !ok {
			popularity = DefaultCategoryWeight
		}
		score := text + pref
		if ok {
			score += popularity * CategoryWeight
		}

		results = append(results, Result{
			Listing:         *c,
			SimilarityScore: score,
			MatchFactors: MatchFactors{
				TextSimilarity:     round(text, 3),
				UserPreference:     round(pref, 3),
				CategoryPopularity: round(popularity, 3),
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].ID < results[j].ID
	})
	results = results[:min(limit, len(results))]
	for i := range results {
		results[i].SimilarityScore = round(results[i].SimilarityScore, 3)
	}

	return Response{
		SimilarProducts: results,
		Count:           len(results),
		Personalized:    userPrefs != nil,
		Source:          domain.SourceModel,
	}
}
