// Package recommend trains and serves the content-based recommender that
// ranks candidate listings by TF-IDF text similarity blended with learned
// user and global category preferences.
package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/donaldgifford/surplus-ml/pkg/features"
	"github.com/donaldgifford/surplus-ml/pkg/tfidf"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// Algorithm names the model family recorded in training results.
const Algorithm = "ContentBased_TF-IDF"

// Quality metric constants.
const (
	qualityK        = 5
	qualityMinItems = 10
)

// ErrInsufficientData marks a training run rejected for too few users or
// documents.
var ErrInsufficientData = errors.New("insufficient training data")

// TrainerConfig holds the recommendation training settings.
type TrainerConfig struct {
	TFIDF        tfidf.Params
	MinUsers     int
	MinProducts  int
	MetricSample int
	Seed         uint64
}

// DefaultTrainerConfig returns the default training settings.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		TFIDF:        tfidf.DefaultParams(),
		MinUsers:     5,
		MinProducts:  20,
		MetricSample: 100,
		Seed:         42,
	}
}

// QualityMetrics describe nearest-neighbour behavior on a corpus sample.
type QualityMetrics struct {
	PrecisionAt5 float64 `json:"precision_at_5"`
	Coverage     float64 `json:"coverage"`
	Diversity    float64 `json:"diversity"`
}

// TrainResult reports the outcome of a training run.
type TrainResult struct {
	Success                bool               `json:"success"`
	Error                  string             `json:"error,omitempty"`
	UsersAvailable         int                `json:"users_available"`
	UsersRequired          int                `json:"users_required,omitempty"`
	ProductsAvailable      int                `json:"products_available"`
	ProductsRequired       int                `json:"products_required,omitempty"`
	Algorithm              string             `json:"algorithm,omitempty"`
	ProductsTrained        int                `json:"products_trained,omitempty"`
	VocabularySize         int                `json:"vocabulary_size,omitempty"`
	UserPreferencesLearned int                `json:"user_preferences_learned,omitempty"`
	Metrics                *QualityMetrics    `json:"metrics,omitempty"`
	TFIDFParams            *tfidf.Params      `json:"tfidf_params,omitempty"`
	CategoryDistribution   map[string]int     `json:"category_distribution,omitempty"`
	GlobalCategoryWeights  map[string]float64 `json:"global_category_weights,omitempty"`
}

// Err returns ErrInsufficientData for a rejected run and nil otherwise.
func (r *TrainResult) Err() error {
	if r.Success {
		return nil
	}
	if r.UsersAvailable < r.UsersRequired {
		return fmt.Errorf("%w: %d users (need %d)", ErrInsufficientData, r.UsersAvailable, r.UsersRequired)
	}
	return fmt.Errorf("%w: %d products (need %d)", ErrInsufficientData, r.ProductsAvailable, r.ProductsRequired)
}

// Trainer fits the recommendation model.
type Trainer struct {
	cfg TrainerConfig
	log *slog.Logger
}

// TrainerOption configures the Trainer.
type TrainerOption func(*Trainer)

// WithTrainerLogger sets a custom logger.
func WithTrainerLogger(l *slog.Logger) TrainerOption {
	return func(t *Trainer) {
		t.log = l
	}
}

// NewTrainer creates a Trainer.
func NewTrainer(cfg TrainerConfig, opts ...TrainerOption) *Trainer {
	t := &Trainer{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits the vectorizer on the corpus and learns category preferences
// from actions. A rejected run returns Success=false and a nil artifact.
func (t *Trainer) Train(corpus *domain.Corpus, actions []domain.CategoryAction) (*TrainResult, *Artifact, error) {
	users := corpus.DistinctUsers()
	docs := corpus.Size()

	if users < t.cfg.MinUsers {
		t.log.Warn("insufficient users with interactions", "available", users, "required", t.cfg.MinUsers)
		return t.rejected(users, docs, t.cfg.MinUsers, 0), nil, nil
	}
	if docs < t.cfg.MinProducts {
		t.log.Warn("insufficient products", "available", docs, "required", t.cfg.MinProducts)
		return t.rejected(users, docs, 0, t.cfg.MinProducts), nil, nil
	}

	texts := make([]string, 0, docs)
	categories := make([]string, 0, docs)
	distribution := make(map[string]int)
	for _, items := range [][]domain.CorpusItem{corpus.Listings, corpus.Products} {
		for i := range items {
			texts = append(texts, features.CorpusText(&items[i]))
			c := features.NormalizeCategory(items[i].Category)
			categories = append(categories, c)
			distribution[c]++
		}
	}

	t.log.Info("fitting tf-idf vectorizer", "documents", len(texts))
	vec, err := tfidf.Fit(texts, t.cfg.TFIDF)
	if err != nil {
		return nil, nil, fmt.Errorf("fitting vectorizer: %w", err)
	}

	prefs := Preferences{
		UserPreferences: UserProfiles(actions),
		CategoryWeights: GlobalWeights(actions),
	}

	rng := rand.New(rand.NewPCG(t.cfg.Seed, t.cfg.Seed))
	quality := Quality(vec.Transform(texts), categories, t.cfg.MetricSample, rng)

	params := t.cfg.TFIDF
	res := &TrainResult{
		Success:                true,
		UsersAvailable:         users,
		ProductsAvailable:      docs,
		Algorithm:              Algorithm,
		ProductsTrained:        len(texts),
		VocabularySize:         len(vec.Vocabulary),
		UserPreferencesLearned: len(prefs.UserPreferences),
		Metrics:                &quality,
		TFIDFParams:            &params,
		CategoryDistribution:   distribution,
		GlobalCategoryWeights:  prefs.CategoryWeights,
	}

	t.log.Info("recommendation model trained",
		"vocabulary", res.VocabularySize,
		"profiles", res.UserPreferencesLearned,
	)
	return res, &Artifact{Vectorizer: vec, Preferences: prefs}, nil
}

func (t *Trainer) rejected(users, docs, usersReq, docsReq int) *TrainResult {
	res := &TrainResult{
		UsersAvailable:    users,
		UsersRequired:     usersReq,
		ProductsAvailable: docs,
		ProductsRequired:  docsReq,
	}
	res.Error = res.Err().Error()
	return res
}

// Quality samples up to sampleSize documents and measures, over each
// sampled document's five nearest other sampled documents: how often they
// share its category (precision), how many distinct documents are ever
// recommended (coverage) and how dissimilar the five are to each other
// (diversity). Corpora smaller than ten documents score zero.
func Quality(vecs []tfidf.Vector, categories []string, sampleSize int, rng *rand.Rand) QualityMetrics {
	n := len(vecs)
	if n < qualityMinItems || sampleSize <= 0 {
		return QualityMetrics{}
	}
	m := min(sampleSize, n)
	sample := rng.Perm(n)[:m]

	sim := make([][]float64, m)
	for i := range sim {
		sim[i] = make([]float64, m)
	}
	for i := range m {
		for j := i; j < m; j++ {
			s := tfidf.Cosine(vecs[sample[i]], vecs[sample[j]])
			sim[i][j], sim[j][i] = s, s
		}
	}

	var precision, diversity float64
	var diversityN int
	recommended := make(map[int]struct{})
	for i := range m {
		top := nearest(sim[i], i, qualityK)

		same := 0
		for _, j := range top {
			recommended[j] = struct{}{}
			if categories[sample[j]] == categories[sample[i]] {
				same++
			}
		}
		precision += float64(same) / qualityK

		if k := len(top); k > 1 {
			var pair float64
			for a := range top {
				for b := range top {
					if a != b {
						pair += sim[top[a]][top[b]]
					}
				}
			}
			diversity += 1 - pair/float64(k*(k-1))
			diversityN++
		}
	}

	q := QualityMetrics{
		PrecisionAt5: round(precision/float64(m), 4),
		Coverage:     round(float64(len(recommended))/float64(m), 4),
	}
	if diversityN > 0 {
		q.Diversity = round(diversity/float64(diversityN), 4)
	}
	return q
}

// nearest returns the indexes of the k highest scores excluding self,
// ordered by score descending then index ascending.
func nearest(scores []float64, self, k int) []int {
	idx := make([]int, 0, len(scores)-1)
	for j := range scores {
		if j != self {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	return idx[:min(k, len(idx))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
