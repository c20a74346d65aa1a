// Package gbm implements gradient-boosted least-squares regression trees
// together with the preprocessing and evaluation helpers used to train them.
package gbm

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Params are the boosting hyperparameters.
type Params struct {
	NEstimators     int     `json:"n_estimators"      yaml:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"     yaml:"learning_rate"`
	MaxDepth        int     `json:"max_depth"         yaml:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"  yaml:"min_samples_leaf"`
	Subsample       float64 `json:"subsample"         yaml:"subsample"`
	Seed            uint64  `json:"seed"              yaml:"seed"`
}

// DefaultParams returns the hyperparameters used for the discount model.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        4,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Subsample:       0.8,
		Seed:            42,
	}
}

// Validate checks that the parameters describe a trainable model.
func (p Params) Validate() error {
	var errs []error
	if p.NEstimators < 1 {
		errs = append(errs, fmt.Errorf("n_estimators must be >= 1 (got %d)", p.NEstimators))
	}
	if p.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be > 0 (got %g)", p.LearningRate))
	}
	if p.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be >= 1 (got %d)", p.MaxDepth))
	}
	if p.MinSamplesSplit < 2 {
		errs = append(errs, fmt.Errorf("min_samples_split must be >= 2 (got %d)", p.MinSamplesSplit))
	}
	if p.MinSamplesLeaf < 1 {
		errs = append(errs, fmt.Errorf("min_samples_leaf must be >= 1 (got %d)", p.MinSamplesLeaf))
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		errs = append(errs, fmt.Errorf("subsample must be in (0, 1] (got %g)", p.Subsample))
	}
	return errors.Join(errs...)
}

// Regressor is a fitted gradient-boosting model.
type Regressor struct {
	Params      Params    `json:"params"`
	NFeatures   int       `json:"n_features"`
	Init        float64   `json:"init"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"feature_importances"`
}

// NewRand returns the deterministic source used for subsampling and splits.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Fit trains a regressor on X and y.
func Fit(X [][]float64, y []float64, p Params) (*Regressor, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if len(X) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("got %d rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	n := len(X)
	var init float64
	for _, v := range y {
		init += v
	}
	init /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = init
	}
	residual := make([]float64, n)

	b := &treeBuilder{
		X:               X,
		target:          residual,
		maxDepth:        p.MaxDepth,
		minSamplesSplit: p.MinSamplesSplit,
		minSamplesLeaf:  p.MinSamplesLeaf,
		importance:      make([]float64, width),
	}

	rng := NewRand(p.Seed)
	nSub := max(1, int(p.Subsample*float64(n)))

	r := &Regressor{Params: p, NFeatures: width, Init: init, Trees: make([]Tree, 0, p.NEstimators)}
	for range p.NEstimators {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		idx := rng.Perm(n)[:nSub]
		tree := b.build(idx)
		for i := range pred {
			pred[i] += p.LearningRate * tree.predict(X[i])
		}
		r.Trees = append(r.Trees, tree)
	}

	r.Importances = normalize(b.importance)
	return r, nil
}

// Predict returns the model output for a single feature vector.
func (r *Regressor) Predict(x []float64) (float64, error) {
	if len(x) != r.NFeatures {
		return 0, fmt.Errorf("regressor expects %d features, got %d", r.NFeatures, len(x))
	}
	out := r.Init
	for i := range r.Trees {
		out += r.Params.LearningRate * r.Trees[i].predict(x)
	}
	return out, nil
}

// PredictAll returns predictions for every row of X.
func (r *Regressor) PredictAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		v, err := r.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Validate reports structural problems in a deserialized model.
func (r *Regressor) Validate() error {
	if r.NFeatures < 1 {
		return errors.New("regressor has no features")
	}
	for t, tree := range r.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for i, n := range tree.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= r.NFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", t, i, n.Feature)
			}
			if n.Left <= i || n.Right <= i || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: bad child index", t, i)
			}
		}
	}
	return nil
}

func normalize(v []float64) []float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	out := make([]float64, len(v))
	if total == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
