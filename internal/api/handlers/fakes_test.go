package handlers_test

import (
	"context"
	"sync"

	"github.com/donaldgifford/surplus-ml/internal/engine"
	"github.com/donaldgifford/surplus-ml/internal/pricing"
	"github.com/donaldgifford/surplus-ml/internal/recommend"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// fakeModel implements handlers.Model.
type fakeModel struct {
	mu        sync.Mutex
	available bool
	reloadOK  bool
	reloads   int
}

func (m *fakeModel) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *fakeModel) Reload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	m.available = m.reloadOK
	return m.reloadOK
}

// fakePredictor implements handlers.PricePredictor.
type fakePredictor struct {
	got pricing.Request
	rec pricing.Recommendation
}

func (p *fakePredictor) Predict(req pricing.Request) pricing.Recommendation {
	p.got = req
	return p.rec
}

// fakeRecommender implements handlers.ProductRecommender.
type fakeRecommender struct {
	available bool
	profiles  map[int64]map[string]float64
	resp      recommend.Response

	target     *domain.Listing
	candidates []domain.Listing
	userID     int64
	limit      int
}

func (r *fakeRecommender) Recommend(target *domain.Listing, candidates []domain.Listing, userID int64, limit int) recommend.Response {
	r.target, r.candidates, r.userID, r.limit = target, candidates, userID, limit
	return r.resp
}

func (r *fakeRecommender) UserProfile(userID int64) (map[string]float64, bool) {
	p, ok := r.profiles[userID]
	return p, ok
}

func (r *fakeRecommender) Available() bool { return r.available }

// fakeRunner implements handlers.TrainingRunner.
type fakeRunner struct {
	res    *engine.RunResult
	err    error
	calls  int
	opts   engine.TrainOptions
	ctxErr error
}

func (r *fakeRunner) RunTraining(ctx context.Context, opts engine.TrainOptions) (*engine.RunResult, error) {
	r.calls++
	r.opts = opts
	r.ctxErr = ctx.Err()
	return r.res, r.err
}

// fakeMetadata implements handlers.MetadataSource.
type fakeMetadata struct {
	md  *engine.Metadata
	err error
}

func (m fakeMetadata) Metadata() (*engine.Metadata, error) { return m.md, m.err }
