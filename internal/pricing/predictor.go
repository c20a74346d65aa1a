package pricing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/internal/metrics"
	"github.com/donaldgifford/surplus-ml/pkg/features"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// Business limits on recommended prices.
const (
	MaxDiscount   = 0.75
	BandWidth     = 0.10
	PriceFloorPct = 0.25
)

// Request is the input to Predict.
type Request struct {
	OriginalPrice float64 `json:"original_price"`
	ExpiryDate    string  `json:"expiry_date,omitempty"`
	Category      string  `json:"category,omitempty"`
	// Quantity defaults to 1 when zero.
	Quantity float64 `json:"quantity,omitempty"`
}

// Recommendation is the tagged result of Predict.
type Recommendation struct {
	RecommendedPrice   float64       `json:"recommended_price,omitempty"`
	MinPrice           float64       `json:"min_price,omitempty"`
	MaxPrice           float64       `json:"max_price,omitempty"`
	OriginalPrice      float64       `json:"original_price,omitempty"`
	DiscountPercentage float64       `json:"discount_percentage"`
	DaysUntilExpiry    int           `json:"days_until_expiry"`
	Category           string        `json:"category,omitempty"`
	Reasoning          string        `json:"reasoning,omitempty"`
	Source             domain.Source `json:"source"`
	Error              string        `json:"error,omitempty"`
}

// Predictor serves price recommendations from a loaded Artifact. It is
// either unavailable (no artifact) or ready; only Reload changes state.
type Predictor struct {
	store artifact.Store
	log   *slog.Logger
	now   func() time.Time

	reloadMu sync.Mutex
	model    atomic.Pointer[Artifact]
}

// PredictorOption configures the Predictor.
type PredictorOption func(*Predictor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PredictorOption {
	return func(p *Predictor) {
		p.log = l
	}
}

// WithNowFunc overrides the clock used for days-until-expiry.
func WithNowFunc(f func() time.Time) PredictorOption {
	return func(p *Predictor) {
		p.now = f
	}
}

// NewPredictor creates a Predictor and attempts to load the model once.
func NewPredictor(s artifact.Store, opts ...PredictorOption) *Predictor {
	p := &Predictor{store: s, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.Reload()
	return p
}

// NewPredictorFromArtifact creates a ready Predictor without a store.
// Reload on such a predictor always leaves it unavailable.
func NewPredictorFromArtifact(a *Artifact, opts ...PredictorOption) *Predictor {
	p := &Predictor{log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.model.Store(a)
	return p
}

// Available reports whether a model is loaded.
func (p *Predictor) Available() bool {
	return p.model.Load() != nil
}

// Reload loads the model from the store and publishes it in one swap. On
// failure the predictor becomes unavailable.
func (p *Predictor) Reload() bool {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	a, err := p.load()
	p.model.Store(a)
	metrics.SetAvailable(metrics.ModelPrice, a != nil)

	switch {
	case err == nil:
		metrics.ModelReloadsTotal.WithLabelValues(metrics.ModelPrice, "success").Inc()
		p.log.Info("price model loaded")
		return true
	case errors.Is(err, artifact.ErrNotFound):
		metrics.ModelReloadsTotal.WithLabelValues(metrics.ModelPrice, "not_found").Inc()
		p.log.Info("price model not found, rule-based fallback will be used")
	default:
		metrics.ModelReloadsTotal.WithLabelValues(metrics.ModelPrice, "error").Inc()
		p.log.Error("failed to load price model", "error", err)
	}
	return false
}

func (p *Predictor) load() (*Artifact, error) {
	if p.store == nil {
		return nil, artifact.ErrNotFound
	}
	return LoadArtifact(p.store)
}

// Predict recommends a sale price. It never panics or returns an error:
// failures come back tagged with SourceError and a missing model with
// SourceUnavailable.
func (p *Predictor) Predict(req Request) (rec Recommendation) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("price prediction panicked", "panic", r)
			rec = errorResult(fmt.Errorf("prediction failed: %v", r))
		}
		metrics.PredictionsTotal.WithLabelValues(string(rec.Source)).Inc()
		metrics.InferenceDuration.WithLabelValues(metrics.ModelPrice).Observe(time.Since(start).Seconds())
	}()

	a := p.model.Load()
	if a == nil {
		return Recommendation{Source: domain.SourceUnavailable, Error: "price model not available"}
	}

	rec, err := p.predict(a, req)
	if err != nil {
		p.log.Warn("price prediction failed", "error", err)
		return errorResult(err)
	}
	return rec
}

func (p *Predictor) predict(a *Artifact, req Request) (Recommendation, error) {
	orig := req.OriginalPrice
	if math.IsNaN(orig) || math.IsInf(orig, 0) || orig <= 0 {
		return Recommendation{}, fmt.Errorf("original_price must be a positive number (got %v)", orig)
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return Recommendation{}, fmt.Errorf("quantity must be a non-negative number (got %v)", qty)
	}

	days := features.DaysUntilExpiry(req.ExpiryDate, p.now())
	category := features.NormalizeCategory(req.Category)

	x, err := a.Scaler.Transform(a.Encoder.Vector(orig, days, qty, category))
	if err != nil {
		return Recommendation{}, fmt.Errorf("scaling features: %w", err)
	}
	raw, err := a.Regressor.Predict(x)
	if err != nil {
		return Recommendation{}, fmt.Errorf("predicting: %w", err)
	}
	if math.IsNaN(raw) {
		return Recommendation{}, errors.New("model produced NaN")
	}
	discount := math.Min(math.Max(raw, 0), MaxDiscount)

	floor := orig * PriceFloorPct
	price := func(d float64) float64 {
		return round(math.Max(orig*(1-d), floor), 2)
	}

	return Recommendation{
		RecommendedPrice:   price(discount),
		MinPrice:           price(math.Min(discount+BandWidth, MaxDiscount)),
		MaxPrice:           price(math.Max(discount-BandWidth, 0)),
		OriginalPrice:      orig,
		DiscountPercentage: round(discount*100, 1),
		DaysUntilExpiry:    days,
		Category:           category,
		Reasoning:          Reasoning(days, category, discount),
		Source:             domain.SourceModel,
	}, nil
}

// Reasoning explains a predicted discount in terms of shelf-life urgency.
func Reasoning(days int, category string, discount float64) string {
	var urgency string
	switch {
	case days <= 1:
		urgency = "expiring very soon"
	case days <= 3:
		urgency = fmt.Sprintf("expiring in %d days", days)
	case days <= 7:
		urgency = "expiring this week"
	case days <= 14:
		urgency = "expiring in 1-2 weeks"
	default:
		urgency = "having good shelf life"
	}
	return fmt.Sprintf(
		"Based on ML analysis of similar %s items %s, a %d%% discount balances "+
			"sale probability against preserved value. Learned from historical marketplace sales.",
		category, urgency, int(discount*100),
	)
}

func errorResult(err error) Recommendation {
	return Recommendation{Source: domain.SourceError, Error: err.Error()}
}
