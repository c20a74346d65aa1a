// Package engine orchestrates training runs: it summarizes the available
// data, trains the price and recommendation models, persists successful
// artifacts, reloads the live predictors and writes run metadata.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/internal/metrics"
	"github.com/donaldgifford/surplus-ml/internal/notify"
	"github.com/donaldgifford/surplus-ml/internal/pricing"
	"github.com/donaldgifford/surplus-ml/internal/recommend"
	"github.com/donaldgifford/surplus-ml/internal/store"
	"github.com/donaldgifford/surplus-ml/internal/tracing"
	"github.com/donaldgifford/surplus-ml/pkg/features"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// MetadataFile is written to the models directory after every run.
const MetadataFile = "model_metadata.json"

// Model names used in run results and metadata.
const (
	PriceModelName          = "price_optimization"
	RecommendationModelName = "product_recommendation"
)

// ErrTrainingInProgress is returned when a run is requested while another
// is still going.
var ErrTrainingInProgress = errors.New("training already in progress")

// Reloader is a live predictor that can pick up freshly saved artifacts.
type Reloader interface {
	Reload() bool
}

// TrainOptions select which models a run trains.
type TrainOptions struct {
	SkipPrice          bool `json:"skip_price"`
	SkipRecommendation bool `json:"skip_recommendation"`
}

// Models holds the per-model results of a run. A nil entry was skipped.
type Models struct {
	Price          *pricing.TrainResult   `json:"price_optimization,omitempty"`
	Recommendation *recommend.TrainResult `json:"product_recommendation,omitempty"`
}

// RunResult is the combined report of one training run.
type RunResult struct {
	TrainingID  string              `json:"training_id"`
	Timestamp   time.Time           `json:"timestamp"`
	DataSummary *domain.DataSummary `json:"data_summary"`
	Models      Models              `json:"models"`
	ReportPath  string              `json:"report_path,omitempty"`
}

// Attempted returns the number of models the run tried to train.
func (r *RunResult) Attempted() int {
	n := 0
	if r.Models.Price != nil {
		n++
	}
	if r.Models.Recommendation != nil {
		n++
	}
	return n
}

// Succeeded returns the number of models trained and saved.
func (r *RunResult) Succeeded() int {
	n := 0
	if r.Models.Price != nil && r.Models.Price.Success {
		n++
	}
	if r.Models.Recommendation != nil && r.Models.Recommendation.Success {
		n++
	}
	return n
}

// AllFailed reports whether at least one model was attempted and none
// succeeded.
func (r *RunResult) AllFailed() bool {
	return r.Attempted() > 0 && r.Succeeded() == 0
}

// ModelMetadata describes one trained model in the metadata file.
type ModelMetadata struct {
	Version         string `json:"version"`
	Algorithm       string `json:"algorithm"`
	TrainingSamples int    `json:"training_samples"`
	Metrics         any    `json:"metrics"`
}

// Metadata is the content of MetadataFile.
type Metadata struct {
	TrainingID string                   `json:"training_id"`
	Timestamp  time.Time                `json:"timestamp"`
	Models     map[string]ModelMetadata `json:"models"`
}

// Engine runs training and publishes the results to live predictors.
type Engine struct {
	store     store.Store
	artifacts artifact.Store
	log       *slog.Logger
	now       func() time.Time
	newID     func() string

	priceTrainer *pricing.Trainer
	recTrainer   *recommend.Trainer
	reloaders    []Reloader
	modelsDir    string
	reportsDir   string
	notifier     notify.Notifier

	runMu sync.Mutex
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithNowFunc overrides the clock used for expiry features and run stamps.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = f
	}
}

// WithPriceTrainer sets the price model trainer.
func WithPriceTrainer(t *pricing.Trainer) EngineOption {
	return func(e *Engine) {
		e.priceTrainer = t
	}
}

// WithRecommendationTrainer sets the recommendation model trainer.
func WithRecommendationTrainer(t *recommend.Trainer) EngineOption {
	return func(e *Engine) {
		e.recTrainer = t
	}
}

// WithReloaders registers predictors to reload after a successful save.
func WithReloaders(r ...Reloader) EngineOption {
	return func(e *Engine) {
		e.reloaders = append(e.reloaders, r...)
	}
}

// WithModelsDir sets where the metadata file is written.
func WithModelsDir(dir string) EngineOption {
	return func(e *Engine) {
		e.modelsDir = dir
	}
}

// WithReportsDir sets where run reports are written. Empty disables them.
func WithReportsDir(dir string) EngineOption {
	return func(e *Engine) {
		e.reportsDir = dir
	}
}

// WithNotifier sets where run summaries are sent once a run completes.
func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(s store.Store, a artifact.Store, opts ...EngineOption) *Engine {
	eng := &Engine{
		store:     s,
		artifacts: a,
		log:       slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.priceTrainer == nil {
		eng.priceTrainer = pricing.NewTrainer(pricing.DefaultTrainerConfig(), pricing.WithTrainerLogger(eng.log))
	}
	if eng.recTrainer == nil {
		eng.recTrainer = recommend.NewTrainer(recommend.DefaultTrainerConfig(), recommend.WithTrainerLogger(eng.log))
	}
	return eng
}

// Summary returns the data availability summary.
func (eng *Engine) Summary(ctx context.Context) (*domain.DataSummary, error) {
	sum, err := eng.store.DataSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting data summary: %w", err)
	}
	return sum, nil
}

// RunTraining trains the selected models. A model that fails never stops
// the other; its failure is recorded in the result. Only a failure to read
// the data summary or to write metadata returns an error. Concurrent calls
// fail fast with ErrTrainingInProgress.
func (eng *Engine) RunTraining(ctx context.Context, opts TrainOptions) (*RunResult, error) {
	if !eng.runMu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer eng.runMu.Unlock()

	ctx, span := tracing.Tracer().Start(ctx, "engine.RunTraining", trace.WithAttributes(
		attribute.Bool("skip_price", opts.SkipPrice),
		attribute.Bool("skip_recommendation", opts.SkipRecommendation),
	))
	defer span.End()

	res := &RunResult{TrainingID: eng.newID(), Timestamp: eng.now().UTC()}
	log := eng.log.With("training_id", res.TrainingID)
	log.Info("starting training run")

	sum, err := eng.Summary(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "data summary failed")
		return nil, err
	}
	res.DataSummary = sum
	log.Info("data summary",
		"total_users", sum.TotalUsers,
		"listings_by_status", sum.ListingsByStatus,
		"listings_with_prices", sum.ListingsWithPrices,
		"sold_listings", sum.SoldListings,
		"total_interactions", sum.TotalInteractions,
		"users_with_interactions", sum.UsersWithInteractions,
		"total_products", sum.TotalProducts,
	)

	if !opts.SkipPrice {
		res.Models.Price = eng.trainPrice(ctx, log)
	}
	if !opts.SkipRecommendation {
		res.Models.Recommendation = eng.trainRecommendation(ctx, log)
	}

	if res.Succeeded() > 0 {
		for _, r := range eng.reloaders {
			r.Reload()
		}
	}

	if err := eng.writeMetadata(res); err != nil {
		span.RecordError(err)
		return res, err
	}
	if eng.reportsDir != "" {
		name := fmt.Sprintf("training_report_%s.json", res.Timestamp.Format("20060102_150405"))
		path, err := artifact.WriteJSON(eng.reportsDir, name, res)
		if err != nil {
			log.Error("writing training report", "error", err)
		} else {
			res.ReportPath = path
			log.Info("combined training report saved", "path", path)
		}
	}

	span.SetAttributes(
		attribute.Int("models_attempted", res.Attempted()),
		attribute.Int("models_succeeded", res.Succeeded()),
	)
	if res.AllFailed() {
		span.SetStatus(codes.Error, "all models failed")
	}
	log.Info("training run complete", "attempted", res.Attempted(), "succeeded", res.Succeeded())
	eng.notify(ctx, log, res)
	return res, nil
}

// notify sends the run summary. Delivery failures are logged only.
func (eng *Engine) notify(ctx context.Context, log *slog.Logger, res *RunResult) {
	if eng.notifier == nil || res.Attempted() == 0 {
		return
	}
	if err := eng.notifier.NotifyTraining(ctx, trainingSummary(res)); err != nil {
		log.Warn("sending training notification", "error", err)
	}
}

func trainingSummary(res *RunResult) *notify.TrainingSummary {
	s := &notify.TrainingSummary{
		TrainingID: res.TrainingID,
		Timestamp:  res.Timestamp,
		ReportPath: res.ReportPath,
	}
	if p := res.Models.Price; p != nil {
		m := notify.ModelOutcome{Name: PriceModelName, Success: p.Success, Samples: p.SamplesAvailable}
		switch {
		case p.Success && p.Metrics != nil:
			m.Detail = fmt.Sprintf("rmse=%.2f r2=%.3f", p.Metrics.RMSE, p.Metrics.R2)
		case !p.Success:
			m.Detail = p.Error
		}
		s.Models = append(s.Models, m)
	}
	if r := res.Models.Recommendation; r != nil {
		m := notify.ModelOutcome{Name: RecommendationModelName, Success: r.Success, Samples: r.ProductsAvailable}
		switch {
		case r.Success && r.Metrics != nil:
			m.Detail = fmt.Sprintf("precision@5=%.3f vocabulary=%d", r.Metrics.PrecisionAt5, r.VocabularySize)
		case !r.Success:
			m.Detail = r.Error
		}
		s.Models = append(s.Models, m)
	}
	return s
}

func (eng *Engine) trainPrice(ctx context.Context, log *slog.Logger) (res *pricing.TrainResult) {
	ctx, span := tracing.Tracer().Start(ctx, "engine.trainPrice")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.TrainingDuration.WithLabelValues(metrics.ModelPrice).Observe(time.Since(start).Seconds())
		metrics.TrainingRunsTotal.WithLabelValues(metrics.ModelPrice, outcome(res.Success, res.SamplesRequired > 0)).Inc()
	}()

	fail := func(err error) *pricing.TrainResult {
		log.Error("price model training failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &pricing.TrainResult{Error: err.Error()}
	}

	listings, err := eng.store.PriceListings(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetching price listings: %w", err))
	}
	rows := features.PriceRows(listings, eng.now())
	metrics.TrainingSamples.WithLabelValues(metrics.ModelPrice).Set(float64(len(rows)))

	res, a, err := eng.priceTrainer.Train(rows)
	if err != nil {
		return fail(err)
	}
	if !res.Success {
		log.Warn("price model training skipped", "reason", res.Error)
		return res
	}
	if err := pricing.SaveArtifact(eng.artifacts, a); err != nil {
		return fail(fmt.Errorf("saving price model: %w", err))
	}
	eng.writeModelReport("price", res)
	log.Info("price model training successful", "rmse", res.Metrics.RMSE, "r2", res.Metrics.R2)
	return res
}

func (eng *Engine) trainRecommendation(ctx context.Context, log *slog.Logger) (res *recommend.TrainResult) {
	ctx, span := tracing.Tracer().Start(ctx, "engine.trainRecommendation")
	defer span.End()
	start := time.Now()
	defer func() {
		rejected := res.UsersRequired > 0 || res.ProductsRequired > 0
		metrics.TrainingDuration.WithLabelValues(metrics.ModelRecommendation).Observe(time.Since(start).Seconds())
		metrics.TrainingRunsTotal.WithLabelValues(metrics.ModelRecommendation, outcome(res.Success, rejected)).Inc()
	}()

	fail := func(err error) *recommend.TrainResult {
		log.Error("recommendation model training failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &recommend.TrainResult{Error: err.Error()}
	}

	corpus, err := eng.store.RecommendationCorpus(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetching recommendation corpus: %w", err))
	}
	actions, err := eng.store.CategoryActions(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetching category actions: %w", err))
	}
	metrics.TrainingSamples.WithLabelValues(metrics.ModelRecommendation).Set(float64(corpus.Size()))

	res, a, err := eng.recTrainer.Train(corpus, actions)
	if err != nil {
		return fail(err)
	}
	if !res.Success {
		log.Warn("recommendation model training skipped", "reason", res.Error)
		return res
	}
	if err := recommend.SaveArtifact(eng.artifacts, a); err != nil {
		return fail(fmt.Errorf("saving recommendation model: %w", err))
	}
	eng.writeModelReport("recommendation", res)
	log.Info("recommendation model training successful", "vocabulary", res.VocabularySize)
	return res
}

func (eng *Engine) writeModelReport(kind string, v any) {
	if eng.reportsDir == "" {
		return
	}
	name := fmt.Sprintf("%s_training_report_%s.json", kind, eng.now().UTC().Format("20060102_150405"))
	if _, err := artifact.WriteJSON(eng.reportsDir, name, v); err != nil {
		eng.log.Error("writing model report", "model", kind, "error", err)
	}
}

// LoadMetadata reads the metadata file from dir. A missing file yields
// artifact.ErrNotFound.
func LoadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", MetadataFile, artifact.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading model metadata: %w", err)
	}
	md := &Metadata{}
	if err := json.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("decoding model metadata: %w", err)
	}
	return md, nil
}

// Metadata reads the metadata file from the engine's models directory.
func (eng *Engine) Metadata() (*Metadata, error) {
	if eng.modelsDir == "" {
		return nil, fmt.Errorf("%s: %w", MetadataFile, artifact.ErrNotFound)
	}
	return LoadMetadata(eng.modelsDir)
}

// writeMetadata records the models trained by this run. Entries for models
// this run did not replace are carried over from the previous file.
func (eng *Engine) writeMetadata(res *RunResult) error {
	if eng.modelsDir == "" {
		return nil
	}
	md := Metadata{
		TrainingID: res.TrainingID,
		Timestamp:  res.Timestamp,
		Models:     map[string]ModelMetadata{},
	}
	if prev, err := LoadMetadata(eng.modelsDir); err == nil {
		for name, m := range prev.Models {
			md.Models[name] = m
		}
	} else if !errors.Is(err, artifact.ErrNotFound) {
		eng.log.Warn("ignoring unreadable model metadata", "error", err)
	}
	if p := res.Models.Price; p != nil && p.Success {
		md.Models[PriceModelName] = ModelMetadata{
			Version:         res.TrainingID,
			Algorithm:       p.Algorithm,
			TrainingSamples: p.TrainingSamples,
			Metrics:         p.Metrics,
		}
	}
	if r := res.Models.Recommendation; r != nil && r.Success {
		md.Models[RecommendationModelName] = ModelMetadata{
			Version:         res.TrainingID,
			Algorithm:       r.Algorithm,
			TrainingSamples: r.ProductsTrained,
			Metrics:         r.Metrics,
		}
	}
	if _, err := artifact.WriteJSON(eng.modelsDir, MetadataFile, md); err != nil {
		return fmt.Errorf("writing model metadata: %w", err)
	}
	return nil
}

func outcome(success, rejected bool) string {
	switch {
	case success:
		return "success"
	case rejected:
		return "insufficient_data"
	default:
		return "error"
	}
}
