// Package pricing trains and serves the discount-ratio model that turns a
// listing's original price, shelf life, quantity and category into a
// recommended sale price.
package pricing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/donaldgifford/surplus-ml/pkg/features"
	"github.com/donaldgifford/surplus-ml/pkg/gbm"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// Algorithm names the model family recorded in training results.
const Algorithm = "GradientBoostingRegressor"

// ErrInsufficientData marks a training run rejected for too few samples.
var ErrInsufficientData = errors.New("insufficient training data")

// TrainerConfig holds the price training settings.
type TrainerConfig struct {
	MinSamples   int
	CVFolds      int
	SoldOnly     bool
	TestFraction float64
	Params       gbm.Params
}

// DefaultTrainerConfig returns the default training settings.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		MinSamples:   50,
		CVFolds:      5,
		SoldOnly:     true,
		TestFraction: 0.2,
		Params:       gbm.DefaultParams(),
	}
}

// Metrics are the held-out and cross-validated error estimates.
type Metrics struct {
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2_score"`
	CVRMSE    float64 `json:"cv_rmse"`
	CVRMSEStd float64 `json:"cv_rmse_std"`
}

// DataStats summarize the training rows.
type DataStats struct {
	DiscountRatioMean float64        `json:"discount_ratio_mean"`
	DiscountRatioStd  float64        `json:"discount_ratio_std"`
	OriginalPriceMean float64        `json:"original_price_mean"`
	Categories        map[string]int `json:"categories"`
}

// TrainResult reports the outcome of a training run. Success is false when
// the run was rejected; SamplesAvailable and SamplesRequired say why.
type TrainResult struct {
	Success           bool               `json:"success"`
	Error             string             `json:"error,omitempty"`
	SamplesAvailable  int                `json:"samples_available"`
	SamplesRequired   int                `json:"samples_required,omitempty"`
	Algorithm         string             `json:"algorithm,omitempty"`
	TrainingSamples   int                `json:"training_samples,omitempty"`
	TestSamples       int                `json:"test_samples,omitempty"`
	Metrics           *Metrics           `json:"metrics,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	Hyperparameters   *gbm.Params        `json:"hyperparameters,omitempty"`
	DataStats         *DataStats         `json:"data_stats,omitempty"`
}

// Err returns ErrInsufficientData for a rejected run and nil otherwise.
func (r *TrainResult) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %d samples (need %d)", ErrInsufficientData, r.SamplesAvailable, r.SamplesRequired)
}

// Trainer fits the price model.
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

// Train fits the model on rows. A rejected run returns a result with
// Success=false and a nil artifact; err is reserved for fitting failures.
func (t *Trainer) Train(rows []domain.PriceTrainingRow) (*TrainResult, *Artifact, error) {
	if t.cfg.SoldOnly {
		sold := make([]domain.PriceTrainingRow, 0, len(rows))
		for _, r := range rows {
			if r.Status.Terminal() {
				sold = append(sold, r)
			}
		}
		t.log.Info("using sold listings for training", "sold", len(sold), "total", len(rows))
		rows = sold
	}

	required := max(t.cfg.MinSamples, t.cfg.CVFolds, 2)
	if len(rows) < required {
		t.log.Warn("insufficient price training data", "available", len(rows), "required", required)
		res := &TrainResult{SamplesAvailable: len(rows), SamplesRequired: required}
		res.Error = res.Err().Error()
		return res, nil, nil
	}

	enc := features.NewCategoryEncoder()
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = enc.Vector(r.OriginalPrice, r.DaysUntilExpiry, r.Quantity, r.Category)
		y[i] = r.DiscountRatio
	}

	scaler, err := gbm.FitScaler(X)
	if err != nil {
		return nil, nil, err
	}
	Xs, err := scaler.TransformAll(X)
	if err != nil {
		return nil, nil, fmt.Errorf("scaling features: %w", err)
	}

	trainIdx, testIdx := gbm.TrainTestSplit(len(rows), t.cfg.TestFraction, t.cfg.Params.Seed)
	xTrain, yTrain := gbm.Rows(Xs, y, trainIdx)
	xTest, yTest := gbm.Rows(Xs, y, testIdx)

	t.log.Info("fitting gradient boosting model", "train", len(trainIdx), "test", len(testIdx))
	model, err := gbm.Fit(xTrain, yTrain, t.cfg.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("fitting regressor: %w", err)
	}
	pred, err := model.PredictAll(xTest)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluating regressor: %w", err)
	}

	t.log.Info("running cross-validation", "folds", t.cfg.CVFolds)
	cvMean, cvStd, err := gbm.CrossValidateRMSE(Xs, y, t.cfg.CVFolds, t.cfg.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("cross-validating: %w", err)
	}

	importance := make(map[string]float64, len(features.Names))
	for i, name := range features.Names {
		importance[name] = round(model.Importances[i], 4)
	}

	params := t.cfg.Params
	res := &TrainResult{
		Success:          true,
		SamplesAvailable: len(rows),
		Algorithm:        Algorithm,
		TrainingSamples:  len(rows),
		TestSamples:      len(testIdx),
		Metrics: &Metrics{
			RMSE:      round(gbm.RMSE(yTest, pred), 4),
			MAE:       round(gbm.MAE(yTest, pred), 4),
			R2:        round(gbm.R2(yTest, pred), 4),
			CVRMSE:    round(cvMean, 4),
			CVRMSEStd: round(cvStd, 4),
		},
		FeatureImportance: importance,
		Hyperparameters:   &params,
		DataStats:         dataStats(rows),
	}

	t.log.Info("price model trained", "rmse", res.Metrics.RMSE, "r2", res.Metrics.R2)
	return res, &Artifact{Regressor: model, Scaler: scaler, Encoder: enc}, nil
}

func dataStats(rows []domain.PriceTrainingRow) *DataStats {
	ratios := make([]float64, len(rows))
	prices := make([]float64, len(rows))
	cats := make(map[string]int)
	for i, r := range rows {
		ratios[i] = r.DiscountRatio
		prices[i] = r.OriginalPrice
		cats[features.NormalizeCategory(r.Category)]++
	}
	mean, std := stat.MeanStdDev(ratios, nil)
	return &DataStats{
		DiscountRatioMean: round(mean, 4),
		DiscountRatioStd:  round(std, 4),
		OriginalPriceMean: round(stat.Mean(prices, nil), 2),
		Categories:        cats,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
