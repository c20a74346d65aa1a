package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/internal/config"
	"github.com/donaldgifford/surplus-ml/internal/engine"
	"github.com/donaldgifford/surplus-ml/internal/notify"
	"github.com/donaldgifford/surplus-ml/internal/pricing"
	"github.com/donaldgifford/surplus-ml/internal/recommend"
	"github.com/donaldgifford/surplus-ml/internal/store"
)

// app holds the components shared by serve and train.
type app struct {
	store       store.Store
	price       *pricing.Predictor
	recommender *recommend.Recommender
	engine      *engine.Engine
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}

	artifacts := artifact.NewFileStore(cfg.Models.Dir)

	price := pricing.NewPredictor(artifacts, pricing.WithLogger(log))
	rec := recommend.NewRecommender(artifacts,
		recommend.WithLogger(log),
		recommend.WithDefaultLimit(cfg.Recommendation.TopK),
	)

	eng := engine.NewEngine(st, artifacts,
		engine.WithLogger(log),
		engine.WithPriceTrainer(pricing.NewTrainer(priceTrainerConfig(cfg), pricing.WithTrainerLogger(log))),
		engine.WithRecommendationTrainer(recommend.NewTrainer(recommendTrainerConfig(cfg), recommend.WithTrainerLogger(log))),
		engine.WithReloaders(price, rec),
		engine.WithModelsDir(cfg.Models.Dir),
		engine.WithReportsDir(cfg.Models.ReportsDir),
		engine.WithNotifier(newNotifier(cfg, log)),
	)

	return &app{store: st, price: price, recommender: rec, engine: eng}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if cfg.Notifications.Discord.Enabled {
		return notify.NewDiscordNotifier(cfg.Notifications.Discord.WebhookURL)
	}
	return notify.NewNoOpNotifier(log)
}

func priceTrainerConfig(cfg *config.Config) pricing.TrainerConfig {
	return pricing.TrainerConfig{
		MinSamples:   cfg.Pricing.MinSamples,
		CVFolds:      cfg.Pricing.CVFolds,
		SoldOnly:     !cfg.Pricing.IncludeUnsold,
		TestFraction: cfg.Pricing.TestFraction,
		Params:       cfg.Pricing.GBM,
	}
}

func recommendTrainerConfig(cfg *config.Config) recommend.TrainerConfig {
	return recommend.TrainerConfig{
		TFIDF:        cfg.Recommendation.TFIDF,
		MinUsers:     cfg.Recommendation.MinUsers,
		MinProducts:  cfg.Recommendation.MinProducts,
		MetricSample: cfg.Recommendation.MetricSample,
		Seed:         cfg.Recommendation.Seed,
	}
}
