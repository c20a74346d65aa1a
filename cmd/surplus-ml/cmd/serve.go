package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/donaldgifford/surplus-ml/internal/api/handlers"
	mw "github.com/donaldgifford/surplus-ml/internal/api/middleware"
	"github.com/donaldgifford/surplus-ml/internal/engine"
	"github.com/donaldgifford/surplus-ml/internal/tracing"
)

const apiTitle = "surplus-ml API"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and optional retraining schedule",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: "surplus-ml",
		Version:     Version,
	}, log)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("flushing traces", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(mw.Recovery(log))
	e.Use(mw.RequestLog(log))
	e.Use(mw.Tracing())
	e.Use(mw.Metrics())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig(apiTitle, Version))
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Server.TrainPerMinute)), 1)
	registerRoutes(api, a, limiter)

	if cfg.Schedule.RetrainInterval > 0 {
		sched, err := engine.NewScheduler(a.engine, cfg.Schedule.RetrainInterval, engine.TrainOptions{}, log)
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server",
		"addr", addr,
		"price_model", a.price.Available(),
		"recommendation_model", a.recommender.Available(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// registerRoutes mounts every API operation backed by the app's components.
func registerRoutes(api huma.API, a *app, limiter *rate.Limiter) {
	models := map[string]handlers.Model{
		engine.PriceModelName:          a.price,
		engine.RecommendationModelName: a.recommender,
	}

	handlers.RegisterHealthRoutes(api, handlers.NewHealthHandler(a.store, models))
	handlers.RegisterPredictRoutes(api, handlers.NewPredictHandler(a.price))
	handlers.RegisterRecommendRoutes(api, handlers.NewRecommendHandler(a.recommender, a.store))
	handlers.RegisterModelRoutes(api, handlers.NewModelsHandler(models, a.engine))
	handlers.RegisterTrainRoutes(api, handlers.NewTrainHandler(a.engine, limiter))
}
