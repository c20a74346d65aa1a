package handlers_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/donaldgifford/surplus-ml/internal/api/handlers"
	"github.com/donaldgifford/surplus-ml/internal/engine"
)

func TestTrainHandler_Train(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		runner     *fakeRunner
		body       any
		wantStatus int
		wantBody   string
		wantOpts   engine.TrainOptions
	}{
		{
			name: "runs training",
			runner: &fakeRunner{res: &engine.RunResult{
				TrainingID: "run-1",
				Timestamp:  time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
			}},
			body:       map[string]any{"skip_price": true},
			wantStatus: http.StatusOK,
			wantBody:   `"training_id":"run-1"`,
			wantOpts:   engine.TrainOptions{SkipPrice: true},
		},
		{
			name:       "concurrent run returns 409",
			runner:     &fakeRunner{err: engine.ErrTrainingInProgress},
			body:       map[string]any{},
			wantStatus: http.StatusConflict,
			wantBody:   `training already in progress`,
		},
		{
			name:       "summary failure returns 500",
			runner:     &fakeRunner{err: errors.New("loading data summary: db down")},
			body:       map[string]any{"skip_recommendation": true},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `training failed`,
			wantOpts:   engine.TrainOptions{SkipRecommendation: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			handlers.RegisterTrainRoutes(api, handlers.NewTrainHandler(tt.runner, nil))

			resp := api.Post("/api/v1/train", tt.body)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Contains(t, resp.Body.String(), tt.wantBody)
			assert.Equal(t, 1, tt.runner.calls)
			assert.Equal(t, tt.wantOpts, tt.runner.opts)
			assert.NoError(t, tt.runner.ctxErr)
		})
	}
}

func TestTrainHandler_RateLimited(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{res: &engine.RunResult{TrainingID: "run-1"}}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)

	_, api := humatest.New(t)
	handlers.RegisterTrainRoutes(api, handlers.NewTrainHandler(runner, limiter))

	first := api.Post("/api/v1/train", map[string]any{})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := api.Post("/api/v1/train", map[string]any{})
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, 1, runner.calls, "throttled requests never reach the engine")
}
