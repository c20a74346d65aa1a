package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/time/rate"

	"github.com/donaldgifford/surplus-ml/internal/engine"
)

// TrainingRunner runs a full training pass.
type TrainingRunner interface {
	RunTraining(ctx context.Context, opts engine.TrainOptions) (*engine.RunResult, error)
}

// TrainHandler handles manual training triggers.
type TrainHandler struct {
	runner  TrainingRunner
	limiter *rate.Limiter
}

// NewTrainHandler creates a new TrainHandler. A nil limiter disables
// throttling.
func NewTrainHandler(r TrainingRunner, limiter *rate.Limiter) *TrainHandler {
	return &TrainHandler{runner: r, limiter: limiter}
}

// TrainInput is the request body for the train endpoint.
type TrainInput struct {
	Body struct {
		SkipPrice          bool `json:"skip_price,omitempty" doc:"Do not train the price model"`
		SkipRecommendation bool `json:"skip_recommendation,omitempty" doc:"Do not train the recommendation model"`
	} `required:"false"`
}

// TrainOutput is the response body for the train endpoint.
type TrainOutput struct {
	Body *engine.RunResult
}

// Train runs training synchronously and returns the run result. Models that
// fail report it in their own result; the request still succeeds.
func (h *TrainHandler) Train(ctx context.Context, input *TrainInput) (*TrainOutput, error) {
	if h.limiter != nil && !h.limiter.Allow() {
		return nil, huma.Error429TooManyRequests("training was triggered too recently; try again later")
	}

	// A dropped client connection must not abandon a half-written run.
	res, err := h.runner.RunTraining(context.WithoutCancel(ctx), engine.TrainOptions{
		SkipPrice:          input.Body.SkipPrice,
		SkipRecommendation: input.Body.SkipRecommendation,
	})
	if errors.Is(err, engine.ErrTrainingInProgress) {
		return nil, huma.Error409Conflict(err.Error())
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("training failed: " + err.Error())
	}
	return &TrainOutput{Body: res}, nil
}

// RegisterTrainRoutes registers the training trigger with the Huma API.
func RegisterTrainRoutes(api huma.API, h *TrainHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "train-models",
		Method:      http.MethodPost,
		Path:        "/api/v1/train",
		Summary:     "Train models",
		Description: "Trains the price and recommendation models from the current data, " +
			"saves their artifacts and reloads the live predictors.",
		Tags: []string{"models"},
		Errors: []int{
			http.StatusConflict,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		},
	}, h.Train)
}
