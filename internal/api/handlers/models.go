package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/internal/engine"
)

// Model is a live predictor whose artifacts can be reloaded from disk.
type Model interface {
	Available() bool
	Reload() bool
}

// MetadataSource reads the metadata written by the last training run.
type MetadataSource interface {
	Metadata() (*engine.Metadata, error)
}

// ModelsHandler reports and reloads the live models.
type ModelsHandler struct {
	models   map[string]Model
	metadata MetadataSource
}

// NewModelsHandler creates a new ModelsHandler. models is keyed by the
// names used in model metadata.
func NewModelsHandler(models map[string]Model, md MetadataSource) *ModelsHandler {
	return &ModelsHandler{models: models, metadata: md}
}

// ModelStatus describes one model.
type ModelStatus struct {
	Name            string `json:"name" example:"price_optimization" doc:"Model name"`
	Available       bool   `json:"available" doc:"Whether the artifact is loaded"`
	Version         string `json:"version,omitempty" doc:"Training run that produced the artifact"`
	Algorithm       string `json:"algorithm,omitempty" example:"GradientBoosting" doc:"Training algorithm"`
	TrainingSamples int    `json:"training_samples,omitempty" doc:"Samples used in training"`
	Metrics         any    `json:"metrics,omitempty" doc:"Evaluation metrics from training"`
}

// ModelsOutput is the response body for the models endpoint.
type ModelsOutput struct {
	Body struct {
		TrainingID string        `json:"training_id,omitempty" doc:"Most recent training run"`
		TrainedAt  *time.Time    `json:"trained_at,omitempty" doc:"When the most recent run finished"`
		Models     []ModelStatus `json:"models" doc:"Per-model status"`
	}
}

// List returns availability and training metadata for every model.
func (h *ModelsHandler) List(_ context.Context, _ *struct{}) (*ModelsOutput, error) {
	md, err := h.metadata.Metadata()
	if err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return nil, huma.Error500InternalServerError("reading model metadata: " + err.Error())
	}

	resp := &ModelsOutput{}
	if md != nil {
		resp.Body.TrainingID = md.TrainingID
		resp.Body.TrainedAt = &md.Timestamp
	}

	resp.Body.Models = make([]ModelStatus, 0, len(h.models))
	for _, name := range h.names() {
		st := ModelStatus{Name: name, Available: h.models[name].Available()}
		if md != nil {
			if m, ok := md.Models[name]; ok {
				st.Version = m.Version
				st.Algorithm = m.Algorithm
				st.TrainingSamples = m.TrainingSamples
				st.Metrics = m.Metrics
			}
		}
		resp.Body.Models = append(resp.Body.Models, st)
	}
	return resp, nil
}

// ReloadOutput is the response body for the reload endpoint.
type ReloadOutput struct {
	Body struct {
		Loaded map[string]bool `json:"loaded" doc:"Whether each model loaded successfully"`
	}
}

// Reload re-reads every model's artifacts from disk.
func (h *ModelsHandler) Reload(_ context.Context, _ *struct{}) (*ReloadOutput, error) {
	resp := &ReloadOutput{}
	resp.Body.Loaded = make(map[string]bool, len(h.models))
	for name, m := range h.models {
		resp.Body.Loaded[name] = m.Reload()
	}
	return resp, nil
}

func (h *ModelsHandler) names() []string {
	names := make([]string, 0, len(h.models))
	for name := range h.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterModelRoutes registers model management endpoints with the Huma API.
func RegisterModelRoutes(api huma.API, h *ModelsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/api/v1/models",
		Summary:     "List models",
		Description: "Returns availability and last training metadata for each model.",
		Tags:        []string{"models"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "reload-models",
		Method:      http.MethodPost,
		Path:        "/api/v1/models/reload",
		Summary:     "Reload model artifacts",
		Description: "Re-reads artifacts from the models directory. A model whose " +
			"artifacts are missing or corrupt becomes unavailable.",
		Tags: []string{"models"},
	}, h.Reload)
}
