package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health and readiness endpoints.
type HealthHandler struct {
	store  Pinger
	models map[string]Model
}

// NewHealthHandler creates a new HealthHandler. Model availability is
// reported by readiness but does not affect it: the service answers
// inference requests with "unavailable" until a model is trained.
func NewHealthHandler(s Pinger, models map[string]Model) *HealthHandler {
	return &HealthHandler{store: s, models: models}
}

// HealthOutput is the liveness response.
type HealthOutput struct {
	Body StatusResponse
}

// ReadyOutput is the readiness response.
type ReadyOutput struct {
	Status int
	Body   struct {
		Status string          `json:"status" example:"ready" doc:"ready or unavailable"`
		Error  string          `json:"error,omitempty" doc:"Store error when unavailable"`
		Models map[string]bool `json:"models" doc:"Whether each model artifact is loaded"`
	}
}

// Healthz returns 200 if the process is running.
func (*HealthHandler) Healthz(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: StatusResponse{Status: "ok"}}, nil
}

// Readyz returns 200 if the data store is reachable, 503 otherwise.
func (h *HealthHandler) Readyz(ctx context.Context, _ *struct{}) (*ReadyOutput, error) {
	resp := &ReadyOutput{Status: http.StatusOK}
	resp.Body.Status = "ready"
	resp.Body.Models = make(map[string]bool, len(h.models))
	for name, m := range h.models {
		resp.Body.Models[name] = m.Available()
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = http.StatusServiceUnavailable
		resp.Body.Status = "unavailable"
		resp.Body.Error = err.Error()
	}
	return resp, nil
}

// RegisterHealthRoutes registers the probe endpoints with the Huma API.
func RegisterHealthRoutes(api huma.API, h *HealthHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness check",
		Tags:        []string{"health"},
	}, h.Healthz)

	huma.Register(api, huma.Operation{
		OperationID: "readyz",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness check",
		Description: "Returns 200 if the data store is reachable, 503 otherwise. " +
			"Model availability is reported for information only.",
		Tags: []string{"health"},
	}, h.Readyz)
}
