package client

import (
	"context"
	"time"

	"github.com/donaldgifford/surplus-ml/internal/engine"
)

// ModelStatus describes one live model.
type ModelStatus struct {
	Name            string `json:"name"`
	Available       bool   `json:"available"`
	Version         string `json:"version,omitempty"`
	Algorithm       string `json:"algorithm,omitempty"`
	TrainingSamples int    `json:"training_samples,omitempty"`
	Metrics         any    `json:"metrics,omitempty"`
}

// Models is the server's view of its live models.
type Models struct {
	TrainingID string        `json:"training_id,omitempty"`
	TrainedAt  *time.Time    `json:"trained_at,omitempty"`
	Models     []ModelStatus `json:"models"`
}

// ListModels returns availability and training metadata for every model.
func (c *Client) ListModels(ctx context.Context) (*Models, error) {
	var m Models
	if err := c.get(ctx, "/api/v1/models", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReloadModels asks the server to re-read artifacts from disk and returns
// whether each model loaded.
func (c *Client) ReloadModels(ctx context.Context) (map[string]bool, error) {
	var resp struct {
		Loaded map[string]bool `json:"loaded"`
	}
	if err := c.post(ctx, "/api/v1/models/reload", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Loaded, nil
}

// Train triggers a training run on the server and waits for it to finish.
func (c *Client) Train(ctx context.Context, opts engine.TrainOptions) (*engine.RunResult, error) {
	var res engine.RunResult
	if err := c.post(ctx, "/api/v1/train", opts, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
