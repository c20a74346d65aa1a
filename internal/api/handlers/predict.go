package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/surplus-ml/internal/pricing"
)

// PricePredictor produces tagged price recommendations.
type PricePredictor interface {
	Predict(req pricing.Request) pricing.Recommendation
}

// PredictHandler serves price recommendations.
type PredictHandler struct {
	predictor PricePredictor
}

// NewPredictHandler creates a new PredictHandler.
func NewPredictHandler(p PricePredictor) *PredictHandler {
	return &PredictHandler{predictor: p}
}

// PredictInput is the request body for the predict endpoint.
type PredictInput struct {
	Body struct {
		OriginalPrice float64 `json:"original_price" example:"4.99" doc:"Price before discount"`
		ExpiryDate    string  `json:"expiry_date,omitempty" example:"2024-06-15" doc:"ISO date or date-time; defaults to 30 days out"`
		Category      string  `json:"category,omitempty" example:"dairy" doc:"Listing category; unknown values map to other"`
		Quantity      float64 `json:"quantity,omitempty" example:"2" doc:"Units offered; defaults to 1"`
	}
}

// PredictOutput is the response body for the predict endpoint.
type PredictOutput struct {
	Body pricing.Recommendation
}

// Predict recommends a discounted price for a listing.
func (h *PredictHandler) Predict(_ context.Context, input *PredictInput) (*PredictOutput, error) {
	rec := h.predictor.Predict(pricing.Request{
		OriginalPrice: input.Body.OriginalPrice,
		ExpiryDate:    input.Body.ExpiryDate,
		Category:      input.Body.Category,
		Quantity:      input.Body.Quantity,
	})
	return &PredictOutput{Body: rec}, nil
}

// RegisterPredictRoutes registers the price endpoint with the Huma API.
func RegisterPredictRoutes(api huma.API, h *PredictHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "predict-price",
		Method:      http.MethodPost,
		Path:        "/api/v1/price/predict",
		Summary:     "Recommend a listing price",
		Description: "Predicts the discount for a surplus listing and returns a bounded " +
			"price recommendation. Always answers 200; check source for the outcome.",
		Tags: []string{"pricing"},
	}, h.Predict)
}
