// Package handlers implements the Huma operations of the surplus-ml API.
//
// Inference operations always answer 200 with a tagged result; callers
// branch on its source field ("ml_model", "error" or "unavailable").
// Operational failures such as an unreachable store or a busy trainer map
// to regular HTTP errors.
package handlers

// StatusResponse is a generic status response body.
type StatusResponse struct {
	Status string `json:"status" example:"ok" doc:"Status"`
}
