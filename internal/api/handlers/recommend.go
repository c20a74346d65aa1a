package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/surplus-ml/internal/recommend"
	"github.com/donaldgifford/surplus-ml/internal/store"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// ProductRecommender ranks candidate listings and exposes learned
// user preferences.
type ProductRecommender interface {
	Recommend(target *domain.Listing, candidates []domain.Listing, userID int64, limit int) recommend.Response
	UserProfile(userID int64) (map[string]float64, bool)
	Available() bool
}

// RecommendHandler serves similar-listing recommendations.
type RecommendHandler struct {
	recommender ProductRecommender
	store       store.Store
	// candidateLimit bounds how many active listings are scored per request.
	candidateLimit int
}

// NewRecommendHandler creates a new RecommendHandler.
func NewRecommendHandler(r ProductRecommender, s store.Store) *RecommendHandler {
	return &RecommendHandler{recommender: r, store: s, candidateLimit: store.MaxListingLimit}
}

// RecommendInput is the request body for ad hoc recommendations.
type RecommendInput struct {
	Body struct {
		Target     domain.Listing   `json:"target" doc:"Listing to find similar items for"`
		Candidates []domain.Listing `json:"candidates" doc:"Listings to rank"`
		UserID     int64            `json:"user_id,omitempty" example:"12" doc:"Viewer for personalization; 0 or absent is anonymous"`
		Limit      int              `json:"limit,omitempty" example:"10" minimum:"0" doc:"Maximum results; 0 uses the default"`
	}
}

// RecommendOutput is the response body for recommendation endpoints.
type RecommendOutput struct {
	Body recommend.Response
}

// Recommend ranks caller-supplied candidates against a target listing.
func (h *RecommendHandler) Recommend(_ context.Context, input *RecommendInput) (*RecommendOutput, error) {
	resp := h.recommender.Recommend(&input.Body.Target, input.Body.Candidates, input.Body.UserID, input.Body.Limit)
	return &RecommendOutput{Body: resp}, nil
}

// SimilarInput identifies a stored listing.
type SimilarInput struct {
	ID     int64 `path:"id" minimum:"1" doc:"Listing ID"`
	UserID int64 `query:"user_id" doc:"Viewer for personalization; 0 is anonymous"`
	Limit  int   `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results; 0 uses the default"`
}

// Similar ranks active listings against a stored listing.
func (h *RecommendHandler) Similar(ctx context.Context, input *SimilarInput) (*RecommendOutput, error) {
	target, err := h.store.GetListing(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error404NotFound("listing not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("loading listing: " + err.Error())
	}

	active := string(domain.StatusActive)
	candidates, err := h.store.ListListings(ctx, &store.ListingQuery{
		Status:          &active,
		ExcludeID:       &target.ID,
		ExcludeSellerID: &target.SellerID,
		Limit:           h.candidateLimit,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("loading candidates: " + err.Error())
	}

	resp := h.recommender.Recommend(target, candidates, input.UserID, input.Limit)
	return &RecommendOutput{Body: resp}, nil
}

// ProfileInput identifies a user.
type ProfileInput struct {
	ID int64 `path:"id" minimum:"1" doc:"User ID"`
}

// ProfileOutput is a user's learned category preferences.
type ProfileOutput struct {
	Body struct {
		UserID      int64              `json:"user_id" example:"12" doc:"User ID"`
		Preferences map[string]float64 `json:"preferences" doc:"Category preference in [0, 1]"`
	}
}

// Profile returns the category preferences learned for a user.
func (h *RecommendHandler) Profile(_ context.Context, input *ProfileInput) (*ProfileOutput, error) {
	if !h.recommender.Available() {
		return nil, huma.Error503ServiceUnavailable("recommendation model not available")
	}
	prefs, ok := h.recommender.UserProfile(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("no profile learned for user")
	}

	resp := &ProfileOutput{}
	resp.Body.UserID = input.ID
	resp.Body.Preferences = prefs
	return resp, nil
}

// RegisterRecommendRoutes registers recommendation endpoints with the Huma API.
func RegisterRecommendRoutes(api huma.API, h *RecommendHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "recommend",
		Method:      http.MethodPost,
		Path:        "/api/v1/recommendations",
		Summary:     "Rank candidate listings",
		Description: "Ranks the supplied candidates by text similarity to the target, " +
			"boosted by the viewer's category preferences. Always answers 200; " +
			"check source for the outcome.",
		Tags: []string{"recommendations"},
	}, h.Recommend)

	huma.Register(api, huma.Operation{
		OperationID: "similar-listings",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings/{id}/similar",
		Summary:     "Find listings similar to a stored listing",
		Description: "Scores active listings from other sellers against the given listing.",
		Tags:        []string{"recommendations"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.Similar)

	huma.Register(api, huma.Operation{
		OperationID: "user-profile",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/profile",
		Summary:     "Get learned category preferences",
		Tags:        []string{"recommendations"},
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, h.Profile)
}
