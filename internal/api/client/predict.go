package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/donaldgifford/surplus-ml/internal/pricing"
	"github.com/donaldgifford/surplus-ml/internal/recommend"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// PredictPrice requests a price recommendation for a listing.
func (c *Client) PredictPrice(ctx context.Context, req *pricing.Request) (*pricing.Recommendation, error) {
	var rec pricing.Recommendation
	if err := c.post(ctx, "/api/v1/price/predict", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecommendRequest is the body of an ad hoc recommendation request.
type RecommendRequest struct {
	Target     domain.Listing   `json:"target"`
	Candidates []domain.Listing `json:"candidates"`
	UserID     int64            `json:"user_id,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// Recommend ranks caller-supplied candidates against a target listing.
func (c *Client) Recommend(ctx context.Context, req *RecommendRequest) (*recommend.Response, error) {
	var resp recommend.Response
	if err := c.post(ctx, "/api/v1/recommendations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Similar ranks active listings against a stored listing. userID and limit
// are omitted when zero.
func (c *Client) Similar(ctx context.Context, listingID, userID int64, limit int) (*recommend.Response, error) {
	q := url.Values{}
	if userID != 0 {
		q.Set("user_id", strconv.FormatInt(userID, 10))
	}
	if limit != 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := fmt.Sprintf("/api/v1/listings/%d/similar", listingID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp recommend.Response
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserProfile is a user's learned category preferences.
type UserProfile struct {
	UserID      int64              `json:"user_id"`
	Preferences map[string]float64 `json:"preferences"`
}

// GetUserProfile returns the preferences learned for a user.
func (c *Client) GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	var p UserProfile
	if err := c.get(ctx, fmt.Sprintf("/api/v1/users/%d/profile", userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
