package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/surplus-ml/internal/engine"
	"github.com/donaldgifford/surplus-ml/internal/pricing"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1") // nothing listening
	_, err := c.ListModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server not running")
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"training already in progress"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Train(context.Background(), engine.TrainOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 409)")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "training already in progress", apiErr.Detail)
}

func TestClient_HTTPErrorPlainBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ListModels(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Detail)
}

func TestClient_PredictPrice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/price/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req pricing.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 4.99, req.OriginalPrice, 1e-9)
		assert.Equal(t, "dairy", req.Category)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recommended_price":2.5,"discount_percentage":49.9,` +
			`"days_until_expiry":3,"source":"ml_model"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	rec, err := c.PredictPrice(context.Background(), &pricing.Request{OriginalPrice: 4.99, Category: "dairy"})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, rec.RecommendedPrice, 1e-9)
	assert.Equal(t, 3, rec.DaysUntilExpiry)
	assert.Equal(t, domain.SourceModel, rec.Source)
}

func TestClient_Recommend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/recommendations", r.URL.Path)

		var req RecommendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(1), req.Target.ID)
		assert.Len(t, req.Candidates, 2)
		assert.Equal(t, int64(7), req.UserID)

		_, _ = w.Write([]byte(`{"similar_products":[{"id":3,"title":"milk","similarity_score":0.8,` +
			`"match_factors":{}}],"count":1,"personalized":true,"source":"ml_model"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Recommend(context.Background(), &RecommendRequest{
		Target:     domain.Listing{ID: 1, Title: "bread"},
		Candidates: []domain.Listing{{ID: 2}, {ID: 3}},
		UserID:     7,
	})
	require.NoError(t, err)
	require.Len(t, resp.SimilarProducts, 1)
	assert.Equal(t, int64(3), resp.SimilarProducts[0].ID)
	assert.True(t, resp.Personalized)
}

func TestClient_Similar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		userID    int64
		limit     int
		wantQuery string
	}{
		{name: "no query", wantQuery: ""},
		{name: "user and limit", userID: 4, limit: 5, wantQuery: "limit=5&user_id=4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/listings/9/similar", r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.RawQuery)
				_, _ = w.Write([]byte(`{"similar_products":[],"count":0,"personalized":false,"source":"unavailable"}`))
			}))
			defer srv.Close()

			resp, err := New(srv.URL).Similar(context.Background(), 9, tt.userID, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, domain.SourceUnavailable, resp.Source)
		})
	}
}

func TestClient_GetUserProfile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/12/profile", r.URL.Path)
		_, _ = w.Write([]byte(`{"user_id":12,"preferences":{"dairy":1,"bakery":0.5}}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL).GetUserProfile(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.UserID)
	assert.InDelta(t, 0.5, p.Preferences["bakery"], 1e-9)
}

func TestClient_ListModels(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"training_id":"run-1","trained_at":"2024-06-10T09:00:00Z","models":[` +
			`{"name":"price_optimization","available":true,"version":"run-1","training_samples":80},` +
			`{"name":"product_recommendation","available":false}]}`))
	}))
	defer srv.Close()

	m, err := New(srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.TrainingID)
	require.NotNil(t, m.TrainedAt)
	require.Len(t, m.Models, 2)
	assert.True(t, m.Models[0].Available)
	assert.Equal(t, 80, m.Models[0].TrainingSamples)
	assert.False(t, m.Models[1].Available)
}

func TestClient_ReloadModels(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/models/reload", r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"loaded":{"price_optimization":true,"product_recommendation":false}}`))
	}))
	defer srv.Close()

	loaded, err := New(srv.URL).ReloadModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"price_optimization": true, "product_recommendation": false}, loaded)
}

func TestClient_Train(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/train", r.URL.Path)

		var opts engine.TrainOptions
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
		assert.True(t, opts.SkipRecommendation)

		_, _ = w.Write([]byte(`{"training_id":"run-2","timestamp":"2024-06-10T09:00:00Z",` +
			`"data_summary":null,"models":{"price_optimization":{"success":true,"samples_available":80}}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).Train(context.Background(), engine.TrainOptions{SkipRecommendation: true})
	require.NoError(t, err)
	assert.Equal(t, "run-2", res.TrainingID)
	require.NotNil(t, res.Models.Price)
	assert.True(t, res.Models.Price.Success)
	assert.Nil(t, res.Models.Recommendation)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	c := New("http://example.com", WithHTTPClient(custom))
	assert.Same(t, custom, c.httpClient)
}
