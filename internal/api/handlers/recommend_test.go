package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/surplus-ml/internal/api/handlers"
	"github.com/donaldgifford/surplus-ml/internal/recommend"
	"github.com/donaldgifford/surplus-ml/internal/store"
	storeMocks "github.com/donaldgifford/surplus-ml/internal/store/mocks"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

func rankedResponse(ids ...int64) recommend.Response {
	resp := recommend.Response{Source: domain.SourceModel, SimilarProducts: []recommend.Result{}}
	for _, id := range ids {
		resp.SimilarProducts = append(resp.SimilarProducts, recommend.Result{
			Listing:         domain.Listing{ID: id, Title: "item", Status: domain.StatusActive},
			SimilarityScore: 0.5,
		})
	}
	resp.Count = len(resp.SimilarProducts)
	return resp
}

func TestRecommendHandler_Recommend(t *testing.T) {
	t.Parallel()

	rec := &fakeRecommender{resp: rankedResponse(2, 3)}
	_, api := humatest.New(t)
	handlers.RegisterRecommendRoutes(api, handlers.NewRecommendHandler(rec, storeMocks.NewMockStore(t)))

	resp := api.Post("/api/v1/recommendations", map[string]any{
		"target": map[string]any{"id": 1, "sellerId": 10, "title": "Whole milk", "category": "dairy", "quantity": 1, "status": "active", "createdAt": "2024-06-01T00:00:00Z"},
		"candidates": []map[string]any{
			{"id": 2, "sellerId": 11, "title": "Skim milk", "quantity": 1, "status": "active", "createdAt": "2024-06-01T00:00:00Z"},
			{"id": 3, "sellerId": 12, "title": "Oat milk", "quantity": 1, "status": "active", "createdAt": "2024-06-01T00:00:00Z"},
		},
		"user_id": 7,
		"limit":   5,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"count":2`)
	assert.Contains(t, resp.Body.String(), `"source":"ml_model"`)

	require.NotNil(t, rec.target)
	assert.Equal(t, int64(1), rec.target.ID)
	assert.Len(t, rec.candidates, 2)
	assert.Equal(t, int64(7), rec.userID)
	assert.Equal(t, 5, rec.limit)
}

func TestRecommendHandler_Similar(t *testing.T) {
	t.Parallel()

	target := &domain.Listing{ID: 5, SellerID: 10, Title: "Sourdough loaf", Category: "bakery", Status: domain.StatusActive}
	candidates := []domain.Listing{
		{ID: 6, SellerID: 11, Title: "Rye loaf", Category: "bakery", Status: domain.StatusActive},
	}

	tests := []struct {
		name       string
		path       string
		setupMock  func(*storeMocks.MockStore)
		wantStatus int
		wantBody   string
		wantUser   int64
		wantLimit  int
	}{
		{
			name: "ranks active listings from other sellers",
			path: "/api/v1/listings/5/similar?user_id=3&limit=4",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().GetListing(mock.Anything, int64(5)).Return(target, nil).Once()
				m.EXPECT().
					ListListings(mock.Anything, mock.MatchedBy(func(q *store.ListingQuery) bool {
						return q.Status != nil && *q.Status == "active" &&
							q.ExcludeID != nil && *q.ExcludeID == 5 &&
							q.ExcludeSellerID != nil && *q.ExcludeSellerID == 10 &&
							q.Limit == store.MaxListingLimit
					})).
					Return(candidates, nil).
					Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"source":"ml_model"`,
			wantUser:   3,
			wantLimit:  4,
		},
		{
			name: "unknown listing returns 404",
			path: "/api/v1/listings/99/similar",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().GetListing(mock.Anything, int64(99)).Return(nil, store.ErrNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `listing not found`,
		},
		{
			name: "store error returns 500",
			path: "/api/v1/listings/5/similar",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().GetListing(mock.Anything, int64(5)).Return(nil, errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `loading listing`,
		},
		{
			name: "candidate query error returns 500",
			path: "/api/v1/listings/5/similar",
			setupMock: func(m *storeMocks.MockStore) {
				m.EXPECT().GetListing(mock.Anything, int64(5)).Return(target, nil).Once()
				m.EXPECT().ListListings(mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `loading candidates`,
		},
		{
			name:       "invalid id returns 422",
			path:       "/api/v1/listings/0/similar",
			setupMock:  func(_ *storeMocks.MockStore) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := storeMocks.NewMockStore(t)
			tt.setupMock(ms)
			rec := &fakeRecommender{resp: rankedResponse(6)}

			_, api := humatest.New(t)
			handlers.RegisterRecommendRoutes(api, handlers.NewRecommendHandler(rec, ms))

			resp := api.Get(tt.path)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Contains(t, resp.Body.String(), tt.wantBody)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, target, rec.target)
				assert.Equal(t, candidates, rec.candidates)
				assert.Equal(t, tt.wantUser, rec.userID)
				assert.Equal(t, tt.wantLimit, rec.limit)
			}
		})
	}
}

func TestRecommendHandler_Profile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rec        *fakeRecommender
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name: "known user",
			rec: &fakeRecommender{
				available: true,
				profiles:  map[int64]map[string]float64{4: {"dairy": 1, "bakery": 0.5}},
			},
			path:       "/api/v1/users/4/profile",
			wantStatus: http.StatusOK,
			wantBody:   `"dairy":1`,
		},
		{
			name:       "unknown user",
			rec:        &fakeRecommender{available: true},
			path:       "/api/v1/users/8/profile",
			wantStatus: http.StatusNotFound,
			wantBody:   `no profile learned`,
		},
		{
			name:       "model unavailable",
			rec:        &fakeRecommender{},
			path:       "/api/v1/users/4/profile",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `not available`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			handlers.RegisterRecommendRoutes(api, handlers.NewRecommendHandler(tt.rec, storeMocks.NewMockStore(t)))

			resp := api.Get(tt.path)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}
