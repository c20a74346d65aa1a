//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/surplus-ml/internal/store"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

var seedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupPostgres(t *testing.T) (*store.PostgresStore, string) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sml_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s, connStr
}

// seedPostgres inserts a small marketplace over a direct connection.
func seedPostgres(t *testing.T, connStr string) {
	t.Helper()
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()

	stmts := []string{
		`INSERT INTO users (id, name, avatar_url) VALUES (1, 'Ana', 'a.png'), (2, 'Ben', NULL), (3, 'Cy', NULL)`,
		`INSERT INTO marketplace_listings
			(id, seller_id, title, description, category, quantity, unit, price, original_price, expiry_date, status, created_at)
		VALUES
			(1, 1, 'Sourdough loaf', 'day old', 'Bakery', 2, 'pcs', 3.0, 6.0, '2024-06-04T12:00:00Z', 'sold', '2024-06-01T12:00:00Z'),
			(2, 2, 'Milk', NULL, 'dairy', 1, 'l', 1.0, 2.0, NULL, 'active', '2024-06-01T12:00:00Z'),
			(3, 2, 'Apples', 'bag', 'produce', 3, 'kg', NULL, 4.0, NULL, 'active', '2024-06-01T12:00:00Z')`,
		`INSERT INTO products (id, user_id, product_name, category, description) VALUES
			(1, 1, 'Rye bread', 'bakery', 'whole grain'),
			(2, 2, 'Yogurt', 'dairy', NULL)`,
		`INSERT INTO product_sustainability_metrics (product_id, user_id, today_date, quantity, type) VALUES
			(1, 1, '2024-06-01T12:00:00Z', 1, 'consumed'),
			(1, 1, '2024-06-01T12:00:00Z', 1, 'shared'),
			(2, 2, '2024-06-01T12:00:00Z', 2, 'sold'),
			(2, 3, '2024-06-01T12:00:00Z', 1, 'other')`,
	}
	for _, q := range stmts {
		_, err := conn.Exec(ctx, q)
		require.NoError(t, err)
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s, _ := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	s, _ := setupPostgres(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestPostgresStore_TrainingData(t *testing.T) {
	s, connStr := setupPostgres(t)
	seedPostgres(t, connStr)
	ctx := context.Background()

	t.Run("price listings", func(t *testing.T) {
		listings, err := s.PriceListings(ctx)
		require.NoError(t, err)
		require.Len(t, listings, 2)
		assert.Equal(t, "Sourdough loaf", listings[0].Title)
		require.NotNil(t, listings[0].ExpiryDate)
		assert.True(t, seedNow.Add(72*time.Hour).Equal(*listings[0].ExpiryDate))
		require.NotNil(t, listings[0].Seller)
		assert.Equal(t, "a.png", listings[0].Seller.Avatar)
	})

	t.Run("corpus", func(t *testing.T) {
		c, err := s.RecommendationCorpus(ctx)
		require.NoError(t, err)
		assert.Len(t, c.Listings, 3)
		assert.Len(t, c.Products, 2)
		assert.Len(t, c.Interactions, 4)
		assert.Equal(t, 3, c.DistinctUsers())
	})

	t.Run("category actions", func(t *testing.T) {
		actions, err := s.CategoryActions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.CategoryAction{
			{UserID: 1, Category: "bakery", Type: domain.InteractionConsumed, Count: 1},
			{UserID: 1, Category: "bakery", Type: domain.InteractionShared, Count: 1},
			{UserID: 2, Category: "dairy", Type: domain.InteractionSold, Count: 1},
		}, actions)
	})

	t.Run("summary", func(t *testing.T) {
		sum, err := s.DataSummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, sum.TotalUsers)
		assert.Equal(t, map[string]int{"active": 2, "sold": 1}, sum.ListingsByStatus)
		assert.Equal(t, 2, sum.ListingsWithPrices)
		assert.Equal(t, 1, sum.SoldListings)
		assert.Equal(t, 4, sum.TotalInteractions)
		assert.Equal(t, 3, sum.UsersWithInteractions)
		assert.Equal(t, 2, sum.TotalProducts)
	})
}

func TestPostgresStore_Listings(t *testing.T) {
	s, connStr := setupPostgres(t)
	seedPostgres(t, connStr)
	ctx := context.Background()

	l, err := s.GetListing(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Milk", l.Title)
	assert.Equal(t, domain.StatusActive, l.Status)

	_, err = s.GetListing(ctx, 42)
	require.ErrorIs(t, err, store.ErrNotFound)

	active := "active"
	seller := int64(2)
	listings, err := s.ListListings(ctx, &store.ListingQuery{Status: &active, ExcludeSellerID: &seller})
	require.NoError(t, err)
	assert.Empty(t, listings)

	listings, err = s.ListListings(ctx, &store.ListingQuery{Status: &active, OrderBy: "price"})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, int64(2), listings[0].ID)
}
