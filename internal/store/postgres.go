package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// PriceListings returns listings usable as price training examples.
func (s *PostgresStore) PriceListings(ctx context.Context) ([]domain.Listing, error) {
	return s.queryListings(ctx, queryPriceListings)
}

// GetListing retrieves a listing with its seller profile.
func (s *PostgresStore) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := scanPgListing(s.pool.QueryRow(ctx, queryGetListingPostgres, id), l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing %d: %w", id, err)
	}
	return l, nil
}

// ListListings queries listings with optional filters.
func (s *PostgresStore) ListListings(ctx context.Context, q *ListingQuery) ([]domain.Listing, error) {
	if q == nil {
		q = &ListingQuery{}
	}
	query, args := q.ToSQL(DollarPlaceholder)
	return s.queryListings(ctx, query, args...)
}

// RecommendationCorpus returns the text corpus and interaction events.
func (s *PostgresStore) RecommendationCorpus(ctx context.Context) (*domain.Corpus, error) {
	c := &domain.Corpus{}

	var err error
	if c.Listings, err = s.queryCorpus(ctx, queryCorpusListings, func(it *domain.CorpusItem) []any {
		return []any{&it.Title, &it.Description, &it.Category}
	}); err != nil {
		return nil, fmt.Errorf("querying corpus listings: %w", err)
	}
	if c.Products, err = s.queryCorpus(ctx, queryCorpusProducts, func(it *domain.CorpusItem) []any {
		return []any{&it.ProductName, &it.Description, &it.Category}
	}); err != nil {
		return nil, fmt.Errorf("querying corpus products: %w", err)
	}

	rows, err := s.pool.Query(ctx, queryInteractions)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	c.Interactions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Interaction, error) {
		var in domain.Interaction
		err := row.Scan(&in.ID, &in.ProductID, &in.UserID, &in.Type, &in.Quantity, &in.Category, &in.Date)
		return in, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning interactions: %w", err)
	}

	return c, nil
}

// CategoryActions returns aggregated positive actions per user and category.
func (s *PostgresStore) CategoryActions(ctx context.Context) ([]domain.CategoryAction, error) {
	rows, err := s.pool.Query(ctx, queryCategoryActions)
	if err != nil {
		return nil, fmt.Errorf("querying category actions: %w", err)
	}
	actions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CategoryAction, error) {
		var a domain.CategoryAction
		err := row.Scan(&a.UserID, &a.Category, &a.Type, &a.Count)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning category actions: %w", err)
	}
	return actions, nil
}

// DataSummary reports training data availability.
func (s *PostgresStore) DataSummary(ctx context.Context) (*domain.DataSummary, error) {
	sum := &domain.DataSummary{ListingsByStatus: map[string]int{}}

	counts := []struct {
		query string
		dest  *int
	}{
		{queryCountUsers, &sum.TotalUsers},
		{queryCountListingsWithPrices, &sum.ListingsWithPrices},
		{queryCountSoldListings, &sum.SoldListings},
		{queryCountInteractions, &sum.TotalInteractions},
		{queryCountUsersWithInteractions, &sum.UsersWithInteractions},
		{queryCountProducts, &sum.TotalProducts},
	}
	for _, c := range counts {
		if err := s.pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, queryListingsByStatus)
	if err != nil {
		return nil, fmt.Errorf("querying listings by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		sum.ListingsByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	return sum, nil
}

func (s *PostgresStore) queryCorpus(
	ctx context.Context,
	query string,
	fields func(*domain.CorpusItem) []any,
) ([]domain.CorpusItem, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CorpusItem, error) {
		var it domain.CorpusItem
		err := row.Scan(fields(&it)...)
		return it, err
	})
}

// queryListings is a helper for listing queries.
func (s *PostgresStore) queryListings(ctx context.Context, query string, args ...any) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := scanPgListing(rows, &l); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// scannable abstracts pgx.Row, pgx.Rows and *sql.Row(s) for reuse.
type scannable interface {
	Scan(dest ...any) error
}

// scanPgListing scans a full listing row with native timestamps.
func scanPgListing(row scannable, l *domain.Listing) error {
	var sellerName, sellerAvatar string
	if err := row.Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Category,
		&l.Quantity, &l.Unit, &l.Price, &l.OriginalPrice, &l.ExpiryDate,
		&l.Status, &l.CreatedAt, &l.CompletedAt, &sellerName, &sellerAvatar,
	); err != nil {
		return err
	}
	attachSeller(l, sellerName, sellerAvatar)
	return nil
}

// attachSeller sets the seller profile when the seller row exists.
func attachSeller(l *domain.Listing, name, avatar string) {
	if name == "" && avatar == "" {
		return
	}
	l.Seller = &domain.Seller{ID: l.SellerID, Name: name, Avatar: avatar}
}
