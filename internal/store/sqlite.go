package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// SQLiteStore implements Store over the marketplace's SQLite database.
// Timestamps are stored as unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at path. Use ":memory:" for a
// private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverSQLite, path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for seeding and tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return RunSQLiteMigrations(ctx, s.db)
}

// PriceListings returns listings usable as price training examples.
func (s *SQLiteStore) PriceListings(ctx context.Context) ([]domain.Listing, error) {
	return s.queryListings(ctx, queryPriceListings)
}

// GetListing retrieves a listing with its seller profile.
func (s *SQLiteStore) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := scanSQLiteListing(s.db.QueryRowContext(ctx, queryGetListingSQLite, id), l)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing %d: %w", id, err)
	}
	return l, nil
}

// ListListings queries listings with optional filters.
func (s *SQLiteStore) ListListings(ctx context.Context, q *ListingQuery) ([]domain.Listing, error) {
	if q == nil {
		q = &ListingQuery{}
	}
	query, args := q.ToSQL(QuestionPlaceholder)
	return s.queryListings(ctx, query, args...)
}

// RecommendationCorpus returns the text corpus and interaction events.
func (s *SQLiteStore) RecommendationCorpus(ctx context.Context) (*domain.Corpus, error) {
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

	rows, err := s.db.QueryContext(ctx, queryInteractions)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			in   domain.Interaction
			date int64
		)
		if err := rows.Scan(&in.ID, &in.ProductID, &in.UserID, &in.Type, &in.Quantity, &in.Category, &date); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		in.Date = time.Unix(date, 0).UTC()
		c.Interactions = append(c.Interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interactions: %w", err)
	}

	return c, nil
}

// CategoryActions returns aggregated positive actions per user and category.
func (s *SQLiteStore) CategoryActions(ctx context.Context) ([]domain.CategoryAction, error) {
	rows, err := s.db.QueryContext(ctx, queryCategoryActions)
	if err != nil {
		return nil, fmt.Errorf("querying category actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.CategoryAction
	for rows.Next() {
		var a domain.CategoryAction
		if err := rows.Scan(&a.UserID, &a.Category, &a.Type, &a.Count); err != nil {
			return nil, fmt.Errorf("scanning category action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// DataSummary reports training data availability.
func (s *SQLiteStore) DataSummary(ctx context.Context) (*domain.DataSummary, error) {
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
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, queryListingsByStatus)
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

func (s *SQLiteStore) queryCorpus(
	ctx context.Context,
	query string,
	fields func(*domain.CorpusItem) []any,
) ([]domain.CorpusItem, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CorpusItem
	for rows.Next() {
		var it domain.CorpusItem
		if err := rows.Scan(fields(&it)...); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) queryListings(ctx context.Context, query string, args ...any) ([]domain.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := scanSQLiteListing(rows, &l); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// scanSQLiteListing scans a full listing row with unix-second timestamps.
func scanSQLiteListing(row scannable, l *domain.Listing) error {
	var (
		price, originalPrice     sql.NullFloat64
		expiry, completed        sql.NullInt64
		created                  int64
		sellerName, sellerAvatar string
	)
	if err := row.Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Category,
		&l.Quantity, &l.Unit, &price, &originalPrice, &expiry,
		&l.Status, &created, &completed, &sellerName, &sellerAvatar,
	); err != nil {
		return err
	}

	l.Price = nullFloat(price)
	l.OriginalPrice = nullFloat(originalPrice)
	l.ExpiryDate = nullUnix(expiry)
	l.CreatedAt = time.Unix(created, 0).UTC()
	l.CompletedAt = nullUnix(completed)
	attachSeller(l, sellerName, sellerAvatar)
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
