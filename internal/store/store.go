// Package store defines the training data provider for surplus-ml. All
// training and serving code depends on the Store interface, never on a
// concrete database, which keeps the engine and handlers testable with
// mocks.
package store

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store defines all data access used by training and serving.
type Store interface {
	// Training data

	// PriceListings returns listings that carry both an original price
	// above zero and a sale price.
	PriceListings(ctx context.Context) ([]domain.Listing, error)
	// RecommendationCorpus returns every listing and catalog product as
	// text documents plus all typed interaction events.
	RecommendationCorpus(ctx context.Context) (*domain.Corpus, error)
	// CategoryActions returns per-user, per-category counts of consumed,
	// shared and sold actions.
	CategoryActions(ctx context.Context) ([]domain.CategoryAction, error)
	// DataSummary reports data availability.
	DataSummary(ctx context.Context) (*domain.DataSummary, error)

	// Listings
	GetListing(ctx context.Context, id int64) (*domain.Listing, error)
	ListListings(ctx context.Context, q *ListingQuery) ([]domain.Listing, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store for driver. For postgres dsn is a connection
// string; for sqlite it is a file path.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		s, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLiteStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
