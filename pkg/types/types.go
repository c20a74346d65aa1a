// Package domain defines the core business types for the surplus-food
// marketplace pricing and recommendation models.
package domain

import (
	"time"
)

// ListingStatus is the lifecycle state of a marketplace listing.
type ListingStatus string

// Listing status constants.
const (
	StatusActive ListingStatus = "active"
	StatusSold   ListingStatus = "sold"
)

// Terminal reports whether the listing has a realized sale price.
func (s ListingStatus) Terminal() bool {
	return s == StatusSold
}

// InteractionType tags a user action recorded against a product.
type InteractionType string

// Interaction type constants.
const (
	InteractionConsumed InteractionType = "consumed"
	InteractionShared   InteractionType = "shared"
	InteractionSold     InteractionType = "sold"
	InteractionOther    InteractionType = "other"
)

// Seller is the optional public profile attached to a listing.
type Seller struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Listing represents a marketplace item offered by a seller.
type Listing struct {
	ID            int64         `json:"id"                      db:"id"`
	SellerID      int64         `json:"sellerId"                db:"seller_id"`
	Title         string        `json:"title"                   db:"title"`
	Description   string        `json:"description,omitempty"   db:"description"`
	Category      string        `json:"category,omitempty"      db:"category"`
	Quantity      float64       `json:"quantity"                db:"quantity"`
	Unit          string        `json:"unit,omitempty"          db:"unit"`
	Price         *float64      `json:"price,omitempty"         db:"price"`
	OriginalPrice *float64      `json:"originalPrice,omitempty" db:"original_price"`
	ExpiryDate    *time.Time    `json:"expiryDate,omitempty"    db:"expiry_date"`
	Status        ListingStatus `json:"status"                  db:"status"`
	CreatedAt     time.Time     `json:"createdAt"               db:"created_at"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"   db:"completed_at"`
	Seller        *Seller       `json:"seller,omitempty"`
}

// Product is an entry in the standalone product catalog.
type Product struct {
	ID          int64  `json:"id"                    db:"id"`
	UserID      int64  `json:"user_id"               db:"user_id"`
	ProductName string `json:"product_name"          db:"product_name"`
	Category    string `json:"category,omitempty"    db:"category"`
	Description string `json:"description,omitempty" db:"description"`
}

// Interaction is a single user action against a catalog product.
type Interaction struct {
	ID        int64           `json:"id"         db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	UserID    int64           `json:"user_id"    db:"user_id"`
	Type      InteractionType `json:"type"       db:"type"`
	Quantity  float64         `json:"quantity"   db:"quantity"`
	Category  string          `json:"category"   db:"category"`
	Date      time.Time       `json:"date"       db:"today_date"`
}

// CategoryAction is an aggregated count of one user's actions of one type
// in one category.
type CategoryAction struct {
	UserID   int64           `json:"user_id"  db:"user_id"`
	Category string          `json:"category" db:"category"`
	Type     InteractionType `json:"type"     db:"type"`
	Count    int             `json:"count"    db:"action_count"`
}

// PriceTrainingRow is one labelled example for the discount-ratio regressor.
type PriceTrainingRow struct {
	ListingID       int64         `json:"listing_id"`
	OriginalPrice   float64       `json:"original_price"`
	Price           float64       `json:"price"`
	DaysUntilExpiry int           `json:"days_until_expiry"`
	Quantity        float64       `json:"quantity"`
	Category        string        `json:"category"`
	Status          ListingStatus `json:"status"`
	DiscountRatio   float64       `json:"discount_ratio"`
}

// CorpusItem is one document of the recommendation text corpus.
type CorpusItem struct {
	Title       string `json:"title,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Corpus is the recommendation training dataset.
type Corpus struct {
	Listings     []CorpusItem
	Products     []CorpusItem
	Interactions []Interaction
}

// Size returns the combined listing and catalog item count.
func (c *Corpus) Size() int {
	return len(c.Listings) + len(c.Products)
}

// DistinctUsers returns the number of distinct users with interactions.
func (c *Corpus) DistinctUsers() int {
	seen := make(map[int64]struct{}, len(c.Interactions))
	for _, in := range c.Interactions {
		seen[in.UserID] = struct{}{}
	}
	return len(seen)
}

// DataSummary reports training data availability.
type DataSummary struct {
	TotalUsers            int            `json:"total_users"`
	ListingsByStatus      map[string]int `json:"listings_by_status"`
	ListingsWithPrices    int            `json:"listings_with_prices"`
	SoldListings          int            `json:"sold_listings"`
	TotalInteractions     int            `json:"total_interactions"`
	UsersWithInteractions int            `json:"users_with_interactions"`
	TotalProducts         int            `json:"total_products"`
}

// Source tags an inference result so callers can decide whether to fall
// back to rule-based logic.
type Source string

// Source constants.
const (
	SourceModel       Source = "ml_model"
	SourceError       Source = "error"
	SourceUnavailable Source = "unavailable"
)
