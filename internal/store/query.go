package store

import (
	"fmt"
	"strings"
)

// MaxListingLimit caps the number of rows a ListingQuery returns.
const MaxListingLimit = 1000

const (
	defaultLimit = 200

	orderByCreated = "created_at"
	orderByExpiry  = "expiry_date"
	orderByPrice   = "price"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByCreated: "l.created_at DESC, l.id",
	orderByExpiry:  "l.expiry_date IS NULL, l.expiry_date ASC, l.id",
	orderByPrice:   "l.price IS NULL, l.price ASC, l.id",
}

const defaultOrderBy = "l.id"

// ListingQuery defines optional filters for listing queries.
type ListingQuery struct {
	Status          *string
	Category        *string
	ExcludeSellerID *int64
	ExcludeID       *int64
	Limit           int // default 200
	Offset          int
	OrderBy         string // "created_at", "expiry_date", "price"
}

// Placeholder renders the bind marker for the n-th (1-based) argument.
type Placeholder func(n int) string

// DollarPlaceholder renders PostgreSQL-style $n markers.
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// QuestionPlaceholder renders SQLite-style ? markers.
func QuestionPlaceholder(int) string { return "?" }

// ToSQL builds the listing SELECT with WHERE, ORDER BY, LIMIT and OFFSET
// and returns it with its positional parameters.
func (q *ListingQuery) ToSQL(ph Placeholder) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(expr, ph(len(args))))
	}

	if q.Status != nil {
		add("l.status = %s", *q.Status)
	}
	if q.Category != nil {
		add("LOWER(l.category) = %s", strings.ToLower(strings.TrimSpace(*q.Category)))
	}
	if q.ExcludeSellerID != nil {
		add("l.seller_id <> %s", *q.ExcludeSellerID)
	}
	if q.ExcludeID != nil {
		add("l.id <> %s", *q.ExcludeID)
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = "\nWHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := defaultOrderBy
	if col, ok := validOrderBy[q.OrderBy]; ok {
		orderClause = col
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, MaxListingLimit)
	offset := max(q.Offset, 0)

	return fmt.Sprintf(
		"%s%s\nORDER BY %s LIMIT %d OFFSET %d",
		baseListingsSelect, whereClause, orderClause, limit, offset,
	), args
}
