// Package features holds the feature encoding rules shared by model training
// and inference. Both sides must build vectors through this package so the
// encodings stay identical.
package features

import (
	"math"
	"sort"
	"strings"
	"time"

	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// DefaultDaysUntilExpiry is used when an expiry date is absent or unparseable.
const DefaultDaysUntilExpiry = 30

// OtherCategory is the catch-all for categories outside the known set.
const OtherCategory = "other"

// UnknownText is the placeholder document for items with no text fields.
const UnknownText = "unknown"

// Names lists the encoded feature columns in vector order.
var Names = []string{"original_price", "days_until_expiry", "quantity", "category_encoded"}

var categories = []string{
	"bakery",
	"beverages",
	"dairy",
	"frozen",
	"meat",
	OtherCategory,
	"pantry",
	"prepared",
	"produce",
	"seafood",
	"snacks",
}

// Categories returns the fixed, sorted category vocabulary.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// KnownCategory reports whether c is in the fixed vocabulary.
func KnownCategory(c string) bool {
	i := sort.SearchStrings(categories, c)
	return i < len(categories) && categories[i] == c
}

// NormalizeCategory lower-cases and trims c, mapping anything outside the
// known vocabulary (including the empty string) to "other".
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if !KnownCategory(c) {
		return OtherCategory
	}
	return c
}

// CategoryEncoder maps category strings to stable integer codes.
type CategoryEncoder struct {
	Classes []string `json:"classes"`
}

// NewCategoryEncoder returns an encoder fit over the full category vocabulary,
// not only the categories observed in training data.
func NewCategoryEncoder() *CategoryEncoder {
	return &CategoryEncoder{Classes: Categories()}
}

// Encode returns the code for c after normalization. Values the encoder has
// never seen fall back to the "other" code.
func (e *CategoryEncoder) Encode(c string) int {
	c = NormalizeCategory(c)
	if i, ok := e.index(c); ok {
		return i
	}
	i, _ := e.index(OtherCategory)
	return i
}

// Decode returns the category for code, or "other" when out of range.
func (e *CategoryEncoder) Decode(code int) string {
	if code < 0 || code >= len(e.Classes) {
		return OtherCategory
	}
	return e.Classes[code]
}

// Valid reports whether the encoder contains the "other" fallback class.
func (e *CategoryEncoder) Valid() bool {
	_, ok := e.index(OtherCategory)
	return ok
}

func (e *CategoryEncoder) index(c string) (int, bool) {
	i := sort.SearchStrings(e.Classes, c)
	if i < len(e.Classes) && e.Classes[i] == c {
		return i, true
	}
	return 0, false
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseExpiry parses either a date-only ("2006-01-02") value or a full
// timestamp. Timestamps without a zone and date-only values are read in loc.
func ParseExpiry(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if !strings.ContainsAny(s, "T ") {
		t, err := time.ParseInLocation(time.DateOnly, s, loc)
		return t, err == nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntil returns the whole days from now until expiry, floored at 0.
func DaysUntil(expiry, now time.Time) int {
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// DaysUntilExpiry parses s and returns the days remaining relative to now,
// or DefaultDaysUntilExpiry when s is empty or cannot be parsed.
func DaysUntilExpiry(s string, now time.Time) int {
	t, ok := ParseExpiry(s, now.Location())
	if !ok {
		return DefaultDaysUntilExpiry
	}
	return DaysUntil(t, now)
}

// Vector builds [original_price, days_until_expiry, quantity, category_code].
func (e *CategoryEncoder) Vector(originalPrice float64, days int, quantity float64, category string) []float64 {
	return []float64{originalPrice, float64(days), quantity, float64(e.Encode(category))}
}

// PriceRow derives a labelled training row from l. It returns false when
// the listing has no usable original price or sale price.
func PriceRow(l *domain.Listing, now time.Time) (domain.PriceTrainingRow, bool) {
	if l.OriginalPrice == nil || l.Price == nil || *l.OriginalPrice <= 0 {
		return domain.PriceTrainingRow{}, false
	}
	days := DefaultDaysUntilExpiry
	if l.ExpiryDate != nil {
		days = DaysUntil(*l.ExpiryDate, now)
	}
	ratio := 1 - *l.Price / *l.OriginalPrice
	ratio = math.Min(math.Max(ratio, 0), 1)

	return domain.PriceTrainingRow{
		ListingID:       l.ID,
		OriginalPrice:   *l.OriginalPrice,
		Price:           *l.Price,
		DaysUntilExpiry: days,
		Quantity:        l.Quantity,
		Category:        NormalizeCategory(l.Category),
		Status:          l.Status,
		DiscountRatio:   ratio,
	}, true
}

// PriceRows derives training rows for every usable listing.
func PriceRows(listings []domain.Listing, now time.Time) []domain.PriceTrainingRow {
	rows := make([]domain.PriceTrainingRow, 0, len(listings))
	for i := range listings {
		if row, ok := PriceRow(&listings[i], now); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// Text joins the non-empty parts into one document, or returns UnknownText.
func Text(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return UnknownText
	}
	return strings.Join(kept, " ")
}

// ListingText is the document representation of a listing.
func ListingText(l *domain.Listing) string {
	return Text(l.Title, l.Description, l.Category)
}

// CorpusText is the document representation of a corpus item.
func CorpusText(c *domain.CorpusItem) string {
	return Text(c.Title, c.ProductName, c.Description, c.Category)
}
