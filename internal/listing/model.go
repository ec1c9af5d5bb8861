// Package listing defines the marketplace listing domain model and the
// relational store the search service reads from.
package listing

import (
	"strings"
	"time"
)

// Gender is the normalized gender tag on a listing.
type Gender string

// Recognized gender tags. Anything else is treated as "no gender filter"
// rather than rejected.
const (
	GenderMen    Gender = "men"
	GenderWomen  Gender = "women"
	GenderUnisex Gender = "unisex"
)

// ParseGender normalizes a raw gender string case-insensitively.
// Unrecognized or empty values return ok=false; callers drop the gender
// filter instead of failing the request.
func ParseGender(raw string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "men", "man", "male":
		return GenderMen, true
	case "women", "woman", "female":
		return GenderWomen, true
	case "unisex":
		return GenderUnisex, true
	default:
		return "", false
	}
}

// Listing statuses. Only listed items are eligible for search.
const (
	StatusListed  = "listed"
	StatusSold    = "sold"
	StatusRemoved = "removed"
)

// Seller is the joined seller sub-record on a listing.
type Seller struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	AvatarURL  string  `json:"avatar_url,omitempty"`
	Rating     float64 `json:"rating"`
	SalesCount int     `json:"sales_count"`
}

// Listing is the full relational record for a marketplace item, including
// the joined seller and category sub-records.
type Listing struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Brand              string    `json:"brand"`
	Size               string    `json:"size"`
	Condition          string    `json:"condition"`
	Material           string    `json:"material"`
	Gender             Gender    `json:"gender"`
	CategoryID         *int64    `json:"category_id,omitempty"`
	CategoryName       string    `json:"category_name,omitempty"`
	PriceMinor         int64     `json:"price_minor"`
	Currency           string    `json:"currency"`
	ImageURLs          []string  `json:"image_urls"`
	Tags               []string  `json:"tags"`
	ShippingPriceMinor int64     `json:"shipping_price_minor"`
	ShipsFrom          string    `json:"ships_from"`
	Status             string    `json:"status"`
	Seller             Seller    `json:"seller"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Filter is the canonical descriptor of the active search filters.
// The same values parameterize the ranking source, both count queries and
// the fallback query, so that "total" and "has more" stay consistent with
// whatever path produced the items.
type Filter struct {
	// SearchText is the trimmed free-text query. Empty is valid on the
	// ranking path and means "no text filter, personalize over all
	// eligible items".
	SearchText string

	// CategoryID filters by category when set.
	CategoryID *int64

	// Gender filters by normalized gender tag when set.
	Gender *Gender

	// Limit is the page size, always positive.
	Limit int

	// Offset is the number of items to skip, never negative.
	Offset int

	// PersonalizationKey identifies the requesting user to the ranking
	// source. Nil for anonymous callers.
	PersonalizationKey *string

	// RankSeed is the reproducibility seed for the ranking source,
	// already reduced into its accepted numeric range.
	RankSeed int
}

// Page returns the 1-based page number implied by Limit and Offset.
func (f Filter) Page() int {
	if f.Limit <= 0 {
		return 1
	}
	return f.Offset/f.Limit + 1
}

// Canonical condition labels used across the catalog.
const (
	ConditionNewWithTags = "new_with_tags"
	ConditionNew         = "new"
	ConditionVeryGood    = "very_good"
	ConditionGood        = "good"
	ConditionWorn        = "worn"
)

// NormalizeCondition maps free-form condition strings from older records to
// the canonical labels. Unknown values pass through unchanged.
func NormalizeCondition(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new with tags", "nwt", "new_with_tags":
		return ConditionNewWithTags
	case "new", "like new", "as new":
		return ConditionNew
	case "very good", "very_good", "excellent":
		return ConditionVeryGood
	case "good":
		return ConditionGood
	case "worn", "used", "fair", "satisfactory":
		return ConditionWorn
	default:
		return strings.TrimSpace(raw)
	}
}

// NormalizeSize uppercases letter sizes (s, m, xl) while leaving numeric
// sizes (38, 10.5) untouched.
func NormalizeSize(raw string) string {
	s := strings.TrimSpace(raw)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return s
		}
	}
	return strings.ToUpper(s)
}
