package search

import (
	"time"

	"github.com/relovd/search-api/internal/listing"
	"github.com/relovd/search-api/internal/rank"
)

// Item is one assembled search result: the ranking source's score metadata
// merged with either the full relational record or, when that record is
// missing, the candidate's denormalized snapshot. The shape is uniform
// regardless of which source filled it.
type Item struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Size        string   `json:"size,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Material    string   `json:"material,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Category    string   `json:"category,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	ImageURLs   []string `json:"image_urls"`
	Tags        []string `json:"tags,omitempty"`
	SourceLabel string   `json:"source_label,omitempty"`

	Seller        listing.Seller `json:"seller"`
	ShippingPrice float64        `json:"shipping_price,omitempty"`
	ShipsFrom     string         `json:"ships_from,omitempty"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`

	// Score fields are null on the fallback path.
	Relevance     *float64 `json:"relevance"`
	FairnessScore *float64 `json:"fairness_score"`
	FinalScore    *float64 `json:"final_score"`
	BoostWeight   *float64 `json:"boost_weight"`
	IsBoosted     *bool    `json:"is_boosted"`
}

// Page is the final paginated search response.
type Page struct {
	Items           []Item `json:"items"`
	Total           int    `json:"total"`
	HasMore         bool   `json:"has_more"`
	Page            int    `json:"page"`
	Limit           int    `json:"limit"`
	UsedRankingPath bool   `json:"used_ranking_path"`
}

// DefaultCurrency is assumed for snapshot-only items; the ranking index
// does not carry a currency column.
const DefaultCurrency = "EUR"

// assembleRanked joins the ordered candidate list with the enrichment
// lookup. Candidate order is the entire reason this subsystem exists: the
// output holds exactly one item per candidate, in candidate order, with
// enrichment gaps filled from snapshots rather than dropped.
func assembleRanked(candidates []rank.Candidate, enriched map[int64]*listing.Listing, f listing.Filter, total int) Page {
	items := make([]Item, 0, len(candidates))
	for _, c := range candidates {
		if l, ok := enriched[c.ID]; ok {
			items = append(items, mergeEnriched(c, l))
		} else {
			items = append(items, fromSnapshot(c))
		}
	}
	return newPage(items, f, total, true)
}

// assembleFallback builds the same response shape from the deterministic
// query path. Score fields stay null.
func assembleFallback(listings []*listing.Listing, f listing.Filter, total int) Page {
	items := make([]Item, 0, len(listings))
	for _, l := range listings {
		items = append(items, fromListing(l))
	}
	return newPage(items, f, total, false)
}

func newPage(items []Item, f listing.Filter, total int, ranked bool) Page {
	return Page{
		Items:           items,
		Total:           total,
		HasMore:         f.Offset+len(items) < total,
		Page:            f.Page(),
		Limit:           f.Limit,
		UsedRankingPath: ranked,
	}
}

// mergeEnriched builds an item from the full relational record plus the
// candidate's score fields. Price deliberately comes from the ranking
// snapshot, not the relational row: at merge time the snapshot price is
// the one the score was computed against.
func mergeEnriched(c rank.Candidate, l *listing.Listing) Item {
	created := l.CreatedAt
	item := Item{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Brand:         l.Brand,
		Size:          listing.NormalizeSize(l.Size),
		Condition:     listing.NormalizeCondition(l.Condition),
		Material:      l.Material,
		Gender:        string(l.Gender),
		Category:      l.CategoryName,
		Price:         priceFromMinor(c.Snapshot.PriceMinor),
		Currency:      l.Currency,
		ImageURLs:     append([]string(nil), l.ImageURLs...),
		Tags:          append([]string(nil), l.Tags...),
		SourceLabel:   c.Snapshot.SourceLabel,
		Seller:        l.Seller,
		ShippingPrice: priceFromMinor(l.ShippingPriceMinor),
		ShipsFrom:     l.ShipsFrom,
		CreatedAt:     &created,
	}
	applyScores(&item, c)
	return item
}

// fromSnapshot builds a minimal item for a candidate whose relational
// record is gone (for example, deleted between ranking and enrichment).
// Safe defaults keep the response shape uniform: empty seller, and a
// single-element image list when the snapshot carries an image.
func fromSnapshot(c rank.Candidate) Item {
	item := Item{
		ID:          c.ID,
		Title:       c.Snapshot.Title,
		Brand:       c.Snapshot.Brand,
		Price:       priceFromMinor(c.Snapshot.PriceMinor),
		Currency:    DefaultCurrency,
		ImageURLs:   []string{},
		Tags:        append([]string(nil), c.Snapshot.Tags...),
		SourceLabel: c.Snapshot.SourceLabel,
	}
	if c.Snapshot.ImageURL != "" {
		item.ImageURLs = []string{c.Snapshot.ImageURL}
	}
	applyScores(&item, c)
	return item
}

// fromListing builds a fallback-path item entirely from the relational
// record.
func fromListing(l *listing.Listing) Item {
	created := l.CreatedAt
	return Item{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Brand:         l.Brand,
		Size:          listing.NormalizeSize(l.Size),
		Condition:     listing.NormalizeCondition(l.Condition),
		Material:      l.Material,
		Gender:        string(l.Gender),
		Category:      l.CategoryName,
		Price:         priceFromMinor(l.PriceMinor),
		Currency:      l.Currency,
		ImageURLs:     append([]string(nil), l.ImageURLs...),
		Tags:          append([]string(nil), l.Tags...),
		Seller:        l.Seller,
		ShippingPrice: priceFromMinor(l.ShippingPriceMinor),
		ShipsFrom:     l.ShipsFrom,
		CreatedAt:     &created,
	}
}

func applyScores(item *Item, c rank.Candidate) {
	item.Relevance = c.Relevance
	item.FairnessScore = c.FairnessScore
	item.FinalScore = c.FinalScore
	item.BoostWeight = c.BoostWeight
	item.IsBoosted = c.IsBoosted
}

// priceFromMinor converts minor units (cents) to display units.
func priceFromMinor(minor int64) float64 {
	return float64(minor) / 100
}
