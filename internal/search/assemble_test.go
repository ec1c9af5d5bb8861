package search

import (
	"testing"
	"time"

	"github.com/relovd/search-api/internal/listing"
	"github.com/relovd/search-api/internal/rank"
)

func candidate(id int64, final float64) rank.Candidate {
	rel := 0.8
	fair := 0.4
	return rank.Candidate{
		ID:            id,
		Relevance:     &rel,
		FairnessScore: &fair,
		FinalScore:    &final,
		Snapshot: rank.Snapshot{
			Title:       "Snapshot title",
			ImageURL:    "https://img.example/snap.jpg",
			PriceMinor:  2500,
			Brand:       "Arket",
			Tags:        []string{"wool"},
			SourceLabel: "ranker",
		},
	}
}

func enrichedListing(id int64) *listing.Listing {
	return &listing.Listing{
		ID:          id,
		Title:       "Enriched title",
		Description: "Full record",
		Brand:       "Arket",
		Size:        "m",
		Condition:   "very good",
		Gender:      listing.GenderWomen,
		PriceMinor:  2600,
		Currency:    "EUR",
		ImageURLs:   []string{"https://img.example/a.jpg", "https://img.example/b.jpg"},
		Seller:      listing.Seller{ID: 9, Username: "resale.fi", Rating: 4.8},
		Status:      listing.StatusListed,
		CreatedAt:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAssembleRanked_PreservesCandidateOrder(t *testing.T) {
	candidates := []rank.Candidate{candidate(3, 0.9), candidate(1, 0.7), candidate(2, 0.5)}
	enriched := map[int64]*listing.Listing{
		1: enrichedListing(1),
		2: enrichedListing(2),
		3: enrichedListing(3),
	}

	page := assembleRanked(candidates, enriched, listing.Filter{Limit: 20}, 3)

	wantOrder := []int64{3, 1, 2}
	if len(page.Items) != len(wantOrder) {
		t.Fatalf("expected %d items, got %d", len(wantOrder), len(page.Items))
	}
	for i, want := range wantOrder {
		if page.Items[i].ID != want {
			t.Errorf("position %d: got id %d, want %d", i, page.Items[i].ID, want)
		}
	}
	if !page.UsedRankingPath {
		t.Error("expected used_ranking_path true")
	}
}

func TestAssembleRanked_SnapshotFillsGap(t *testing.T) {
	candidates := []rank.Candidate{candidate(1, 0.9), candidate(2, 0.7)}
	enriched := map[int64]*listing.Listing{1: enrichedListing(1)}

	page := assembleRanked(candidates, enriched, listing.Filter{Limit: 20}, 2)

	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items (gap filled, not dropped), got %d", len(page.Items))
	}

	gap := page.Items[1]
	if gap.ID != 2 {
		t.Fatalf("expected snapshot item at position 1, got id %d", gap.ID)
	}
	if gap.Title != "Snapshot title" {
		t.Errorf("title = %q, want snapshot title", gap.Title)
	}
	if gap.Currency != DefaultCurrency {
		t.Errorf("currency = %q, want %q", gap.Currency, DefaultCurrency)
	}
	if len(gap.ImageURLs) != 1 || gap.ImageURLs[0] != "https://img.example/snap.jpg" {
		t.Errorf("image urls = %v, want single snapshot image", gap.ImageURLs)
	}
	if gap.Seller.ID != 0 || gap.Seller.Username != "" {
		t.Error("expected empty seller sub-record for snapshot item")
	}
	if gap.FinalScore == nil {
		t.Error("expected score fields preserved on snapshot item")
	}
}

func TestMergeEnriched_SnapshotPriceWins(t *testing.T) {
	c := candidate(1, 0.9)
	l := enrichedListing(1)
	// Snapshot says 25.00, relational row says 26.00.
	item := mergeEnriched(c, l)

	if item.Price != 25.00 {
		t.Errorf("price = %v, want snapshot price 25.00", item.Price)
	}
	if item.Title != "Enriched title" {
		t.Errorf("title = %q, want enriched title", item.Title)
	}
	if item.Size != "M" {
		t.Errorf("size = %q, want normalized M", item.Size)
	}
	if item.Condition != listing.ConditionVeryGood {
		t.Errorf("condition = %q, want normalized %q", item.Condition, listing.ConditionVeryGood)
	}
}

func TestNewPage_HasMore(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		items  int
		total  int
		want   bool
	}{
		{"first page of five", 0, 2, 5, true},
		{"last page of five", 4, 1, 5, false},
		{"exactly consumed", 3, 2, 5, false},
		{"empty result", 0, 0, 0, false},
		{"offset past total", 10, 0, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]Item, tt.items)
			page := newPage(items, listing.Filter{Limit: 2, Offset: tt.offset}, tt.total, true)
			if page.HasMore != tt.want {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.want)
			}
		})
	}
}

func TestAssembleFallback_NullScores(t *testing.T) {
	page := assembleFallback([]*listing.Listing{enrichedListing(1)}, listing.Filter{Limit: 20}, 1)

	if page.UsedRankingPath {
		t.Error("expected used_ranking_path false")
	}
	item := page.Items[0]
	if item.Relevance != nil || item.FairnessScore != nil || item.FinalScore != nil ||
		item.BoostWeight != nil || item.IsBoosted != nil {
		t.Error("expected all score fields nil on the fallback path")
	}
	if item.Price != 26.00 {
		t.Errorf("price = %v, want relational price 26.00", item.Price)
	}
}
