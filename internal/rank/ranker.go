// Package rank abstracts the external ranking source that produces scored,
// ordered candidate listings for a search request. The concrete ranking
// algorithm is a black box; this package only defines its contract and the
// adapters that call it.
package rank

import (
	"context"
	"errors"

	"github.com/relovd/search-api/internal/listing"
)

// ErrRankingUnavailable wraps any failure of the ranking source. Callers
// recover by switching to the deterministic fallback path.
var ErrRankingUnavailable = errors.New("ranking source unavailable")

// Snapshot is the denormalized listing data the ranking source carries
// alongside each candidate. It is used only when the relational record for
// the candidate cannot be fetched (for example after a concurrent delete).
type Snapshot struct {
	Title       string
	ImageURL    string
	PriceMinor  int64
	Brand       string
	Tags        []string
	SourceLabel string
}

// Candidate is one entry of the ranking source's ordered result. Position
// in the returned slice is the authoritative order; no consumer may resort
// it. All score fields are optional.
type Candidate struct {
	ID            int64
	Relevance     *float64
	FairnessScore *float64
	FinalScore    *float64
	BoostWeight   *float64
	IsBoosted     *bool
	Snapshot      Snapshot
}

// Ranker is the single-operation interface over the ranking source. The
// filter carries the query, pagination window, personalization key and
// seed; the returned slice is already offset/limited to the current page.
type Ranker interface {
	Rank(ctx context.Context, f listing.Filter) ([]Candidate, error)
}
