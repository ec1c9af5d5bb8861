package rank

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/relovd/search-api/internal/listing"
)

// StaticRanker is an in-process Ranker over a fixed listing set. It is
// deterministic under a fixed seed, which makes it usable both as a test
// double and as a local stand-in when no database-resident ranker exists.
type StaticRanker struct {
	mu       sync.RWMutex
	listings []*listing.Listing
	boosts   map[int64]float64
	weights  Weights

	// Err, when set, is returned from every Rank call. Tests use it to
	// drive the fallback path.
	Err error
}

// NewStaticRanker creates a StaticRanker with no listings and default
// scoring weights.
func NewStaticRanker() *StaticRanker {
	return &StaticRanker{
		boosts:  make(map[int64]float64),
		weights: *DefaultWeights(),
	}
}

// SetWeights replaces the scoring weights, typically with calibrated
// values from LoadCalibration.
func (r *StaticRanker) SetWeights(w Weights) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights = w
}

// Add registers a listing as rankable.
func (r *StaticRanker) Add(l *listing.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.listings = append(r.listings, &cp)
}

// Boost assigns a boost weight to a listing id.
func (r *StaticRanker) Boost(id int64, weight float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boosts[id] = weight
}

// Rank scores the eligible listings against the filter and returns the
// current page of candidates, ordered by final score descending with id
// ascending as tie-break. An empty search text matches every eligible
// listing so that personalization can work over the full catalog.
func (r *StaticRanker) Rank(ctx context.Context, f listing.Filter) ([]Candidate, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		l         *listing.Listing
		relevance *float64
		fairness  float64
		final     float64
		boost     float64
	}

	query := strings.ToLower(f.SearchText)
	var candidates []scored
	for _, l := range r.listings {
		if !eligible(l, f) {
			continue
		}

		var relevance *float64
		if query != "" {
			rel := textRelevance(l, query)
			if rel == 0 {
				continue
			}
			relevance = &rel
		}

		fairness := seededScore(f.RankSeed, l.ID)
		final := fairness
		if relevance != nil {
			final = r.weights.TextMatch*(*relevance) + r.weights.Fairness*fairness
		}
		boost := r.boosts[l.ID]
		final += boost

		candidates = append(candidates, scored{
			l:         l,
			relevance: relevance,
			fairness:  fairness,
			final:     final,
			boost:     boost,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].final != candidates[j].final {
			return candidates[i].final > candidates[j].final
		}
		return candidates[i].l.ID < candidates[j].l.ID
	})

	// Page window; the returned slice is already offset/limited.
	if f.Offset >= len(candidates) {
		return []Candidate{}, nil
	}
	candidates = candidates[f.Offset:]
	if len(candidates) > f.Limit {
		candidates = candidates[:f.Limit]
	}

	out := make([]Candidate, 0, len(candidates))
	for _, sc := range candidates {
		fairness := sc.fairness
		final := sc.final
		boosted := sc.boost > 0
		c := Candidate{
			ID:            sc.l.ID,
			Relevance:     sc.relevance,
			FairnessScore: &fairness,
			FinalScore:    &final,
			IsBoosted:     &boosted,
			Snapshot: Snapshot{
				Title:       sc.l.Title,
				PriceMinor:  sc.l.PriceMinor,
				Brand:       sc.l.Brand,
				Tags:        append([]string(nil), sc.l.Tags...),
				SourceLabel: "catalog",
			},
		}
		if len(sc.l.ImageURLs) > 0 {
			c.Snapshot.ImageURL = sc.l.ImageURLs[0]
		}
		if sc.boost > 0 {
			b := sc.boost
			c.BoostWeight = &b
		}
		out = append(out, c)
	}
	return out, nil
}

func eligible(l *listing.Listing, f listing.Filter) bool {
	if l.Status != "" && l.Status != listing.StatusListed {
		return false
	}
	if f.CategoryID != nil {
		if l.CategoryID == nil || *l.CategoryID != *f.CategoryID {
			return false
		}
	}
	if f.Gender != nil && l.Gender != *f.Gender {
		return false
	}
	return true
}

// textRelevance is a coarse relevance signal: title matches rank above
// brand/description matches, which rank above tag-only matches.
func textRelevance(l *listing.Listing, query string) float64 {
	if strings.Contains(strings.ToLower(l.Title), query) {
		return 1.0
	}
	if strings.Contains(strings.ToLower(l.Brand), query) ||
		strings.Contains(strings.ToLower(l.Description), query) {
		return 0.6
	}
	for _, tag := range l.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return 0.3
		}
	}
	return 0
}

// seededScore produces a stable pseudo-score in [0, 1) from the seed and
// listing id. Identical seeds always yield identical orderings.
func seededScore(seed int, id int64) float64 {
	h := fnv.New64a()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(seed >> (8 * i))
		buf[8+i] = byte(id >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return float64(h.Sum64()%1_000_000) / 1_000_000
}
