// Package search implements listing-search orchestration: it reconciles
// the ranking source's ordered candidates with the relational listing
// store, keeps totals and pagination consistent across both, and degrades
// to a deterministic query path when the ranking source fails.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/relovd/search-api/internal/catalog"
	"github.com/relovd/search-api/internal/listing"
)

// Pagination bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// RankSeedRange bounds rank seeds to the numeric domain the ranking source
// accepts. Seeds are reduced by absolute-value modulo, so seeds that
// differ by exactly RankSeedRange collide; this is a documented property
// of the reduction, not a defect.
const RankSeedRange = 1_000_000

// ErrQueryRequired is returned when a non-ranking request carries an empty
// search query. Full-catalog browsing is only permitted through the
// ranking path.
var ErrQueryRequired = errors.New("search query is required")

// Params are the raw, untrusted request parameters a filter is built from.
type Params struct {
	// Query is the free-text query, possibly empty or padded.
	Query string

	// Category is either a numeric category id or a category name.
	Category string

	// Gender is the raw gender string.
	Gender string

	// Limit and Page are clamped to positive values with defaults.
	Limit int
	Page  int

	// Seed is the caller-supplied rank seed, any integer.
	Seed int

	// PersonalizationKey identifies the caller to the ranking source,
	// nil for anonymous requests.
	PersonalizationKey *string

	// UseRanking selects the ranking path. Only the non-ranking path
	// requires a non-empty query.
	UseRanking bool
}

// BuildFilter turns raw parameters into a canonical listing.Filter.
//
// The builder is deliberately permissive: unrecognized genders and
// unresolvable category names drop the respective filter instead of
// failing the request. The only validation failure is an empty query on
// the non-ranking path.
func BuildFilter(ctx context.Context, p Params, categories catalog.Resolver) (listing.Filter, error) {
	f := listing.Filter{
		SearchText:         strings.TrimSpace(p.Query),
		PersonalizationKey: p.PersonalizationKey,
		RankSeed:           BoundSeed(p.Seed),
	}

	if !p.UseRanking && f.SearchText == "" {
		return listing.Filter{}, ErrQueryRequired
	}

	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	f.Limit = limit
	f.Offset = (page - 1) * limit

	if g, ok := listing.ParseGender(p.Gender); ok {
		f.Gender = &g
	}

	f.CategoryID = resolveCategory(ctx, p.Category, categories)

	return f, nil
}

// resolveCategory turns the raw category parameter into a category id.
// A numeric value is used directly. A name gets exactly one resolution
// attempt; a miss or resolver failure silently drops the category filter,
// favoring availability over strictness.
func resolveCategory(ctx context.Context, raw string, categories catalog.Resolver) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &id
	}

	if categories == nil {
		return nil
	}
	c, err := categories.ResolveName(ctx, raw)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			slog.WarnContext(ctx, "category resolution failed, dropping category filter",
				"category", raw, "error", err)
		}
		return nil
	}
	return &c.ID
}

// BoundSeed reduces an arbitrary seed into [0, RankSeedRange) via
// absolute-value modulo.
func BoundSeed(seed int) int {
	s := seed % RankSeedRange
	if s < 0 {
		s += RankSeedRange
	}
	return s
}
