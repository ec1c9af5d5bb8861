package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relovd/search-api/internal/listing"
)

// CountStrategy computes the total number of eligible listings matching a
// filter. Two implementations exist because the ordinary query path cannot
// express everything the ranking source's predicate can (substring search
// inside the tag array), yet the displayed total must agree with what the
// ranking source could have returned.
type CountStrategy interface {
	Count(ctx context.Context, f listing.Filter) (int, error)
}

// ExactPredicateCount counts with the raw predicate mirroring the ranking
// source's filter semantics, tag search included.
type ExactPredicateCount struct {
	Store listing.Store
}

// Count implements CountStrategy.
func (c ExactPredicateCount) Count(ctx context.Context, f listing.Filter) (int, error) {
	return c.Store.CountExact(ctx, f)
}

// ApproximatePredicateCount counts with the narrower predicate only. It
// may undercount relative to the exact predicate (tag-only matches are
// missed), which is an accepted limitation of the degraded path.
type ApproximatePredicateCount struct {
	Store listing.Store
}

// Count implements CountStrategy.
func (c ApproximatePredicateCount) Count(ctx context.Context, f listing.Filter) (int, error) {
	return c.Store.CountApproximate(ctx, f)
}

// CountReconciler applies the try/fallback policy: exact first, and on
// failure the approximate count, so an edge-case input that breaks the raw
// query yields a best-effort total instead of a failed request.
type CountReconciler struct {
	exact       CountStrategy
	approximate CountStrategy
	logger      *slog.Logger
	metrics     *Metrics
}

// NewCountReconciler creates a CountReconciler over the given store.
func NewCountReconciler(store listing.Store, logger *slog.Logger, metrics *Metrics) *CountReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CountReconciler{
		exact:       ExactPredicateCount{Store: store},
		approximate: ApproximatePredicateCount{Store: store},
		logger:      logger,
		metrics:     metrics,
	}
}

// Count returns the total for the filter. An error is returned only when
// both strategies fail, which means the store itself is unhealthy.
func (r *CountReconciler) Count(ctx context.Context, f listing.Filter) (int, error) {
	n, err := r.exact.Count(ctx, f)
	if err == nil {
		return n, nil
	}

	r.logger.WarnContext(ctx, "exact-predicate count failed, falling back to approximate count",
		"error", err, "query", f.SearchText)
	r.metrics.ObserveCountDegraded()

	n, approxErr := r.approximate.Count(ctx, f)
	if approxErr != nil {
		return 0, fmt.Errorf("count failed on both predicates: %w", approxErr)
	}
	return n, nil
}
