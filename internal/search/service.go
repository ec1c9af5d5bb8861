package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relovd/search-api/internal/listing"
	"github.com/relovd/search-api/internal/rank"
	"github.com/relovd/search-api/internal/tracing"
)

// DefaultRankTimeout bounds the ranking source call. A timeout is treated
// like any other ranking failure: the request switches to the fallback
// path instead of blocking.
const DefaultRankTimeout = 2 * time.Second

// Service orchestrates one search request: predicate building happens
// upstream (BuildFilter); the service runs the ranking call and count
// concurrently, enriches the ranked ids in one batch, assembles the page,
// and degrades to the deterministic fallback query when ranking fails.
//
// The service is stateless; every method is safe for concurrent use.
type Service struct {
	ranker      rank.Ranker
	store       listing.Store
	counts      *CountReconciler
	rankTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

// NewService creates a search Service. A non-positive rankTimeout selects
// DefaultRankTimeout. metrics may be nil.
func NewService(ranker rank.Ranker, store listing.Store, rankTimeout time.Duration, logger *slog.Logger, metrics *Metrics) *Service {
	if rankTimeout <= 0 {
		rankTimeout = DefaultRankTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ranker:      ranker,
		store:       store,
		counts:      NewCountReconciler(store, logger, metrics),
		rankTimeout: rankTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Search runs one request against the selected path and returns the
// assembled page. Errors are returned only for genuine infrastructure
// failure; every other degradation is recovered internally.
func (s *Service) Search(ctx context.Context, f listing.Filter, useRanking bool) (*Page, error) {
	if !useRanking {
		s.metrics.ObserveFallback(FallbackReasonRequested)
		return s.fallback(ctx, f)
	}
	return s.ranked(ctx, f)
}

type rankResult struct {
	candidates []rank.Candidate
	err        error
}

type countResult struct {
	total int
	err   error
}

// ranked runs the ranking path. The ranking call and the count query are
// independent reads and run concurrently; the enrichment fetch needs the
// candidate id set and runs after the ranking call returns.
func (s *Service) ranked(ctx context.Context, f listing.Filter) (*Page, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search.ranked")
	var retErr error
	defer func() { endSpan(retErr) }()

	rankCh := make(chan rankResult, 1)
	countCh := make(chan countResult, 1)

	go func() {
		rctx, cancel := context.WithTimeout(ctx, s.rankTimeout)
		defer cancel()
		start := time.Now()
		candidates, err := s.ranker.Rank(rctx, f)
		s.metrics.ObserveRankDuration(time.Since(start).Seconds())
		rankCh <- rankResult{candidates: candidates, err: err}
	}()
	go func() {
		total, err := s.counts.Count(ctx, f)
		countCh <- countResult{total: total, err: err}
	}()

	rr := <-rankCh
	cr := <-countCh

	if rr.err != nil {
		s.logger.WarnContext(ctx, "ranking source failed, switching to fallback path",
			"error", rr.err, "query", f.SearchText, "seed", f.RankSeed)
		s.metrics.ObserveFallback(FallbackReasonRankError)
		return s.fallback(ctx, f)
	}
	if cr.err != nil {
		retErr = fmt.Errorf("failed to count search results: %w", cr.err)
		return nil, retErr
	}

	enriched := s.enrich(ctx, rr.candidates)

	gaps := 0
	for _, c := range rr.candidates {
		if _, ok := enriched[c.ID]; !ok {
			gaps++
		}
	}
	s.metrics.ObserveEnrichmentGaps(gaps)

	// Fewer items than the limit before the last page is an upstream
	// paging anomaly. Only the total governs has_more, so log and move
	// on rather than ending pagination early.
	if len(rr.candidates) < f.Limit && f.Offset+len(rr.candidates) < cr.total {
		s.logger.WarnContext(ctx, "ranking source under-returned for a non-final page",
			"returned", len(rr.candidates), "limit", f.Limit,
			"offset", f.Offset, "total", cr.total)
		s.metrics.ObserveUnderReturn()
	}

	page := assembleRanked(rr.candidates, enriched, f, cr.total)
	return &page, nil
}

// enrich batch-fetches the candidates' relational records. A failed batch
// degrades to snapshot-only assembly for the whole page: losing seller
// detail for one response beats failing a request the ranking source
// already answered.
func (s *Service) enrich(ctx context.Context, candidates []rank.Candidate) map[int64]*listing.Listing {
	if len(candidates) == 0 {
		return map[int64]*listing.Listing{}
	}

	seen := make(map[int64]struct{}, len(candidates))
	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}

	enriched, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "enrichment fetch failed, serving snapshot fields",
			"error", err, "ids", len(ids))
		return map[int64]*listing.Listing{}
	}
	return enriched
}

// fallback runs the deterministic query path: approximate predicate,
// newest first. A failure here has nowhere left to degrade to and
// surfaces as an error.
func (s *Service) fallback(ctx context.Context, f listing.Filter) (*Page, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search.fallback")
	var retErr error
	defer func() { endSpan(retErr) }()

	listings, err := s.store.SearchRecent(ctx, f)
	if err != nil {
		retErr = fmt.Errorf("fallback search failed: %w", err)
		return nil, retErr
	}
	total, err := s.store.CountApproximate(ctx, f)
	if err != nil {
		retErr = fmt.Errorf("fallback count failed: %w", err)
		return nil, retErr
	}

	page := assembleFallback(listings, f, total)
	return &page, nil
}
