package listing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrStoreUnavailable is returned when the relational store cannot be
// reached at all. It is the only store error that surfaces to callers as a
// hard failure.
var ErrStoreUnavailable = errors.New("listing store unavailable")

// Store is the read-only relational access the search service needs.
type Store interface {
	// GetByIDs fetches full listing records for a deduplicated id set in a
	// single batch. Ids that no longer exist are simply absent from the
	// returned map; that is not an error.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*Listing, error)

	// CountExact counts eligible listings matching the filter using the
	// full predicate the ranking source applies, including substring
	// matches inside the tag array.
	CountExact(ctx context.Context, f Filter) (int, error)

	// CountApproximate counts eligible listings using the narrower
	// predicate (title/description/brand substring only, no tag search).
	// It never matches more rows than CountExact.
	CountApproximate(ctx context.Context, f Filter) (int, error)

	// SearchRecent runs the deterministic fallback query: the approximate
	// predicate ordered by created_at DESC with id ASC tie-break,
	// paginated by the filter's limit and offset.
	SearchRecent(ctx context.Context, f Filter) ([]*Listing, error)
}

// InMemoryStore is an in-memory Store for tests and local development.
// Thread-safe via RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	listings map[int64]*Listing

	// Error hooks for exercising degradation paths in tests.
	ExactCountErr error
	FetchErr      error
	RecentErr     error
}

// NewInMemoryStore creates an empty in-memory listing store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		listings: make(map[int64]*Listing),
	}
}

// Put inserts or replaces a listing.
func (s *InMemoryStore) Put(l *Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.Status == "" {
		l.Status = StatusListed
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	cp := *l
	s.listings[l.ID] = &cp
}

// Remove deletes a listing, simulating concurrent deletion between the
// ranking index and the live store.
func (s *InMemoryStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listings, id)
}

// GetByIDs returns copies of the listings that still exist, keyed by id.
func (s *InMemoryStore) GetByIDs(ctx context.Context, ids []int64) (map[int64]*Listing, error) {
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]*Listing, len(ids))
	for _, id := range ids {
		if l, ok := s.listings[id]; ok {
			cp := *l
			out[id] = &cp
		}
	}
	return out, nil
}

// CountExact counts listings matching the full predicate, tag search
// included.
func (s *InMemoryStore) CountExact(ctx context.Context, f Filter) (int, error) {
	if s.ExactCountErr != nil {
		return 0, s.ExactCountErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.listings {
		if matchesExact(l, f) {
			n++
		}
	}
	return n, nil
}

// CountApproximate counts listings matching the narrower predicate.
func (s *InMemoryStore) CountApproximate(ctx context.Context, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.listings {
		if matchesApproximate(l, f) {
			n++
		}
	}
	return n, nil
}

// SearchRecent returns listings matching the approximate predicate, newest
// first, paginated by the filter.
func (s *InMemoryStore) SearchRecent(ctx context.Context, f Filter) ([]*Listing, error) {
	if s.RecentErr != nil {
		return nil, s.RecentErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Listing
	for _, l := range s.listings {
		if matchesApproximate(l, f) {
			matched = append(matched, l)
		}
	}

	// created_at DESC, id ASC tie-break for stable pagination
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.After(matched[j].CreatedAt) {
			return true
		}
		if matched[i].CreatedAt.Before(matched[j].CreatedAt) {
			return false
		}
		return matched[i].ID < matched[j].ID
	})

	if f.Offset >= len(matched) {
		return []*Listing{}, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]*Listing, len(matched))
	for i, l := range matched {
		cp := *l
		out[i] = &cp
	}
	return out, nil
}

// matchesBase applies the predicate parts shared by both count paths:
// eligibility, category and gender.
func matchesBase(l *Listing, f Filter) bool {
	if l.Status != StatusListed {
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

// matchesApproximate mirrors the narrower SQL predicate: substring match
// over title, description and brand only.
func matchesApproximate(l *Listing, f Filter) bool {
	if !matchesBase(l, f) {
		return false
	}
	if f.SearchText == "" {
		return true
	}
	q := strings.ToLower(f.SearchText)
	return strings.Contains(strings.ToLower(l.Title), q) ||
		strings.Contains(strings.ToLower(l.Description), q) ||
		strings.Contains(strings.ToLower(l.Brand), q)
}

// matchesExact mirrors the full SQL predicate: the approximate predicate
// plus substring match inside the tag array.
func matchesExact(l *Listing, f Filter) bool {
	if !matchesBase(l, f) {
		return false
	}
	if f.SearchText == "" {
		return true
	}
	if matchesApproximate(l, f) {
		return true
	}
	q := strings.ToLower(f.SearchText)
	for _, tag := range l.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
