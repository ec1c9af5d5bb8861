// Package catalog provides category name resolution for search filters.
// Resolution is an explicitly passed service rather than a module-level
// cache; the cached variant defines its own staleness tolerance.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/relovd/search-api/internal/tracing"
)

// ErrNotFound is returned when no category matches a name. Callers treat
// it as "drop the category filter", never as a request failure.
var ErrNotFound = errors.New("category not found")

// Category is one entry of the category catalog.
type Category struct {
	ID   int64  `cbor:"id" json:"id"`
	Name string `cbor:"name" json:"name"`
}

// Resolver resolves a category name to a catalog entry using a
// case-insensitive partial match. The shortest matching name wins so that
// "dress" resolves to "Dresses" rather than "Evening dresses".
type Resolver interface {
	ResolveName(ctx context.Context, name string) (*Category, error)
}

// PostgresResolver resolves category names against the categories table.
type PostgresResolver struct {
	db *sql.DB
}

// NewPostgresResolver creates a PostgresResolver.
func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

// ResolveName finds the best matching category or ErrNotFound.
func (p *PostgresResolver) ResolveName(ctx context.Context, name string) (*Category, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "categories", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	query := `
		SELECT id, name
		FROM categories
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY length(name) ASC, id ASC
		LIMIT 1
	`
	var c Category
	err = p.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category %q: %w", name, err)
	}
	return &c, nil
}

// InMemoryResolver is an in-memory Resolver for tests.
// Thread-safe via RWMutex.
type InMemoryResolver struct {
	mu         sync.RWMutex
	categories []Category
}

// NewInMemoryResolver creates an InMemoryResolver with the given catalog.
func NewInMemoryResolver(categories ...Category) *InMemoryResolver {
	return &InMemoryResolver{categories: categories}
}

// Add appends a category to the catalog.
func (r *InMemoryResolver) Add(c Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = append(r.categories, c)
}

// ResolveName mirrors the Postgres matching rules: case-insensitive
// substring, shortest name first, id as tie-break.
func (r *InMemoryResolver) ResolveName(ctx context.Context, name string) (*Category, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []Category
	for _, c := range r.categories {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].Name) != len(matches[j].Name) {
			return len(matches[i].Name) < len(matches[j].Name)
		}
		return matches[i].ID < matches[j].ID
	})
	best := matches[0]
	return &best, nil
}
