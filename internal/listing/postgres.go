package listing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/relovd/search-api/internal/tracing"
)

// PostgresStore implements Store against PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// listingColumns is the select list shared by the batched fetch and the
// fallback query. Keep the scan order in scanListing in sync.
const listingColumns = `
	l.id, l.title, l.description, l.brand, l.size, l.condition, l.material,
	l.gender, l.category_id, COALESCE(c.name, ''), l.price_minor, l.currency,
	l.image_urls, l.tags, l.shipping_price_minor, l.ships_from, l.status,
	s.id, s.username, COALESCE(s.avatar_url, ''), s.rating, s.sales_count,
	l.created_at, l.updated_at`

// GetByIDs fetches full listing records in one batch with joined seller and
// category sub-records. Eligibility is not re-checked here: the ranking
// source already filtered it, and re-filtering would turn index lag into
// dropped result positions.
func (p *PostgresStore) GetByIDs(ctx context.Context, ids []int64) (map[int64]*Listing, error) {
	if len(ids) == 0 {
		return map[int64]*Listing{}, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + listingColumns + `
		FROM listings l
		JOIN sellers s ON s.id = l.seller_id
		LEFT JOIN categories c ON c.id = l.category_id
		WHERE l.id = ANY($1)
	`
	rows, err := p.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings by id: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Listing, len(ids))
	for rows.Next() {
		l, scanErr := scanListing(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("failed to scan listing: %w", scanErr)
		}
		out[l.ID] = l
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listing rows: %w", err)
	}
	return out, nil
}

// CountExact counts eligible listings using the raw predicate that mirrors
// the ranking source's filter semantics bit for bit, including substring
// match inside the tag array, which the narrower query path cannot express.
func (p *PostgresStore) CountExact(ctx context.Context, f Filter) (int, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	query := `
		SELECT COUNT(*)
		FROM listings l
		WHERE l.status = 'listed'
		  AND ($1 = '' OR
		       l.title ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       l.description ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       l.brand ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       EXISTS (
		           SELECT 1 FROM unnest(l.tags) AS tag
		           WHERE tag ILIKE '%' || $1 || '%' ESCAPE '\'
		       ))
		  AND ($2::bigint IS NULL OR l.category_id = $2)
		  AND ($3::text IS NULL OR l.gender = $3)
	`
	var n int
	err = p.db.QueryRowContext(ctx, query, escapeLike(f.SearchText), nullableID(f.CategoryID), nullableGender(f.Gender)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings (exact predicate): %w", err)
	}
	return n, nil
}

// CountApproximate counts eligible listings using the narrower predicate
// only: title/description/brand substring, no tag search.
func (p *PostgresStore) CountApproximate(ctx context.Context, f Filter) (int, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	query := `
		SELECT COUNT(*)
		FROM listings l
		WHERE l.status = 'listed'
		  AND ($1 = '' OR
		       l.title ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       l.description ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       l.brand ILIKE '%' || $1 || '%' ESCAPE '\')
		  AND ($2::bigint IS NULL OR l.category_id = $2)
		  AND ($3::text IS NULL OR l.gender = $3)
	`
	var n int
	err = p.db.QueryRowContext(ctx, query, escapeLike(f.SearchText), nullableID(f.CategoryID), nullableGender(f.Gender)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings (approximate predicate): %w", err)
	}
	return n, nil
}

// SearchRecent is the deterministic fallback query: approximate predicate,
// newest first with id ASC tie-break, paginated by limit/offset.
func (p *PostgresStore) SearchRecent(ctx context.Context, f Filter) ([]*Listing, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + listingColumns + `
		FROM listings l
		JOIN sellers s ON s.id = l.seller_id
		LEFT JOIN categories c ON c.id = l.category_id
		WHERE l.status = 'listed'
		  AND ($1 = '' OR
		       l.title ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       l.description ILIKE '%' || $1 || '%' ESCAPE '\' OR
		       l.brand ILIKE '%' || $1 || '%' ESCAPE '\')
		  AND ($2::bigint IS NULL OR l.category_id = $2)
		  AND ($3::text IS NULL OR l.gender = $3)
		ORDER BY l.created_at DESC, l.id ASC
		LIMIT $4 OFFSET $5
	`
	rows, err := p.db.QueryContext(ctx, query,
		escapeLike(f.SearchText), nullableID(f.CategoryID), nullableGender(f.Gender), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to run fallback search: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, scanErr := scanListing(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("failed to scan listing: %w", scanErr)
		}
		out = append(out, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listing rows: %w", err)
	}
	if out == nil {
		out = []*Listing{}
	}
	return out, nil
}

// scanListing scans one row in listingColumns order.
func scanListing(rows *sql.Rows) (*Listing, error) {
	var (
		l          Listing
		categoryID sql.NullInt64
		images     pq.StringArray
		tags       pq.StringArray
	)
	err := rows.Scan(
		&l.ID, &l.Title, &l.Description, &l.Brand, &l.Size, &l.Condition, &l.Material,
		&l.Gender, &categoryID, &l.CategoryName, &l.PriceMinor, &l.Currency,
		&images, &tags, &l.ShippingPriceMinor, &l.ShipsFrom, &l.Status,
		&l.Seller.ID, &l.Seller.Username, &l.Seller.AvatarURL, &l.Seller.Rating, &l.Seller.SalesCount,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		l.CategoryID = &id
	}
	l.ImageURLs = []string(images)
	l.Tags = []string(tags)
	return &l, nil
}

// escapeLike escapes LIKE metacharacters in user input so a query of
// "100%" matches literally instead of as a wildcard.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func nullableGender(g *Gender) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*g), Valid: true}
}
