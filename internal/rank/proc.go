package rank

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/relovd/search-api/internal/listing"
	"github.com/relovd/search-api/internal/tracing"
)

// ProcRanker calls the database-resident ranking function rank_listings.
// The production ranker lives next to the data it scores; this adapter only
// marshals the filter into the function's argument list and reads back the
// ordered candidate rows.
type ProcRanker struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProcRanker creates a ProcRanker on the given database handle.
func NewProcRanker(db *sql.DB, logger *slog.Logger) *ProcRanker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcRanker{
		db:     db,
		logger: logger,
	}
}

// Rank invokes rank_listings and returns its rows in function order.
// Any error, including context timeout, wraps ErrRankingUnavailable so the
// caller can switch to the fallback path without inspecting causes.
func (r *ProcRanker) Rank(ctx context.Context, f listing.Filter) ([]Candidate, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "rank_listings", tracing.DBOperationExec)
	var err error
	defer func() { endSpan(err) }()

	query := `
		SELECT id, relevance, fairness_score, final_score, boost_weight, is_boosted,
		       title, image_url, price_minor, brand, tags, source_label
		FROM rank_listings($1, $2, $3, $4, $5, $6, $7)
	`
	var key sql.NullString
	if f.PersonalizationKey != nil {
		key = sql.NullString{String: *f.PersonalizationKey, Valid: true}
	}
	var gender sql.NullString
	if f.Gender != nil {
		gender = sql.NullString{String: string(*f.Gender), Valid: true}
	}
	var category sql.NullInt64
	if f.CategoryID != nil {
		category = sql.NullInt64{Int64: *f.CategoryID, Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, query,
		key, f.SearchText, f.Limit, f.Offset, f.RankSeed, gender, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRankingUnavailable, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c          Candidate
			relevance  sql.NullFloat64
			fairness   sql.NullFloat64
			finalScore sql.NullFloat64
			boost      sql.NullFloat64
			isBoosted  sql.NullBool
			tags       pq.StringArray
		)
		if err = rows.Scan(&c.ID, &relevance, &fairness, &finalScore, &boost, &isBoosted,
			&c.Snapshot.Title, &c.Snapshot.ImageURL, &c.Snapshot.PriceMinor,
			&c.Snapshot.Brand, &tags, &c.Snapshot.SourceLabel); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrRankingUnavailable, err)
		}
		c.Relevance = nullableFloat(relevance)
		c.FairnessScore = nullableFloat(fairness)
		c.FinalScore = nullableFloat(finalScore)
		c.BoostWeight = nullableFloat(boost)
		if isBoosted.Valid {
			b := isBoosted.Bool
			c.IsBoosted = &b
		}
		c.Snapshot.Tags = []string(tags)
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRankingUnavailable, err)
	}
	return out, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
