//go:build integration

// Integration tests for the Postgres-backed listing store.
//
// These tests start a disposable Postgres container and apply the
// repository's migrations. Run with:
//
//	go test -tags=integration -v ./internal/listing/...
package listing

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("search"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("could not start postgres container (is Docker available?): %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	applyMigrations(t, db)
	return db
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()

	dir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read migrations dir: %v", err)
	}

	var ups []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sql" && len(e.Name()) > 7 && e.Name()[len(e.Name())-7:] == ".up.sql" {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			t.Fatalf("failed to apply migration %s: %v", name, err)
		}
	}
}

func seedTestData(t *testing.T, db *sql.DB) {
	t.Helper()

	stmts := []string{
		`INSERT INTO sellers (id, username, rating) VALUES (1, 'resale.fi', 4.8), (2, 'vintagehaul', 4.2)`,
		`INSERT INTO listings (id, seller_id, category_id, title, description, brand, gender, tags, image_urls, price_minor, status, created_at)
		 VALUES
		 (1, 1, 1, 'Floral midi dress', 'Light summer dress', 'Ganni', 'women', '{"floral","midi"}', '{"https://img/1.jpg"}', 4500, 'listed', now() - interval '3 hours'),
		 (2, 1, 1, 'Silk slip dress', 'Barely worn', 'Reformation', 'women', '{"silk","y2k"}', '{}', 6000, 'listed', now() - interval '2 hours'),
		 (3, 2, 6, 'Mohair cardigan', 'Cozy and floral-patterned', 'Arket', 'unisex', '{}', '{}', 3800, 'listed', now() - interval '1 hour'),
		 (4, 2, 1, 'Wrap dress', 'Sold already', 'Zara', 'women', '{"floral"}', '{}', 1500, 'sold', now())`,
		`SELECT setval('listings_id_seq', 100)`,
		`SELECT setval('sellers_id_seq', 100)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}
}

func TestPostgresStore_GetByIDs(t *testing.T) {
	db := setupPostgres(t)
	seedTestData(t, db)
	store := NewPostgresStore(db, nil)

	got, err := store.GetByIDs(context.Background(), []int64{1, 3, 99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(got))
	}

	l := got[1]
	if l.Title != "Floral midi dress" {
		t.Errorf("title = %q", l.Title)
	}
	if l.Seller.Username != "resale.fi" {
		t.Errorf("seller = %q, want joined seller record", l.Seller.Username)
	}
	if len(l.Tags) != 2 || l.Tags[0] != "floral" {
		t.Errorf("tags = %v", l.Tags)
	}
	if l.Gender != GenderWomen {
		t.Errorf("gender = %q", l.Gender)
	}
}

func TestPostgresStore_CountPredicates(t *testing.T) {
	db := setupPostgres(t)
	seedTestData(t, db)
	store := NewPostgresStore(db, nil)
	ctx := context.Background()

	// "floral" matches listing 1 by title, listing 3 by description and
	// listing 1's tag; listing 4 is sold and excluded everywhere.
	f := Filter{SearchText: "floral", Limit: 20}

	exact, err := store.CountExact(ctx, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx, err := store.CountApproximate(ctx, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exact != 2 {
		t.Errorf("exact = %d, want 2", exact)
	}
	if approx != 2 {
		t.Errorf("approx = %d, want 2", approx)
	}

	// "y2k" appears only inside a tag array: exact sees it, approximate
	// does not.
	f = Filter{SearchText: "y2k", Limit: 20}
	exact, err = store.CountExact(ctx, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx, err = store.CountApproximate(ctx, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exact != 1 {
		t.Errorf("exact = %d, want 1 (tag-only match)", exact)
	}
	if approx != 0 {
		t.Errorf("approx = %d, want 0 (tag search excluded)", approx)
	}
}

func TestPostgresStore_CountEscapesLikeMetacharacters(t *testing.T) {
	db := setupPostgres(t)
	seedTestData(t, db)
	store := NewPostgresStore(db, nil)

	// A literal percent sign must not act as a wildcard.
	n, err := store.CountExact(context.Background(), Filter{SearchText: "100%", Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0 for a literal %% query", n)
	}
}

func TestPostgresStore_SearchRecent(t *testing.T) {
	db := setupPostgres(t)
	seedTestData(t, db)
	store := NewPostgresStore(db, nil)

	got, err := store.SearchRecent(context.Background(), Filter{SearchText: "dress", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Newest first; the sold listing is excluded.
	wantOrder := []int64{2, 1}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d listings, got %d", len(wantOrder), len(got))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got id %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestRankListingsFunction(t *testing.T) {
	db := setupPostgres(t)
	seedTestData(t, db)
	ctx := context.Background()

	rows, err := db.QueryContext(ctx, `
		SELECT id, final_score FROM rank_listings(NULL, 'dress', 10, 0, 42, NULL, NULL)
	`)
	if err != nil {
		t.Fatalf("rank_listings failed: %v", err)
	}
	defer rows.Close()

	var ids []int64
	prev := 2.0
	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			t.Fatal(err)
		}
		if score > prev {
			t.Errorf("scores not descending: %v after %v", score, prev)
		}
		prev = score
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	if len(ids) != 2 {
		t.Fatalf("expected 2 ranked listings, got %d (%v)", len(ids), ids)
	}
	for _, id := range ids {
		if id == 4 {
			t.Error("sold listing must not be ranked")
		}
	}

	// Deterministic under an identical seed.
	row := db.QueryRowContext(ctx, `
		SELECT array_agg(id ORDER BY final_score DESC, id ASC)::TEXT
		FROM rank_listings(NULL, 'dress', 10, 0, 42, NULL, NULL)
	`)
	var first string
	if err := row.Scan(&first); err != nil {
		t.Fatal(err)
	}
	row = db.QueryRowContext(ctx, `
		SELECT array_agg(id ORDER BY final_score DESC, id ASC)::TEXT
		FROM rank_listings(NULL, 'dress', 10, 0, 42, NULL, NULL)
	`)
	var second string
	if err := row.Scan(&second); err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("ordering not deterministic under a fixed seed: %s vs %s", first, second)
	}
}
