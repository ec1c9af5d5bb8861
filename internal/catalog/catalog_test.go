package catalog

import (
	"context"
	"errors"
	"testing"
)

func testResolver() *InMemoryResolver {
	return NewInMemoryResolver(
		Category{ID: 1, Name: "Dresses"},
		Category{ID: 2, Name: "Evening dresses"},
		Category{ID: 3, Name: "Knitwear"},
		Category{ID: 4, Name: "Coats & Jackets"},
	)
}

func TestInMemoryResolver_ResolveName(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name    string
		input   string
		wantID  int64
		wantErr error
	}{
		{"exact match", "Knitwear", 3, nil},
		{"case insensitive", "knitwear", 3, nil},
		{"partial match shortest wins", "dress", 1, nil},
		{"partial inside longer name", "jacket", 4, nil},
		{"trimmed input", "  dresses  ", 1, nil},
		{"no match", "electronics", 0, ErrNotFound},
		{"empty", "", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveName(context.Background(), tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("resolved id %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestInMemoryResolver_TieBreakByID(t *testing.T) {
	r := NewInMemoryResolver(
		Category{ID: 9, Name: "Bags"},
		Category{ID: 2, Name: "Hats"},
	)
	// Both names are 4 chars and match "a"; the lower id wins.
	got, err := r.ResolveName(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 2 {
		t.Errorf("resolved id %d, want 2", got.ID)
	}
}
