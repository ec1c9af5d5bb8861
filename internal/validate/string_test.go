package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		want        string
		wantErr     error
	}{
		{
			name:        "trims whitespace",
			input:       "  hello  ",
			constraints: StringConstraints{TrimSpace: true},
			want:        "hello",
		},
		{
			name:        "empty rejected by default",
			input:       "",
			constraints: StringConstraints{},
			wantErr:     ErrEmpty,
		},
		{
			name:        "empty allowed when opted in",
			input:       "",
			constraints: StringConstraints{AllowEmpty: true},
			want:        "",
		},
		{
			name:        "too short",
			input:       "ab",
			constraints: StringConstraints{MinLength: 3},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "too long",
			input:       "abcdef",
			constraints: StringConstraints{MaxLength: 5},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "multibyte counted as characters",
			input:       "ääää",
			constraints: StringConstraints{MaxLength: 4},
			want:        "ääää",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchQuery(t *testing.T) {
	if _, err := SearchQuery(""); err != nil {
		t.Errorf("empty query must be valid: %v", err)
	}

	got, err := SearchQuery("  silk dress ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "silk dress" {
		t.Errorf("got %q, want trimmed", got)
	}

	long := strings.Repeat("a", MaxQueryLength+1)
	if _, err := SearchQuery(long); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("expected ErrStringTooLong, got %v", err)
	}
}

func TestCategoryName(t *testing.T) {
	valid := []string{"Dresses", "Coats & Jackets", "y2k-tops", "size 10.5"}
	for _, name := range valid {
		if _, err := CategoryName(name); err != nil {
			t.Errorf("CategoryName(%q) unexpected error: %v", name, err)
		}
	}

	if _, err := CategoryName(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	if _, err := CategoryName("dresses; DROP TABLE listings"); !errors.Is(err, ErrInvalidCharacters) {
		t.Errorf("expected ErrInvalidCharacters, got %v", err)
	}
}
