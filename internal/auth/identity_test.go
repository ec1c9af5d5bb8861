package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestIssueAndValidateToken(t *testing.T) {
	s := NewIdentityService("test-secret-at-least-32-chars-long")

	token, err := s.IssueToken("user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("subject = %q, want user-123", claims.Subject)
	}
}

func TestIssueToken_EmptySubject(t *testing.T) {
	s := NewIdentityService("test-secret-at-least-32-chars-long")

	if _, err := s.IssueToken(""); !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewIdentityService("secret-one-at-least-32-chars-long")
	verifier := NewIdentityService("secret-two-at-least-32-chars-long")

	token, err := issuer.IssueToken("user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	s := NewIdentityService("test-secret-at-least-32-chars-long")

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := s.ValidateToken(input); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("input %q: expected ErrInvalidToken, got %v", input, err)
		}
	}
}

func TestPersonalizationKey(t *testing.T) {
	s := NewIdentityService("test-secret-at-least-32-chars-long")
	token, err := s.IssueToken("user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   *string
	}{
		{"valid bearer token", "Bearer " + token, strPtr("user-123")},
		{"missing header", "", nil},
		{"wrong scheme", "Basic " + token, nil},
		{"invalid token", "Bearer garbage", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/search/listings", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			got := s.PersonalizationKey(r)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected anonymous, got %q", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("got %v, want %q", got, *tt.want)
			}
		})
	}
}

func TestPersonalizationKey_NilService(t *testing.T) {
	var s *IdentityService
	r := httptest.NewRequest("GET", "/search/listings", nil)
	if key := s.PersonalizationKey(r); key != nil {
		t.Errorf("nil service must yield anonymous, got %q", *key)
	}
}

func strPtr(s string) *string { return &s }
