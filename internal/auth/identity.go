// Package auth extracts the optional caller identity used as the
// personalization key for ranked search. Anonymous callers are always
// allowed: a missing or invalid token yields a nil key, never an error.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry is the lifetime of tokens issued by IssueToken.
const TokenExpiry = 15 * time.Minute

// DefaultLeeway for token time-claim validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrEmptySubject is returned when a token is issued without a subject.
var ErrEmptySubject = errors.New("subject cannot be empty")

// Claims are the JWT claims this service reads. Only the registered
// claims matter; the subject is the personalization key.
type Claims struct {
	jwt.RegisteredClaims
}

// IdentityService validates bearer tokens and turns them into
// personalization keys.
type IdentityService struct {
	secret []byte
	leeway time.Duration
}

// NewIdentityService creates an IdentityService with the given HMAC secret.
func NewIdentityService(secret string) *IdentityService {
	return &IdentityService{
		secret: []byte(secret),
		leeway: DefaultLeeway,
	}
}

// IssueToken creates a signed token whose subject is the given user id.
// Used by tests and local tooling; production tokens come from the
// account service, which shares the secret.
func (s *IdentityService) IssueToken(subject string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates a token string, returning its claims.
func (s *IdentityService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// PersonalizationKey extracts the caller's personalization key from the
// request's bearer token. Nil means anonymous: no Authorization header, a
// malformed header, an invalid token or an empty subject all degrade to
// anonymous rather than rejecting the request.
func (s *IdentityService) PersonalizationKey(r *http.Request) *string {
	if s == nil {
		return nil
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil
	}
	claims, err := s.ValidateToken(strings.TrimPrefix(header, prefix))
	if err != nil || claims.Subject == "" {
		return nil
	}
	key := claims.Subject
	return &key
}
