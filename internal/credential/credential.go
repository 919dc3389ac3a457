// Package credential verifies bearer credentials for guarded endpoints.
// Two variants exist: a static shared secret for internal tooling, and
// issued, expiring signed tokens for operator logins.
package credential

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is the default lifetime for issued admin tokens.
	DefaultTokenTTL = 12 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 15 * time.Second
)

var (
	// ErrMalformed means no usable credential was presented.
	ErrMalformed = errors.New("missing or malformed credential")
	// ErrInvalid means a credential was presented but did not verify.
	ErrInvalid = errors.New("invalid credential")
)

// Verifier checks a bearer credential and returns its subject.
type Verifier interface {
	Verify(token string) (subject string, err error)
}

// FromHeader extracts the bearer token from an Authorization header value.
func FromHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMalformed
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrMalformed
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", ErrMalformed
	}
	return token, nil
}

// StaticSecret verifies a single shared secret in constant time.
// It carries no identity; the subject is always "internal".
type StaticSecret struct {
	secret []byte
}

// NewStaticSecret builds a static-secret verifier.
func NewStaticSecret(secret string) (*StaticSecret, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("static secret is required")
	}
	return &StaticSecret{secret: []byte(secret)}, nil
}

// Verify compares the presented token against the configured secret.
func (s *StaticSecret) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMalformed
	}
	if subtle.ConstantTimeCompare([]byte(token), s.secret) != 1 {
		return "", ErrInvalid
	}
	return "internal", nil
}

// TokenIssuer signs short-lived HS256 tokens for operator sessions.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer. ttl <= 0 falls back to DefaultTokenTTL.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token signing secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue signs a token for the given subject.
func (i *TokenIssuer) Issue(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// SignedToken verifies issued HS256 tokens.
type SignedToken struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewSignedToken builds a signed-token verifier matching a TokenIssuer.
func NewSignedToken(secret, issuer string, leeway time.Duration) (*SignedToken, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token signing secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &SignedToken{secret: []byte(secret), issuer: issuer, leeway: leeway}, nil
}

// Verify validates signature, expiry, and issuer, returning the subject.
func (v *SignedToken) Verify(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrMalformed
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unsupported signing method")
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}
