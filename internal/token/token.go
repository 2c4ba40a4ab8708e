// Package token issues and verifies the signed bearer tokens used by the
// session model: short-lived access tokens and long-lived refresh tokens,
// each signed with its own secret.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAccessTTL  = 5 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Kind selects which class of token to issue or verify.
type Kind int

const (
	// Access tokens authenticate ordinary API calls.
	Access Kind = iota
	// Refresh tokens are used solely to mint new access tokens.
	Refresh
)

var (
	// ErrExpired is returned when a token's signature is valid but its
	// expiry has passed.
	ErrExpired = errors.New("token expired")

	// ErrInvalid is returned for malformed tokens, bad signatures, or a
	// missing subject.
	ErrInvalid = errors.New("invalid token")
)

// Issuer creates and verifies signed, time-bounded tokens bound to a
// user identity via the registered "sub" claim.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewIssuer constructs an Issuer with the two per-kind secrets.
// Zero TTLs fall back to the defaults (5h access, 7d refresh).
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL == 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL == 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess mints a short-lived access token for the user.
func (i *Issuer) IssueAccess(userID string) (string, error) {
	return issue(userID, i.accessSecret, i.accessTTL)
}

// IssueRefresh mints a long-lived refresh token for the user.
func (i *Issuer) IssueRefresh(userID string) (string, error) {
	return issue(userID, i.refreshSecret, i.refreshTTL)
}

// Verify checks the token's signature and expiry for the given kind and
// returns the subject user ID. Failures are ErrExpired or ErrInvalid.
func (i *Issuer) Verify(tokenString string, kind Kind) (string, error) {
	secret := i.accessSecret
	if kind == Refresh {
		secret = i.refreshSecret
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}
	if !parsed.Valid {
		return "", ErrInvalid
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalid
	}
	return subject, nil
}

func issue(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
