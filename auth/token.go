// Package auth issues and verifies the bearer tokens used to identify
// users on REST requests and session connections.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Jay-Parmar/PokerPlannerBE/models"
)

// Tokens signs and verifies HS256 user tokens.
type Tokens struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
}

// New returns a token signer/verifier. now may be nil.
func New(secret, issuer string, expiry time.Duration, now func() time.Time) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
		now:    now,
	}, nil
}

// Sign returns a token whose subject is the given user id.
func (t *Tokens) Sign(userID string) (string, error) {
	now := t.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the user id.
func (t *Tokens) Verify(raw string) (string, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return "", models.ErrUnauthorized
	}
	if c.Subject == "" {
		return "", models.ErrUnauthorized
	}
	return c.Subject, nil
}
