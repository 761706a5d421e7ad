package testing

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSecret signs test tokens. The client never verifies signatures.
var tokenSecret = []byte("sentinel-test-secret")

// MintToken returns an HS256 access token for userID expiring at exp.
func MintToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tokenSecret)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

// MintTokenWithoutExpiry returns a token with no exp claim.
func MintTokenWithoutExpiry(t *testing.T, userID string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: userID}).SignedString(tokenSecret)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}
