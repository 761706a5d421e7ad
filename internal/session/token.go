package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshBuffer is how long before expiry a token stops being handed out.
const DefaultRefreshBuffer = 300 * time.Second

// TokenState is the credential pair plus the decoded access-token expiry.
type TokenState struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch seconds, 0 if the token carries no exp claim
}

// State is the lifecycle position of the session.
type State int

const (
	// StateUnauthenticated holds no credentials; only a login leaves it.
	StateUnauthenticated State = iota
	// StateValid holds credentials.
	StateValid
	// StateRefreshing has a refresh exchange in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// DecodeExpiry reads the exp claim of a JWT without verifying its signature.
// Verification is the backend's job; the client only needs to know when to refresh.
func DecodeExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// expiredAt reports whether token is unusable at now given buffer.
// A token is usable only while at least buffer remains before exp.
func expiredAt(token string, now time.Time, buffer time.Duration) bool {
	exp, ok := DecodeExpiry(token)
	if !ok {
		return true
	}
	return exp.Sub(now) < buffer
}
