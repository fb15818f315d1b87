package telemetry

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer-token payload the query API and live feed trust for
// clearance decisions.
type Claims struct {
	Clearance int    `json:"clearance"`
	Subject   string `json:"sub"`
	jwt.RegisteredClaims
}

// Authority signs and verifies the HS256 bearer tokens clients present to
// the query API and WebSocket stream.
type Authority struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthority builds an Authority with the given signing secret and token
// lifetime.
func NewAuthority(secret []byte, ttl time.Duration) *Authority {
	return &Authority{secret: secret, ttl: ttl}
}

// Issue mints a signed token for subject at the given clearance level.
func (a *Authority) Issue(subject string, clearance int) (string, error) {
	now := time.Now()
	claims := Claims{
		Clearance: clearance,
		Subject:   subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a bearer token, returning its claims.
func (a *Authority) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("telemetry: unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("telemetry: token not valid")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return ""
}

// RequireClearance is chi-compatible HTTP middleware that rejects requests
// below minClearance. A nil Authority lets every request through at
// ClearancePublic.
func (a *Authority) RequireClearance(minClearance int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				next.ServeHTTP(w, r)
				return
			}
			tok := bearerToken(r)
			if tok == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := a.Verify(tok)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Clearance < minClearance {
				http.Error(w, "insufficient clearance", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
