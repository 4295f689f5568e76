package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/config"
)

// OwnerHeader carries the owner id of anonymous clients
const OwnerHeader = "X-Owner-ID"

var (
	// ErrMissingToken is returned when a request carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrMissingSubject is returned for a valid token without a sub claim
	ErrMissingSubject = errors.New("token has no subject")
)

// Authenticator resolves the owner of a request. With a secret it requires an
// HS256 bearer token whose sub claim is the owner. Without one it runs in
// anonymous mode: the owner comes from the X-Owner-ID header, and a new id is
// issued in the response header when the client has none yet.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an authenticator for secret; an empty secret selects
// anonymous mode
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		zap.S().Warn("JWT_SECRET is not set, requests are identified by the X-Owner-ID header")
	}
	return &Authenticator{secret: []byte(secret)}
}

// Anonymous reports whether tokens are ignored
func (a *Authenticator) Anonymous() bool {
	return len(a.secret) == 0
}

// Middleware puts the request owner into the request context or answers 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var owner string
		if a.Anonymous() {
			owner = strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				owner = uuid.New().String()
			}
			w.Header().Set(OwnerHeader, owner)
		} else {
			var err error
			owner, err = a.Verify(bearerToken(r))
			if err != nil {
				zap.S().Warnw("unauthorized", "url", r.URL.Path, "error", err)
				config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// Verify checks token and returns its subject
func (a *Authenticator) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for owner valid for ttl
func (a *Authenticator) IssueToken(owner string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.New().String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter for WebSocket clients that cannot set headers
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
