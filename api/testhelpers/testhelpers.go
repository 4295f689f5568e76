package testhelpers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/creator-discovery-api/api"
)

// TestSecret is the JWT secret used across handler tests
const TestSecret = "test-secret"

// BearerToken signs a one hour token for owner with secret
func BearerToken(t testing.TB, secret, owner string) string {
	t.Helper()
	token, err := api.NewAuthenticator(secret).IssueToken(owner, time.Hour)
	require.NoError(t, err)
	return token
}

// Authorize sets a bearer token for owner on r
func Authorize(t testing.TB, r *http.Request, owner string) *http.Request {
	t.Helper()
	r.Header.Set("Authorization", "Bearer "+BearerToken(t, TestSecret, owner))
	return r
}
