package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func preflight(t *testing.T, origins []string, origin string) http.Header {
	t.Helper()
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/businesses/me", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Header()
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	got := preflight(t, []string{" https://app.localbiz.test/ ", ""}, "https://app.localbiz.test")
	assert.Equal(t, "https://app.localbiz.test", got.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", got.Get("Access-Control-Allow-Credentials"))

	got = preflight(t, []string{"https://app.localbiz.test"}, "https://evil.test")
	assert.Empty(t, got.Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultsToLocalFrontend(t *testing.T) {
	got := preflight(t, nil, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", got.Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardDropsCredentials(t *testing.T) {
	got := preflight(t, []string{"*"}, "https://anywhere.test")
	assert.Equal(t, "*", got.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, got.Get("Access-Control-Allow-Credentials"))
}
