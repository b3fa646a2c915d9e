package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

// CORS applies the browser origin policy. Origins are trimmed and blanks
// dropped; an empty list falls back to the local frontend. A "*" entry
// allows any origin but then cookies and auth headers are not shared.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader},
		ExposedHeaders: []string{"X-LocalBiz-Env"},
		// Browsers refuse credentialed responses to a wildcard origin.
		AllowCredentials: !slices.Contains(allowed, "*"),
		MaxAge:           600,
	})
}
