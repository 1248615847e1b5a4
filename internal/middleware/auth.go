package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/cortexai/opsagent/internal/models"
)

var publicPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// Auth requires one of apiKeys in headerName, or in the api_key cookie or
// query parameter for browser WebSocket clients that cannot set headers.
func Auth(apiKeys []string, headerName string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerName)
			if key == "" {
				if c, err := r.Cookie("api_key"); err == nil {
					key = c.Value
				}
			}
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}

			if key == "" {
				models.WriteError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !validKey(keys, key) {
				loggerFrom(r).Warn().Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).Msg("invalid API key")
				models.WriteError(w, http.StatusForbidden, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys [][]byte, key string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return ok == 1
}
