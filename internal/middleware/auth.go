package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dcutelaria/storefront/internal/config"
)

// AdminAuth guards the back-office routes with a bearer token. When no token
// is configured the routes are disabled entirely rather than left open.
func AdminAuth(cfg config.AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminToken == "" {
				http.Error(w, "Forbidden: admin access is not configured", http.StatusForbidden)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Unauthorized: bearer token required", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) != 1 {
				http.Error(w, "Forbidden: invalid token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
