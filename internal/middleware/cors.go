package middleware

import (
	"net/http"
	"strings"
)

const defaultCORSMethods = "GET, POST, PUT, OPTIONS"

type CORSMethodOverride struct {
	PathPrefix string
	Methods    string
}

// CORS answers preflights and sets allow headers for listed origins. A "*"
// entry opens the API to any origin without credentials.
func CORS(allowedOrigins []string, overrides []CORSMethodOverride) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	wildcard := false
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			wildcard = true
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			methods := defaultCORSMethods
			for _, override := range overrides {
				if override.PathPrefix != "" && strings.HasPrefix(r.URL.Path, override.PathPrefix) {
					methods = override.Methods
					break
				}
			}

			origin := r.Header.Get("Origin")
			if origin != "" {
				_, listed := allowed[origin]
				switch {
				case wildcard:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				case listed:
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				if wildcard || listed {
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-Id")
					w.Header().Set("Access-Control-Allow-Methods", methods)
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
