package middleware

import (
	"net/http"
	"strings"
)

// BodyLimitOverride sets a different cap for requests under PathPrefix. An
// empty Method matches any method.
type BodyLimitOverride struct {
	Method     string
	PathPrefix string
	MaxBytes   int64
}

func LimitBodyBytesWithOverrides(defaultMax int64, overrides []BodyLimitOverride) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maxBytes := defaultMax
			path := r.URL.Path
			apiPath := strings.TrimPrefix(path, "/api")
			for _, override := range overrides {
				if override.PathPrefix == "" || override.MaxBytes <= 0 {
					continue
				}
				if override.Method != "" && override.Method != r.Method {
					continue
				}
				if strings.HasPrefix(path, override.PathPrefix) || strings.HasPrefix(apiPath, override.PathPrefix) {
					maxBytes = override.MaxBytes
					break
				}
			}
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
