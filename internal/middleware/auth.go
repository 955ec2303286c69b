package middleware

import (
	"net/http"
	"strings"

	"github.com/ticketops/reconcile-api/internal/auth"
)

// RequireAPIKey accepts "Authorization: Bearer <key>" or "X-API-Key". With no
// keys configured every request passes through.
func RequireAPIKey(verifier *auth.KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := bearerToken(r.Header.Get("Authorization"))
			if key == "" {
				key = strings.TrimSpace(r.Header.Get("X-API-Key"))
			}
			if key == "" {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "API key required")
				return
			}
			if !verifier.Verify(key) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "API key is invalid")
				return
			}

			ctx := WithActor(r.Context(), Actor{KeyFingerprint: auth.Fingerprint(key)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
