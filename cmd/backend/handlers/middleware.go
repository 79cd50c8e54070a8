package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/formbot-io/formbot/logger"
)

// InternalKeyMiddleware guards the API with a shared internal key. All
// callers are trusted services, not end users; there is no per-user auth.
type InternalKeyMiddleware struct {
	key    string
	logger logger.Logger
}

// NewInternalKeyMiddleware creates the middleware. An empty key disables
// the check, for local development only.
func NewInternalKeyMiddleware(key string, log logger.Logger) *InternalKeyMiddleware {
	return &InternalKeyMiddleware{key: key, logger: log}
}

// Handler wraps an HTTP handler with the internal key check.
func (m *InternalKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.key == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-Internal-Api-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.key)) != 1 {
			m.logger.Warn(r.Context(), "rejected request with invalid internal api key", map[string]interface{}{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			})
			respondError(w, http.StatusUnauthorized, "invalid internal API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
