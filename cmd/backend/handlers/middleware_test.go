package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/formbot-io/formbot/logger"
)

func TestInternalKeyMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{
			name:       "matching key passes",
			configured: "shared-secret",
			provided:   "shared-secret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong key rejected",
			configured: "shared-secret",
			provided:   "wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing key rejected",
			configured: "shared-secret",
			provided:   "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty configured key disables check",
			configured: "",
			provided:   "",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			middleware := NewInternalKeyMiddleware(tc.configured, logger.NopLogger{})
			handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", nil)
			if tc.provided != "" {
				req.Header.Set("X-Internal-Api-Key", tc.provided)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}
