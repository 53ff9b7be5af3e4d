package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		origin         string
		preflight      bool
		wantStatus     int
		wantHeader     string
	}{
		{"no origins configured", nil, "https://example.com", false, http.StatusOK, ""},
		{"allowed origin", []string{"https://example.com"}, "https://example.com", false, http.StatusOK, "https://example.com"},
		{"disallowed preflight", []string{"https://example.com"}, "https://evil.com", true, http.StatusForbidden, ""},
		{"allowed preflight", []string{"https://example.com"}, "https://example.com", true, http.StatusNoContent, "https://example.com"},
		{"case insensitive", []string{"HTTPS://EXAMPLE.COM"}, "https://example.com", false, http.StatusOK, "https://example.com"},
		{"no origin header", []string{"https://example.com"}, "", false, http.StatusOK, ""},
		{"wildcard subdomain", []string{"*.example.com"}, "https://app.example.com", false, http.StatusOK, "https://app.example.com"},
		{"wildcard is not a suffix match", []string{"*.example.com"}, "https://notexample.com", false, http.StatusOK, ""},
		{"wildcard excludes apex", []string{"*.example.com"}, "https://.example.com", false, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowedOrigins

			handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORSPreflightHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://example.com"}

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/recipe/recipes", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	for _, h := range []string{"Access-Control-Allow-Methods", "Access-Control-Allow-Headers", "Access-Control-Max-Age"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("%s not set on preflight", h)
		}
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("credentials must not be allowed, got %q", got)
	}
}
