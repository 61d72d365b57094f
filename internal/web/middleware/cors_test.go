package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.org", " https://admin.example.org", ""})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name       string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"whitelisted", "https://app.example.org", http.MethodPost, "https://app.example.org", http.StatusTeapot},
		{"localhost", "http://localhost:5173", http.MethodGet, "http://localhost:5173", http.StatusTeapot},
		{"unknown", "https://evil.example.com", http.MethodGet, "", http.StatusTeapot},
		{"localhost lookalike", "http://localhost.evil.com", http.MethodGet, "", http.StatusTeapot},
		{"no origin", "", http.MethodGet, "", http.StatusTeapot},
		{"preflight", "https://admin.example.org", http.MethodOptions, "https://admin.example.org", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/face/login", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders()(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options not set")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options not set")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("Cache-Control not set")
	}
}
