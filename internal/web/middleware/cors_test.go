package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORS([]string{"https://attendance.example.com", " "})(next)

	tests := []struct {
		name        string
		method      string
		origin      string
		wantAllowed bool
		wantStatus  int
	}{
		{"whitelisted", "GET", "https://attendance.example.com", true, http.StatusTeapot},
		{"localhost with port", "GET", "http://localhost:5173", true, http.StatusTeapot},
		{"loopback", "GET", "http://127.0.0.1:8080", true, http.StatusTeapot},
		{"localhost lookalike", "GET", "http://localhost.evil.com", false, http.StatusTeapot},
		{"foreign", "GET", "https://evil.com", false, http.StatusTeapot},
		{"no origin", "GET", "", false, http.StatusTeapot},
		{"preflight", "OPTIONS", "http://localhost:3000", true, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/attendance", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()

			h.ServeHTTP(recorder, req)

			got := recorder.Header().Get("Access-Control-Allow-Origin")
			if tc.wantAllowed && got != tc.origin {
				t.Errorf("expected origin %q to be allowed, got %q", tc.origin, got)
			}
			if !tc.wantAllowed && got != "" {
				t.Errorf("expected no CORS origin header, got %q", got)
			}
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()

	h.ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

	for _, header := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if recorder.Header().Get(header) == "" {
			t.Errorf("expected %s to be set", header)
		}
	}
}
