package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := CORS([]string{"https://panel.college.edu/", " "})(next)

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"configured origin", "https://panel.college.edu", true},
		{"localhost with port", "http://localhost:5173", true},
		{"loopback ip", "http://127.0.0.1:8080", true},
		{"localhost lookalike", "http://localhost.evil.com", false},
		{"unknown", "https://evil.example", false},
		{"no origin", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/v1/capture", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			h.ServeHTTP(w, req)

			got := w.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Errorf("expected origin %q allowed, got %q", tc.origin, got)
			}
			if !tc.allowed && got != "" {
				t.Errorf("expected origin %q rejected, got %q", tc.origin, got)
			}
			if w.Code != http.StatusNoContent {
				t.Errorf("expected request to reach handler, got %d", w.Code)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/api/v1/capture/mark", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK || called {
		t.Errorf("expected preflight answered without reaching handler, got %d called=%v", w.Code, called)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allowed methods header")
	}
}

func TestAccessLog_KeepsFlusher(t *testing.T) {
	log := zerolog.Nop()
	flushable := false
	h := AccessLog(&log, time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/capture/events", nil))

	if !flushable {
		t.Error("expected wrapped writer to implement http.Flusher")
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("expected status passed through, got %d", w.Code)
	}
}
