package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireOperatorToken(t *testing.T) {
	handlerCalled := false
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	protectedHandler := RequireOperatorToken("op-secret")(testHandler)

	tests := []struct {
		name   string
		header string
		query  string
		status int
		called bool
	}{
		{"valid bearer", "Bearer op-secret", "", http.StatusOK, true},
		{"query token for event stream", "", "?access_token=op-secret", http.StatusOK, true},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized, false},
		{"missing", "", "", http.StatusUnauthorized, false},
		{"wrong scheme", "Basic op-secret", "", http.StatusUnauthorized, false},
		{"empty bearer", "Bearer ", "", http.StatusUnauthorized, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handlerCalled = false
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/v1/capture"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			protectedHandler.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Errorf("Status = %d, want %d", w.Code, tc.status)
			}
			if handlerCalled != tc.called {
				t.Errorf("handler called = %v, want %v", handlerCalled, tc.called)
			}
			if tc.status == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestRequireOperatorToken_Disabled(t *testing.T) {
	handlerCalled := false
	h := RequireOperatorToken("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/capture/mark", nil))
	if !handlerCalled {
		t.Error("expected requests to pass when no operator token is configured")
	}
}
