package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	h := Handler()

	tests := []struct {
		name     string
		path     string
		wantCode int
		contains string
	}{
		{name: "root serves index", path: "/", wantCode: http.StatusOK, contains: "Moltbook Dashboard"},
		{name: "asset", path: "/app.js", wantCode: http.StatusOK, contains: "connectEvents"},
		{name: "client route falls back", path: "/profile", wantCode: http.StatusOK, contains: "Moltbook Dashboard"},
		{name: "unknown api path", path: "/api/nope", wantCode: http.StatusNotFound, contains: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %q", tt.contains)
			}
		})
	}
}
