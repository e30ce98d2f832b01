package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whomst/internal/log"
)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || len(a) != len("req_")+16 {
		t.Errorf("GenerateRequestID() = %q", a)
	}
	if a == b {
		t.Error("request ids should differ")
	}
}

func TestMiddleware(t *testing.T) {
	m := NewMiddleware(log.Discard(), func(*http.Request) string { return "10.0.0.1" })

	var seenID string
	var seenLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = log.FromContext(r.Context())
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	tests := []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/missing", http.StatusNotFound},
		{"/boom", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.status)
		}
		if seenID == "" || rec.Header().Get(RequestIDHeader) != seenID {
			t.Errorf("%s: request id header %q, context %q", tt.path, rec.Header().Get(RequestIDHeader), seenID)
		}
		if seenLogger == nil || seenLogger.Component() == "unknown" {
			t.Errorf("%s: request logger not attached", tt.path)
		}
	}

	got := m.GetMetrics()
	if got.TotalRequests != 3 || got.ClientErrors != 1 || got.ServerErrors != 1 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(r.Context()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
