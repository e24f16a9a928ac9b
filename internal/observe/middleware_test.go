package observe_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/readpace/readpace/internal/observe"
)

func TestMiddlewareRecordsStatus(t *testing.T) {
	t.Parallel()
	h := observe.Middleware(observe.DefaultMetrics())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/progress", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d propagated", rec.Code, http.StatusTeapot)
	}
}

// The WebSocket upgrade hijacks the connection through
// http.ResponseController, which reaches the real writer via Unwrap. A
// wrapper without it turns every GET /ws into a 501.
func TestMiddlewareWriterUnwrapsForHijack(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	var unwrapped http.ResponseWriter

	h := observe.Middleware(observe.DefaultMetrics())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			u, ok := w.(interface{ Unwrap() http.ResponseWriter })
			if !ok {
				t.Fatal("wrapped writer has no Unwrap method")
			}
			unwrapped = u.Unwrap()
		}))

	h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	if unwrapped != rec {
		t.Errorf("Unwrap() = %v, want the underlying writer", unwrapped)
	}
}
