// Package health serves the tracker's liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP at all.
// /readyz answers 200 only while every registered dependency probe
// passes: a deployment with an archive database configured registers a
// "database" checker, so an unreachable Postgres takes the instance out
// of rotation without killing the in-memory reading session.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// readyTimeout bounds a single dependency probe. A probe that cannot
// answer in this time is reported as failed rather than holding /readyz
// open.
const readyTimeout = 5 * time.Second

// Checker is one named dependency probe. Check returns nil while the
// dependency is usable and must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// result is the probe response body: "ok" or "fail" overall, plus the
// per-checker outcomes on /readyz.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers both probes. The checker set is fixed at construction,
// so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New returns a Handler probing the given checkers, in order, on each
// /readyz request. No checkers means /readyz mirrors /healthz.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz is the liveness probe; it always answers ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every checker under a [readyTimeout] deadline and reports
// 503 with the failing probes named when any of them errors.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK

	for _, c := range h.checkers {
		if err := h.probe(r.Context(), c); err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

func (h *Handler) probe(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return c.Check(ctx)
}

// Register adds both probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
