// Package backtrack watches the recent decision history for drift — a
// stretch of misreads or skips suggesting the tracked position no longer
// matches where the reader actually is — and proposes rolling the pointer
// back to the last reliable point.
package backtrack

import (
	"math"

	"github.com/readpace/readpace/internal/align/history"
)

// Window and cost constants. A run of three or more consecutive non-correct
// decisions is the strongest drift signal and is surcharged per run length.
const (
	minWindow     = 4
	maxWindow     = 20
	defaultWindow = 8

	defaultThreshold = 2.0

	// Per-decision costs in tenths. Accumulating integers keeps a window
	// whose nominal cost equals the threshold from drifting past it in
	// float arithmetic; the boundary comparison is strict.
	correctTenths   = 1
	skippedTenths   = 5
	incorrectTenths = 10

	runSurchargeTenths = 5
	runMinLength       = 3
)

// Rollback instructs the caller to move the committed pointer back to the
// token at TargetTokenIndex and reset the statuses leading up to it.
type Rollback struct {
	TargetTokenIndex int
}

// Option configures a [Controller].
type Option func(*Controller)

// WithWindow sets how many recent decisions are inspected, clamped to
// [4, 20].
func WithWindow(n int) Option {
	return func(c *Controller) {
		if n < minWindow {
			n = minWindow
		}
		if n > maxWindow {
			n = maxWindow
		}
		c.window = n
	}
}

// WithThreshold sets the drift cost above which a rollback fires. Values
// that are not positive finite reals are ignored.
func WithThreshold(t float64) Option {
	return func(c *Controller) {
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return
		}
		c.threshold = t
	}
}

// Controller evaluates drift over a sliding window of decisions.
type Controller struct {
	window    int
	threshold float64
}

// New returns a Controller with an 8-decision window and a 2.0 threshold.
func New(opts ...Option) *Controller {
	c := &Controller{window: defaultWindow, threshold: defaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the number of decisions the controller inspects.
func (c *Controller) Window() int { return c.window }

// Threshold returns the drift cost above which a rollback fires.
func (c *Controller) Threshold() float64 { return c.threshold }

// Evaluate inspects the most recent decisions in ring and proposes a
// rollback when the drift cost strictly exceeds the threshold. Until the
// ring holds a full window of history it always defers.
func (c *Controller) Evaluate(ring *history.Ring) (Rollback, bool) {
	if ring.Count() < c.window {
		return Rollback{}, false
	}
	recent := ring.Recent(c.window)
	if DriftCost(recent) <= c.threshold {
		return Rollback{}, false
	}
	return Rollback{TargetTokenIndex: target(recent)}, true
}

// Force proposes a rollback from whatever history the ring currently
// holds, bypassing both the window requirement and the threshold. Used for
// explicit user-driven correction. Returns false only when the ring is
// empty.
func (c *Controller) Force(ring *history.Ring) (Rollback, bool) {
	if ring.Count() == 0 {
		return Rollback{}, false
	}
	return Rollback{TargetTokenIndex: target(ring.Recent(c.window))}, true
}

// DriftCost computes the scalar drift cost of a chronological decision
// window: 0.1 per correct, 0.5 per skipped, 1.0 per incorrect, plus 0.5
// per decision in every maximal run of three or more consecutive
// non-correct decisions. The sum is carried in integer tenths so a window
// whose nominal cost equals the threshold compares exactly equal.
func DriftCost(recent []history.Decision) float64 {
	tenths := 0
	run := 0
	for _, d := range recent {
		switch d.Outcome {
		case history.OutcomeCorrect:
			tenths += correctTenths
			if run >= runMinLength {
				tenths += runSurchargeTenths * run
			}
			run = 0
		case history.OutcomeSkipped:
			tenths += skippedTenths
			run++
		case history.OutcomeIncorrect:
			tenths += incorrectTenths
			run++
		}
	}
	if run >= runMinLength {
		tenths += runSurchargeTenths * run
	}
	return float64(tenths) / 10
}

// target picks the rollback destination: the token of the most recent
// correct decision in the window, or the window's oldest token when the
// reader got nothing right.
func target(recent []history.Decision) int {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Outcome == history.OutcomeCorrect {
			return recent[i].TokenIndex
		}
	}
	return recent[0].TokenIndex
}
