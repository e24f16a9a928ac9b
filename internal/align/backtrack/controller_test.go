package backtrack_test

import (
	"math"
	"testing"

	"github.com/readpace/readpace/internal/align/backtrack"
	"github.com/readpace/readpace/internal/align/history"
)

func fill(r *history.Ring, outcomes ...history.Outcome) {
	for i, o := range outcomes {
		r.Push(history.Decision{TokenIndex: i * 2, Outcome: o})
	}
}

func TestDriftCost(t *testing.T) {
	t.Parallel()
	cor, inc, skp := history.OutcomeCorrect, history.OutcomeIncorrect, history.OutcomeSkipped

	cases := []struct {
		name     string
		outcomes []history.Outcome
		want     float64
	}{
		{
			name:     "all correct",
			outcomes: []history.Outcome{cor, cor, cor, cor},
			want:     0.4,
		},
		{
			name: "mixed without runs",
			// Alternating misses never build a run of three.
			outcomes: []history.Outcome{skp, cor, skp, cor, skp, cor, cor, cor},
			want:     2.0,
		},
		{
			name:     "run of three incorrect surcharged",
			outcomes: []history.Outcome{inc, inc, inc, cor, cor, cor, cor, cor},
			want:     3*1.0 + 5*0.1 + 0.5*3,
		},
		{
			name:     "trailing run surcharged",
			outcomes: []history.Outcome{cor, cor, cor, cor, skp, inc, inc, inc},
			want:     4*0.1 + 0.5 + 3*1.0 + 0.5*4,
		},
		{
			name:     "two misses do not count as a run",
			outcomes: []history.Outcome{cor, cor, inc, inc, cor, cor, cor, cor},
			want:     6*0.1 + 2*1.0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ds := make([]history.Decision, len(tc.outcomes))
			for i, o := range tc.outcomes {
				ds[i] = history.Decision{Outcome: o}
			}
			got := backtrack.DriftCost(ds)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("DriftCost = %v, want %v", got, tc.want)
			}
		})
	}
}

// A window costing exactly the threshold must not fire: the comparison is
// strict.
func TestEvaluateThresholdBoundary(t *testing.T) {
	t.Parallel()
	cor, skp := history.OutcomeCorrect, history.OutcomeSkipped
	c := backtrack.New()

	atBoundary := history.NewRing(8)
	fill(atBoundary, skp, cor, skp, cor, skp, cor, cor, cor) // cost 2.0 exactly
	if _, ok := c.Evaluate(atBoundary); ok {
		t.Error("Evaluate fired at cost == threshold, want deferred")
	}

	above := history.NewRing(8)
	fill(above, skp, skp, cor, skp, cor, skp, cor, cor) // cost 2.4
	if _, ok := c.Evaluate(above); !ok {
		t.Error("Evaluate deferred above threshold, want fired")
	}
}

func TestEvaluateNeedsFullWindow(t *testing.T) {
	t.Parallel()
	inc := history.OutcomeIncorrect
	c := backtrack.New()

	r := history.NewRing(16)
	fill(r, inc, inc, inc, inc, inc, inc, inc) // seven decisions, heavy drift
	if _, ok := c.Evaluate(r); ok {
		t.Error("Evaluate fired with less than a full window of history")
	}

	r.Push(history.Decision{TokenIndex: 99, Outcome: inc})
	if _, ok := c.Evaluate(r); !ok {
		t.Error("Evaluate deferred with a full drifting window, want fired")
	}
}

func TestEvaluateTargetsMostRecentCorrect(t *testing.T) {
	t.Parallel()
	cor, inc := history.OutcomeCorrect, history.OutcomeIncorrect
	c := backtrack.New()

	r := history.NewRing(8)
	fill(r, cor, cor, cor, inc, inc, inc, inc, inc)
	rb, ok := c.Evaluate(r)
	if !ok {
		t.Fatal("Evaluate deferred, want fired")
	}
	// The third decision (token index 4) is the last correct one.
	if got, want := rb.TargetTokenIndex, 4; got != want {
		t.Errorf("TargetTokenIndex = %d, want %d", got, want)
	}
}

func TestEvaluateTargetsOldestWhenNothingCorrect(t *testing.T) {
	t.Parallel()
	inc := history.OutcomeIncorrect
	c := backtrack.New()

	r := history.NewRing(8)
	fill(r, inc, inc, inc, inc, inc, inc, inc, inc)
	rb, ok := c.Evaluate(r)
	if !ok {
		t.Fatal("Evaluate deferred, want fired")
	}
	if got, want := rb.TargetTokenIndex, 0; got != want {
		t.Errorf("TargetTokenIndex = %d, want oldest %d", got, want)
	}
}

func TestForceBypassesGates(t *testing.T) {
	t.Parallel()
	cor := history.OutcomeCorrect
	c := backtrack.New()

	empty := history.NewRing(8)
	if _, ok := c.Force(empty); ok {
		t.Error("Force on empty history = true, want false")
	}

	r := history.NewRing(8)
	fill(r, cor, cor) // short, zero-drift history
	rb, ok := c.Force(r)
	if !ok {
		t.Fatal("Force = false with history present, want true")
	}
	if got, want := rb.TargetTokenIndex, 2; got != want {
		t.Errorf("TargetTokenIndex = %d, want most recent correct %d", got, want)
	}
}

func TestOptionClamping(t *testing.T) {
	t.Parallel()
	c := backtrack.New(backtrack.WithWindow(100), backtrack.WithThreshold(-3))
	if got := c.Window(); got != 20 {
		t.Errorf("Window() = %d, want clamped to 20", got)
	}
	if got := c.Threshold(); got != 2.0 {
		t.Errorf("Threshold() = %v, want default kept for non-positive input", got)
	}

	c = backtrack.New(backtrack.WithWindow(1), backtrack.WithThreshold(math.NaN()))
	if got := c.Window(); got != 4 {
		t.Errorf("Window() = %d, want clamped to 4", got)
	}
	if got := c.Threshold(); got != 2.0 {
		t.Errorf("Threshold() = %v, want default kept for NaN", got)
	}
}
