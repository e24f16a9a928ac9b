package align

import (
	"math"

	"github.com/readpace/readpace/pkg/text"
)

// Search parameter bounds. Values outside these ranges are clamped rather
// than rejected so a bad config can degrade quality but never stop tracking.
const (
	minBeamWidth = 2
	maxBeamWidth = 10

	minLookahead = 5
	maxLookahead = 20

	defaultBeamWidth      = 5
	defaultMatchThreshold = 0.7
	defaultAdvanceMargin  = 0.2
	defaultLookahead      = 8
	defaultPhoneticWeight = 0.3
)

// Option configures an [Aligner]. Options are applied both at construction
// and live through [Aligner.Configure].
type Option func(*Aligner)

// WithBeamWidth sets the maximum number of hypotheses retained after each
// expansion, clamped to [2, 10].
func WithBeamWidth(n int) Option {
	return func(a *Aligner) {
		a.beamWidth = clampInt(n, minBeamWidth, maxBeamWidth)
	}
}

// WithMatchThreshold sets the similarity at or above which a spoken word is
// considered a match for a reference token, clamped to [0, 1]. Non-finite
// values are ignored.
func WithMatchThreshold(t float64) Option {
	return func(a *Aligner) {
		if !isFinite(t) {
			return
		}
		a.matchThreshold = clampFloat(t, 0, 1)
	}
}

// WithAdvanceMargin sets the cost margin within which a rival hypothesis
// counts as competitive with the best one, clamped to [0, 1]. Non-finite
// values are ignored.
func WithAdvanceMargin(m float64) Option {
	return func(a *Aligner) {
		if !isFinite(m) {
			return
		}
		a.advanceMargin = clampFloat(m, 0, 1)
	}
}

// WithLookaheadWindow sets how many word tokens ahead of a hypothesis are
// examined as alignment candidates, clamped to [5, 20].
func WithLookaheadWindow(n int) Option {
	return func(a *Aligner) {
		a.lookahead = clampInt(n, minLookahead, maxLookahead)
	}
}

// WithPhonetic toggles phonetic similarity blending.
func WithPhonetic(enabled bool) Option {
	return func(a *Aligner) {
		a.scorer.SetPhonetic(enabled, a.scorer.Weight())
	}
}

// WithPhoneticWeight sets the phonetic blend weight, clamped to [0, 1].
// Non-finite values are ignored.
func WithPhoneticWeight(w float64) Option {
	return func(a *Aligner) {
		if !isFinite(w) {
			return
		}
		a.scorer.SetPhonetic(a.scorer.Enabled(), w)
	}
}

// WithListener registers a listener notified of token markings, pointer
// movement, and annotations as paths commit.
func WithListener(l text.Listener) Option {
	return func(a *Aligner) {
		if l != nil {
			a.listener = l
		}
	}
}

// WithDecisionSink registers a callback invoked once per committed match,
// substitution, or deletion step. Insertions consume spoken words without
// touching the reference text and produce no decision.
func WithDecisionSink(sink DecisionSink) Option {
	return func(a *Aligner) {
		a.decisions = sink
	}
}

// WithCommitHook registers a callback invoked after each commit has been
// fully applied.
func WithCommitHook(hook func()) Option {
	return func(a *Aligner) {
		a.onCommit = hook
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
