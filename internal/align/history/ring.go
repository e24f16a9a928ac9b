// Package history keeps a fixed-capacity record of recent alignment
// decisions. The ring buffer backs the drift detection in the backtrack
// controller and the manual "go back one word" action, so overwrite-oldest
// and undo-last semantics must be exact — see the round-trip tests.
package history

import "time"

// Outcome classifies how a reference token was resolved.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeSkipped   Outcome = "skipped"
)

// Decision records one committed alignment step against a reference token.
type Decision struct {
	// TokenIndex is the document index of the token that was marked.
	TokenIndex int

	// Outcome is how the token was resolved.
	Outcome Outcome

	// At is when the decision was committed.
	At time.Time

	// Expected is the normalized reference word.
	Expected string

	// Heard is the normalized spoken word, empty for skipped tokens.
	Heard string

	// Automatic is true when the decision was produced by the aligner
	// rather than a manual user action.
	Automatic bool
}

// Ring is a fixed-capacity circular buffer of [Decision] values. When full,
// a push overwrites the logically oldest entry. The zero value is not
// usable; construct with [NewRing].
//
// Ring is not safe for concurrent use; the session controller serialises
// access.
type Ring struct {
	buf   []Decision
	start int // index of the oldest stored decision
	count int

	// evicted saves the record displaced by the most recent wrapping push
	// so that UndoLast can reverse that push exactly.
	evicted      Decision
	evictedValid bool
}

// NewRing creates a ring buffer holding at most capacity decisions.
// Capacities below 1 are raised to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Decision, capacity)}
}

// Capacity returns the fixed capacity.
func (r *Ring) Capacity() int { return len(r.buf) }

// Count returns the number of decisions currently stored.
func (r *Ring) Count() int { return r.count }

// Push appends d, overwriting the oldest decision when the buffer is full.
func (r *Ring) Push(d Decision) {
	pos := (r.start + r.count) % len(r.buf)
	if r.count == len(r.buf) {
		r.evicted = r.buf[pos]
		r.evictedValid = true
		r.buf[pos] = d
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[pos] = d
	r.count++
	r.evictedValid = false
}

// Recent returns the last min(k, Count) decisions in chronological order,
// oldest of the requested window first. Asking for more decisions than are
// stored returns everything.
func (r *Ring) Recent(k int) []Decision {
	if k > r.count {
		k = r.count
	}
	if k <= 0 {
		return nil
	}
	out := make([]Decision, k)
	first := r.start + r.count - k
	for i := range k {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}

// UndoLast removes and returns the most recently pushed decision, exactly
// reversing the preceding Push. When that push had wrapped a full buffer,
// the oldest pointer moves backward and the displaced record is restored
// from the eviction slot, so contents and count match the pre-push state.
// Returns false when the buffer is empty.
func (r *Ring) UndoLast() (Decision, bool) {
	if r.count == 0 {
		return Decision{}, false
	}
	pos := (r.start + r.count - 1) % len(r.buf)
	d := r.buf[pos]
	if r.evictedValid {
		// The newest entry sits in the slot the wrapping push reclaimed;
		// put the displaced record back and rewind the oldest pointer.
		r.buf[pos] = r.evicted
		r.start = (r.start - 1 + len(r.buf)) % len(r.buf)
		r.evictedValid = false
		return d, true
	}
	r.buf[pos] = Decision{}
	r.count--
	return d, true
}

// Clear empties the buffer.
func (r *Ring) Clear() {
	clear(r.buf)
	r.start = 0
	r.count = 0
	r.evictedValid = false
}
