package align

import "github.com/readpace/readpace/pkg/text"

// StepKind tags a single alignment step within a hypothesis path.
type StepKind string

const (
	// StepMatch aligns a spoken word with a reference token it matched.
	StepMatch StepKind = "match"

	// StepSubstitution aligns a spoken word with a reference token it did
	// not match; committing it marks the token incorrect.
	StepSubstitution StepKind = "substitution"

	// StepDeletion skips a reference token no spoken word accounted for.
	StepDeletion StepKind = "deletion"

	// StepInsertion consumes a spoken word with no reference counterpart
	// (disfluencies, repeated words). No token is marked.
	StepInsertion StepKind = "insertion"
)

// Step is one edit operation in a hypothesis path. WordPos is the position
// of the touched token in the word-bearing subsequence, -1 for insertions.
// Word is the normalized spoken word, empty for deletions.
type Step struct {
	Kind    StepKind
	WordPos int
	Word    string
	Cost    float64
}

// hypothesis is one candidate alignment in the beam: a text position over
// the word-bearing token subsequence, a count of spoken words consumed from
// the pending stream, the cumulative cost, and the step path that produced
// both. Hypotheses are immutable once in the beam; extension copies.
type hypothesis struct {
	textPos   int
	spokenPos int
	cost      float64
	path      []Step
}

// extend returns a copy of h advanced by the given steps, text delta, and
// spoken delta. The path slice is copied so sibling hypotheses never alias.
func (h hypothesis) extend(textDelta, spokenDelta int, steps ...Step) hypothesis {
	next := hypothesis{
		textPos:   h.textPos + textDelta,
		spokenPos: h.spokenPos + spokenDelta,
		cost:      h.cost,
		path:      make([]Step, len(h.path), len(h.path)+len(steps)),
	}
	copy(next.path, h.path)
	for _, s := range steps {
		next.cost += s.Cost
		next.path = append(next.path, s)
	}
	return next
}

// lastKind returns the kind of the hypothesis's final step, or "" for the
// seed hypothesis. Used to keep match and substitution twins distinct when
// deduplicating the candidate set.
func (h hypothesis) lastKind() StepKind {
	if len(h.path) == 0 {
		return ""
	}
	return h.path[len(h.path)-1].Kind
}

// spokenWord is a buffered spoken word with its phonetic codes, computed
// once when the word enters the pending stream.
type spokenWord struct {
	word  string
	codes text.PhoneticCodes
}
