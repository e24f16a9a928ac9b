// Package align implements the online beam-search aligner that tracks a
// reader's position in a reference text from noisy speech-recognition
// phrases. Alignment is incremental: each final phrase is folded into a
// persistent beam of hypotheses, and a path is committed to the document
// only once the search considers it settled.
package align

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/readpace/readpace/internal/align/history"
	"github.com/readpace/readpace/internal/align/similarity"
	"github.com/readpace/readpace/internal/tokenize"
	"github.com/readpace/readpace/pkg/text"
)

// Alignment step costs. An insertion followed by a deletion (0.3 + 0.5)
// deliberately lands on the average substitution cost for dissimilar words,
// so neither explanation of a misread word dominates on cost alone.
const (
	deletionCost        = 0.5
	fillerInsertionCost = 0.1
	insertionCost       = 0.3
)

// commitJumpTokens is the pointer advance beyond which a cheap best
// hypothesis commits even when rivals remain competitive.
const commitJumpTokens = 2

// fillers are spoken disfluencies that insert at reduced cost.
var fillers = map[string]struct{}{
	"uh": {}, "um": {}, "er": {}, "ah": {}, "eh": {}, "mm": {}, "hmm": {},
}

// DecisionSink receives one record per committed token marking.
type DecisionSink func(history.Decision)

// Aligner matches a stream of recognized phrases against a fixed reference
// document. It is not safe for concurrent use; callers serialize access
// (see the session package).
type Aligner struct {
	doc    *text.Document
	scorer *similarity.Scorer

	beamWidth      int
	matchThreshold float64
	advanceMargin  float64
	lookahead      int

	listener  text.Listener
	decisions DecisionSink
	onCommit  func()

	// pointer is the committed position in the word-bearing token
	// subsequence: the next word expected from the reader.
	pointer int

	beam    []hypothesis
	pending []spokenWord
}

// New returns an Aligner over doc positioned at the first word token.
func New(doc *text.Document, opts ...Option) *Aligner {
	a := &Aligner{
		doc:            doc,
		scorer:         similarity.NewScorer(false, defaultPhoneticWeight),
		beamWidth:      defaultBeamWidth,
		matchThreshold: defaultMatchThreshold,
		advanceMargin:  defaultAdvanceMargin,
		lookahead:      defaultLookahead,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.beam = []hypothesis{{textPos: a.pointer}}
	return a
}

// Configure applies options to a live Aligner. Out-of-range values clamp
// and non-finite values are ignored, so reconfiguration never fails and
// never disturbs the beam or the pointer.
func (a *Aligner) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(a)
	}
}

// Pointer returns the committed position in the word-bearing subsequence.
func (a *Aligner) Pointer() int { return a.pointer }

// Document returns the reference document being tracked.
func (a *Aligner) Document() *text.Document { return a.doc }

// SetPointer moves the committed pointer to word position pos, clamped to
// [0, word count], discarding the current beam and any buffered spoken
// words. Uncommitted hypotheses are dropped without marking anything.
func (a *Aligner) SetPointer(pos int) {
	a.pointer = clampInt(pos, 0, a.doc.WordCount())
	a.beam = []hypothesis{{textPos: a.pointer}}
	a.pending = a.pending[:0]
	a.notifyPointer()
}

// ConsumePhrase folds one final recognized phrase into the beam. The phrase
// is split on whitespace and normalized; empty results are discarded. Each
// surviving word drives one beam expansion, and a single commit decision is
// taken once every buffered word has been folded in. Returns the number of
// words fed to the search; zero means the phrase was a no-op.
func (a *Aligner) ConsumePhrase(phrase string) int {
	fed := 0
	for _, field := range strings.Fields(phrase) {
		norm := tokenize.Normalize(field)
		if norm == "" {
			continue
		}
		primary, secondary := matchr.DoubleMetaphone(norm)
		a.pending = append(a.pending, spokenWord{
			word:  norm,
			codes: text.PhoneticCodes{Primary: primary, Secondary: secondary},
		})
		fed++
	}
	if fed == 0 {
		return 0
	}
	for i := 0; i < fed; i++ {
		a.expand()
	}
	a.maybeCommit()
	a.compactPending()
	return fed
}

// expand grows every live hypothesis by one spoken word (hypotheses that
// have already consumed the whole pending stream carry over unchanged),
// then prunes the candidate set back to the beam width.
func (a *Aligner) expand() {
	candidates := make([]hypothesis, 0, len(a.beam)*(a.lookahead+2))
	for _, h := range a.beam {
		if h.spokenPos >= len(a.pending) {
			candidates = append(candidates, h)
			continue
		}
		candidates = a.successors(candidates, h, a.pending[h.spokenPos])
	}
	a.beam = a.prune(candidates)
}

// successors appends every successor of h for the spoken word w.
//
// Matching a candidate d words ahead bundles d deletion steps, so a
// committed path accounts for every token the pointer travels over. The
// insertion and standalone-deletion successors are generated
// unconditionally (only match is gated, on the threshold): a word that
// also appears just ahead in the text may still be an extra, as when a
// reader repeats themselves, and commit settles which reading wins.
func (a *Aligner) successors(out []hypothesis, h hypothesis, w spokenWord) []hypothesis {
	for d := 0; d < a.lookahead; d++ {
		tok := a.doc.Word(h.textPos + d)
		if tok == nil {
			break
		}
		sim := a.scorer.Score(w.word, w.codes, tok.Normalized, tok.Phonetic)
		steps := make([]Step, 0, d+1)
		for i := 0; i < d; i++ {
			steps = append(steps, Step{Kind: StepDeletion, WordPos: h.textPos + i, Cost: deletionCost})
		}
		if sim >= a.matchThreshold {
			ms := append(steps[:len(steps):len(steps)],
				Step{Kind: StepMatch, WordPos: h.textPos + d, Word: w.word, Cost: 1 - sim})
			out = append(out, h.extend(d+1, 1, ms...))
		}
		ss := append(steps[:len(steps):len(steps)],
			Step{Kind: StepSubstitution, WordPos: h.textPos + d, Word: w.word, Cost: 1 - sim})
		out = append(out, h.extend(d+1, 1, ss...))
	}
	if a.doc.Word(h.textPos) != nil {
		out = append(out, h.extend(1, 0,
			Step{Kind: StepDeletion, WordPos: h.textPos, Cost: deletionCost}))
	}
	cost := insertionCost
	if _, ok := fillers[w.word]; ok {
		cost = fillerInsertionCost
	}
	out = append(out, h.extend(0, 1,
		Step{Kind: StepInsertion, WordPos: -1, Word: w.word, Cost: cost}))
	return out
}

// prune orders candidates by ascending cost (ties prefer more text
// progress, then shorter paths), collapses duplicates that reach the same
// state through the same final operation, and keeps at most beamWidth.
func (a *Aligner) prune(candidates []hypothesis) []hypothesis {
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.cost != cj.cost {
			return ci.cost < cj.cost
		}
		if ci.textPos != cj.textPos {
			return ci.textPos > cj.textPos
		}
		return len(ci.path) < len(cj.path)
	})

	type beamKey struct {
		textPos   int
		spokenPos int
		last      StepKind
	}
	seen := make(map[beamKey]struct{}, a.beamWidth)
	kept := candidates[:0]
	for _, c := range candidates {
		key := beamKey{c.textPos, c.spokenPos, c.lastKind()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
		if len(kept) == a.beamWidth {
			break
		}
	}
	return kept
}

// maybeCommit applies the best hypothesis's path when the search has
// settled: either the best is unambiguous (no rival within advanceMargin
// near its text position), or it has pulled far enough ahead of the
// committed pointer while staying cheap relative to the beam size.
func (a *Aligner) maybeCommit() {
	if len(a.beam) == 0 {
		return
	}
	best := a.beam[0]
	competitive := 0
	for _, h := range a.beam {
		if abs(h.textPos-best.textPos) <= 1 && h.cost-best.cost <= a.advanceMargin {
			competitive++
		}
	}
	jumped := best.textPos-a.pointer > commitJumpTokens &&
		best.cost < 0.5*float64(len(a.beam))
	if competitive != 1 && !jumped {
		return
	}

	a.apply(best.path)
	a.pointer = best.textPos
	a.pending = a.pending[best.spokenPos:]
	a.beam = []hypothesis{{textPos: a.pointer}}
	a.notifyPointer()
	if a.onCommit != nil {
		a.onCommit()
	}
}

// apply marks every token the path touches and emits one decision per
// marking. Insertions consumed a spoken word only and mark nothing.
func (a *Aligner) apply(path []Step) {
	now := time.Now()
	for _, step := range path {
		if step.Kind == StepInsertion {
			continue
		}
		tok := a.doc.Word(step.WordPos)
		if tok == nil {
			continue
		}
		var status text.Status
		var outcome history.Outcome
		var annotation string
		switch step.Kind {
		case StepMatch:
			status, outcome = text.StatusCorrect, history.OutcomeCorrect
		case StepSubstitution:
			status, outcome = text.StatusIncorrect, history.OutcomeIncorrect
			annotation = fmt.Sprintf("Error: substitution / Expected: %s / Heard: %s", tok.Text, step.Word)
		case StepDeletion:
			status, outcome = text.StatusSkipped, history.OutcomeSkipped
			annotation = fmt.Sprintf("Skipped: %s", tok.Text)
		}
		a.doc.SetStatus(tok.Index, status)
		if a.listener != nil {
			a.listener.TokenStatusChanged(tok.Index, status)
			a.listener.TokenAnnotated(tok.Index, annotation)
		}
		if a.decisions != nil {
			a.decisions(history.Decision{
				TokenIndex: tok.Index,
				Outcome:    outcome,
				At:         now,
				Expected:   tok.Text,
				Heard:      step.Word,
				Automatic:  true,
			})
		}
	}
}

// compactPending drops the prefix of the spoken-word buffer that every
// live hypothesis has consumed; those words can never be revisited.
func (a *Aligner) compactPending() {
	if len(a.pending) == 0 {
		return
	}
	drop := len(a.pending)
	for _, h := range a.beam {
		if h.spokenPos < drop {
			drop = h.spokenPos
		}
	}
	if drop == 0 {
		return
	}
	a.pending = a.pending[drop:]
	for i := range a.beam {
		a.beam[i].spokenPos -= drop
	}
}

// notifyPointer reports the pointer as a token index, or -1 once the
// reader is past the final word.
func (a *Aligner) notifyPointer() {
	if a.listener == nil {
		return
	}
	tok := a.doc.Word(a.pointer)
	if tok == nil {
		a.listener.PointerMoved(-1)
		return
	}
	a.listener.PointerMoved(tok.Index)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
