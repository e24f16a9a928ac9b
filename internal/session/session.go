// Package session owns the mutable state of one live reading session: the
// tokenized reference document, the beam-search aligner tracking the
// reader, the decision history, and the auto-backtrack controller. All
// mutation funnels through the Session mutex, so a session can be driven
// concurrently by a speech pipeline and a control surface.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/readpace/readpace/internal/align"
	"github.com/readpace/readpace/internal/align/backtrack"
	"github.com/readpace/readpace/internal/align/history"
	"github.com/readpace/readpace/internal/observe"
	"github.com/readpace/readpace/pkg/text"
)

const defaultHistoryCapacity = 32

// Option configures a [Session].
type Option func(*Session)

// WithID sets the session identifier used in logs and archival.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithListener registers the external listener notified of every token
// marking, pointer move, annotation, and rollback. Callbacks run
// synchronously under the session lock and must not call back in.
func WithListener(l text.Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithAlignOptions forwards options to the aligner.
func WithAlignOptions(opts ...align.Option) Option {
	return func(s *Session) { s.alignOpts = append(s.alignOpts, opts...) }
}

// WithBacktrackOptions forwards options to the backtrack controller.
func WithBacktrackOptions(opts ...backtrack.Option) Option {
	return func(s *Session) { s.btOpts = append(s.btOpts, opts...) }
}

// WithHistoryCapacity sets the decision ring capacity.
func WithHistoryCapacity(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to the process-wide
// instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Session tracks one reader through one document.
type Session struct {
	mu sync.Mutex

	id  string
	doc *text.Document
	log *slog.Logger

	aligner    *align.Aligner
	ring       *history.Ring
	controller *backtrack.Controller

	listener text.Listener
	metrics  *observe.Metrics

	alignOpts  []align.Option
	btOpts     []backtrack.Option
	historyCap int

	startedAt  time.Time
	phrases    int
	wordsHeard int

	// journal is the unbounded decision log kept for archival; the ring
	// only holds the recent window the drift check needs.
	journal []history.Decision

	// currentIdx is the token index currently highlighted as the
	// reader's position, -1 when none.
	currentIdx int
}

// New returns a Session over doc, positioned at the first word.
func New(doc *text.Document, opts ...Option) *Session {
	s := &Session{
		id:         "default",
		doc:        doc,
		log:        slog.Default(),
		historyCap: defaultHistoryCapacity,
		startedAt:  time.Now(),
		currentIdx: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.ring = history.NewRing(s.historyCap)
	s.controller = backtrack.New(s.btOpts...)

	core := &coreListener{s: s}
	alignOpts := append([]align.Option{
		align.WithListener(core),
		align.WithDecisionSink(s.recordDecision),
		align.WithCommitHook(s.afterCommit),
	}, s.alignOpts...)
	s.aligner = align.New(doc, alignOpts...)
	s.metrics.SessionStarted()

	s.mu.Lock()
	s.moveCurrent(s.pointerToken())
	s.mu.Unlock()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Document returns the session's reference document.
func (s *Session) Document() *text.Document { return s.doc }

// ConsumePhrase feeds one final recognized phrase to the aligner and
// returns the number of words it consumed. The whole round, including any
// commit and automatic backtrack it triggers, runs before the call
// returns.
func (s *Session) ConsumePhrase(phrase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	n := s.aligner.ConsumePhrase(phrase)
	if n == 0 {
		return 0
	}
	s.phrases++
	s.wordsHeard += n
	s.metrics.PhraseProcessed(n, time.Since(start))
	s.log.Debug("phrase consumed",
		"session", s.id, "words", n, "pointer", s.aligner.Pointer())
	return n
}

// Configure applies alignment and backtrack options to the live session.
// Invalid values clamp or are ignored; Configure never fails.
func (s *Session) Configure(alignOpts []align.Option, btOpts []backtrack.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aligner.Configure(alignOpts...)
	for _, opt := range btOpts {
		opt(s.controller)
	}
}

// MarkCurrent manually records an outcome for the word at the pointer and
// advances past it. Used when the reader's companion corrects the tracker
// by hand. A session already past the last word is a no-op.
func (s *Session) MarkCurrent(outcome history.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.aligner.Pointer()
	tok := s.doc.Word(pos)
	if tok == nil {
		return
	}
	var status text.Status
	switch outcome {
	case history.OutcomeCorrect:
		status = text.StatusCorrect
	case history.OutcomeIncorrect:
		status = text.StatusIncorrect
	case history.OutcomeSkipped:
		status = text.StatusSkipped
	default:
		return
	}
	s.doc.SetStatus(tok.Index, status)
	s.notifyStatus(tok.Index, status)
	s.metrics.TokenMarked(string(status))
	d := history.Decision{
		TokenIndex: tok.Index,
		Outcome:    outcome,
		At:         time.Now(),
		Expected:   tok.Text,
		Automatic:  false,
	}
	s.ring.Push(d)
	s.journal = append(s.journal, d)
	s.aligner.SetPointer(pos + 1)
	s.evaluateBacktrack()
}

// UndoLast reverses the most recent decision: the token returns to
// pending and the pointer moves back to it. Empty history is a no-op.
func (s *Session) UndoLast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.ring.UndoLast()
	if !ok {
		return
	}
	pos := s.doc.WordPos(d.TokenIndex)
	if pos < 0 {
		return
	}
	s.doc.SetStatus(d.TokenIndex, text.StatusPending)
	s.notifyStatus(d.TokenIndex, text.StatusPending)
	s.aligner.SetPointer(pos)
	s.log.Debug("decision undone", "session", s.id, "token", d.TokenIndex)
}

// JumpTo moves the pointer to the word token with the given index,
// discarding the beam. Indexes that do not name a word token are ignored.
func (s *Session) JumpTo(tokenIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.doc.WordPos(tokenIndex)
	if pos < 0 {
		return
	}
	s.aligner.SetPointer(pos)
}

// Backtrack forces a rollback from the current decision history without
// waiting for the drift threshold. A session with no history is a no-op.
func (s *Session) Backtrack() {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, ok := s.controller.Force(s.ring)
	if !ok {
		return
	}
	s.applyRollback(rb)
}

// Reset returns every token to pending, clears the history, and moves the
// pointer to the first word.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pos := 0; ; pos++ {
		tok := s.doc.Word(pos)
		if tok == nil {
			break
		}
		if tok.Status != text.StatusPending {
			s.doc.SetStatus(tok.Index, text.StatusPending)
			s.notifyStatus(tok.Index, text.StatusPending)
		}
	}
	s.ring.Clear()
	s.journal = nil
	s.currentIdx = -1
	s.phrases = 0
	s.wordsHeard = 0
	s.startedAt = time.Now()
	s.aligner.SetPointer(0)
}

// Close records the session end. The session must not be used afterwards.
func (s *Session) Close() {
	s.metrics.SessionEnded()
}

// recordDecision is the aligner's decision sink.
func (s *Session) recordDecision(d history.Decision) {
	s.ring.Push(d)
	s.journal = append(s.journal, d)
	s.metrics.TokenMarked(string(statusFor(d.Outcome)))
}

// Decisions returns a copy of every decision committed so far, in order.
func (s *Session) Decisions() []history.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]history.Decision, len(s.journal))
	copy(out, s.journal)
	return out
}

// afterCommit is the aligner's commit hook; runs the drift check.
func (s *Session) afterCommit() {
	s.metrics.CommitRecorded()
	s.evaluateBacktrack()
}

func (s *Session) evaluateBacktrack() {
	rb, ok := s.controller.Evaluate(s.ring)
	if !ok {
		return
	}
	s.applyRollback(rb)
}

// applyRollback resets every word from two before the target through the
// committed pointer back to pending, moves the pointer to the target, and
// clears the history, which a rollback invalidates.
func (s *Session) applyRollback(rb backtrack.Rollback) {
	target := s.doc.WordPos(rb.TargetTokenIndex)
	if target < 0 {
		return
	}
	from := target - 2
	if from < 0 {
		from = 0
	}
	pointer := s.aligner.Pointer()
	for pos := from; pos <= pointer; pos++ {
		tok := s.doc.Word(pos)
		if tok == nil {
			break
		}
		if tok.Status == text.StatusPending {
			continue
		}
		s.doc.SetStatus(tok.Index, text.StatusPending)
		s.notifyStatus(tok.Index, text.StatusPending)
	}
	s.aligner.SetPointer(target)
	s.ring.Clear()
	s.metrics.RollbackRecorded()
	s.log.Info("rollback applied",
		"session", s.id, "target", rb.TargetTokenIndex, "from", from)
	if s.listener != nil {
		if first := s.doc.Word(from); first != nil {
			s.listener.RolledBack(first.Index, rb.TargetTokenIndex)
		}
	}
}

// Progress is a point-in-time summary of a session.
type Progress struct {
	SessionID    string        `json:"sessionId"`
	WordCount    int           `json:"wordCount"`
	Pending      int           `json:"pending"`
	Correct      int           `json:"correct"`
	Incorrect    int           `json:"incorrect"`
	Skipped      int           `json:"skipped"`
	PointerIndex int           `json:"pointerIndex"`
	Phrases      int           `json:"phrases"`
	WordsHeard   int           `json:"wordsHeard"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Accuracy returns the share of resolved words read correctly, or zero
// when nothing has resolved yet.
func (p Progress) Accuracy() float64 {
	resolved := p.Correct + p.Incorrect + p.Skipped
	if resolved == 0 {
		return 0
	}
	return float64(p.Correct) / float64(resolved)
}

// Progress returns a snapshot of the session state.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Progress{
		SessionID:    s.id,
		WordCount:    s.doc.WordCount(),
		PointerIndex: s.pointerToken(),
		Phrases:      s.phrases,
		WordsHeard:   s.wordsHeard,
		Elapsed:      time.Since(s.startedAt),
	}
	for pos := 0; ; pos++ {
		tok := s.doc.Word(pos)
		if tok == nil {
			break
		}
		switch tok.Status {
		case text.StatusCorrect:
			p.Correct++
		case text.StatusIncorrect:
			p.Incorrect++
		case text.StatusSkipped:
			p.Skipped++
		default:
			p.Pending++
		}
	}
	return p
}

// pointerToken returns the token index at the committed pointer, -1 when
// the reader is past the last word.
func (s *Session) pointerToken() int {
	tok := s.doc.Word(s.aligner.Pointer())
	if tok == nil {
		return -1
	}
	return tok.Index
}

// moveCurrent shifts the current-word highlight to token index idx.
func (s *Session) moveCurrent(idx int) {
	if s.currentIdx == idx {
		return
	}
	if prev := s.currentIdx; prev >= 0 {
		toks := s.doc.Tokens()
		if prev < len(toks) && toks[prev].Status == text.StatusCurrent {
			s.doc.SetStatus(prev, text.StatusPending)
			s.notifyStatus(prev, text.StatusPending)
		}
	}
	s.currentIdx = idx
	if idx >= 0 {
		toks := s.doc.Tokens()
		if idx < len(toks) && toks[idx].Status == text.StatusPending {
			s.doc.SetStatus(idx, text.StatusCurrent)
			s.notifyStatus(idx, text.StatusCurrent)
		}
	}
}

func (s *Session) notifyStatus(idx int, status text.Status) {
	if s.listener != nil {
		s.listener.TokenStatusChanged(idx, status)
	}
}

func statusFor(o history.Outcome) text.Status {
	switch o {
	case history.OutcomeCorrect:
		return text.StatusCorrect
	case history.OutcomeIncorrect:
		return text.StatusIncorrect
	default:
		return text.StatusSkipped
	}
}

// coreListener receives the aligner's notifications while the session
// lock is held and fans them out to the external listener.
type coreListener struct {
	s *Session
}

var _ text.Listener = (*coreListener)(nil)

func (c *coreListener) TokenStatusChanged(idx int, status text.Status) {
	c.s.notifyStatus(idx, status)
}

func (c *coreListener) TokenAnnotated(idx int, annotation string) {
	if c.s.listener != nil {
		c.s.listener.TokenAnnotated(idx, annotation)
	}
}

func (c *coreListener) PointerMoved(idx int) {
	c.s.moveCurrent(idx)
	if c.s.listener != nil {
		c.s.listener.PointerMoved(idx)
	}
}

func (c *coreListener) RolledBack(from, to int) {
	if c.s.listener != nil {
		c.s.listener.RolledBack(from, to)
	}
}
