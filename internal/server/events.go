package server

import (
	"github.com/readpace/readpace/internal/session"
	"github.com/readpace/readpace/pkg/text"
)

// Event is one message on the live feed. Type selects which of the
// optional payloads is set:
//
//	"snapshot"   — Snapshot, sent once when a client connects or after reset
//	"token"      — Token, a status change
//	"annotation" — Annotation
//	"pointer"    — Pointer
//	"rollback"   — Rollback
//	"progress"   — Progress, sent after every control operation and phrase
type Event struct {
	Type       string            `json:"type"`
	Snapshot   *Snapshot         `json:"snapshot,omitempty"`
	Token      *TokenChange      `json:"token,omitempty"`
	Annotation *Annotation       `json:"annotation,omitempty"`
	Pointer    *Pointer          `json:"pointer,omitempty"`
	Rollback   *Rollback         `json:"rollback,omitempty"`
	Progress   *session.Progress `json:"progress,omitempty"`
}

// TokenView is one reference token as rendered to clients.
type TokenView struct {
	Index  int    `json:"index"`
	IsWord bool   `json:"isWord"`
	Text   string `json:"text"`
	Status string `json:"status"`
}

// Snapshot carries the full document state so a newly connected renderer
// can draw without replaying history.
type Snapshot struct {
	SessionID    string      `json:"sessionId"`
	Tokens       []TokenView `json:"tokens"`
	PointerIndex int         `json:"pointerIndex"`
}

// TokenChange reports a single token status transition.
type TokenChange struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// Annotation carries a human-readable note for a token; empty clears it.
type Annotation struct {
	Index int    `json:"index"`
	Note  string `json:"note"`
}

// Pointer reports the committed reading position, -1 past the last word.
type Pointer struct {
	Index int `json:"index"`
}

// Rollback reports the document index range whose tokens were reset.
type Rollback struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Control is a client request, either over the WebSocket or as an HTTP
// POST body. Op is one of phrase, mark, undo, jump, backtrack, reset.
type Control struct {
	Op string `json:"op"`

	// Text is the transcript for op "phrase".
	Text string `json:"text,omitempty"`

	// Outcome is correct, incorrect or skipped for op "mark".
	Outcome string `json:"outcome,omitempty"`

	// TokenIndex is the jump target for op "jump".
	TokenIndex int `json:"tokenIndex,omitempty"`
}

func snapshotOf(sess *session.Session) *Snapshot {
	tokens := sess.Document().Tokens()
	views := make([]TokenView, len(tokens))
	for i, tok := range tokens {
		views[i] = TokenView{
			Index:  tok.Index,
			IsWord: tok.IsWord,
			Text:   tok.Text,
			Status: string(tok.Status),
		}
	}
	p := sess.Progress()
	return &Snapshot{
		SessionID:    sess.ID(),
		Tokens:       views,
		PointerIndex: p.PointerIndex,
	}
}

func statusEvent(index int, status text.Status) Event {
	return Event{Type: "token", Token: &TokenChange{Index: index, Status: string(status)}}
}
