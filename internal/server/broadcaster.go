package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/readpace/readpace/pkg/text"
)

// clientBuffer is how many pending events a subscriber may lag behind
// before new events are dropped for it.
const clientBuffer = 64

// Compile-time interface check.
var _ text.Listener = (*Broadcaster)(nil)

// Broadcaster fans session events out to any number of WebSocket
// subscribers. It implements [text.Listener] so it can be handed to the
// session directly; every callback becomes one JSON [Event].
//
// Safe for concurrent use.
type Broadcaster struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewBroadcaster returns an empty Broadcaster logging through log.
// A nil logger falls back to [slog.Default].
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		log:  log,
		subs: make(map[chan []byte]struct{}),
	}
}

// Subscribe registers a new event channel. The caller must drain it and
// call the returned cancel function when done.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish marshals ev once and delivers it to every subscriber. A
// subscriber whose buffer is full misses the event; renderers recover by
// reconnecting for a fresh snapshot.
func (b *Broadcaster) Publish(ev Event) {
	buf, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- buf:
		default:
			b.log.Warn("slow subscriber, dropping event", "type", ev.Type)
		}
	}
}

// TokenStatusChanged implements [text.Listener].
func (b *Broadcaster) TokenStatusChanged(index int, status text.Status) {
	b.Publish(statusEvent(index, status))
}

// PointerMoved implements [text.Listener].
func (b *Broadcaster) PointerMoved(index int) {
	b.Publish(Event{Type: "pointer", Pointer: &Pointer{Index: index}})
}

// TokenAnnotated implements [text.Listener].
func (b *Broadcaster) TokenAnnotated(index int, annotation string) {
	b.Publish(Event{Type: "annotation", Annotation: &Annotation{Index: index, Note: annotation}})
}

// RolledBack implements [text.Listener].
func (b *Broadcaster) RolledBack(from, to int) {
	b.Publish(Event{Type: "rollback", Rollback: &Rollback{From: from, To: to}})
}
