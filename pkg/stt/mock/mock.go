// Package mock provides a scripted stt.Provider for tests and for running
// the server without a speech engine. Transcripts are emitted on demand
// through [Stream.EmitFinal] and [Stream.EmitPartial], or replayed from a
// script with a fixed delay between phrases.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/readpace/readpace/pkg/stt"
)

var (
	_ stt.Provider = (*Provider)(nil)
	_ stt.Stream   = (*Stream)(nil)
)

// Provider implements stt.Provider with scripted output.
type Provider struct {
	script   []string
	interval time.Duration

	mu      sync.Mutex
	streams []*Stream
}

// Option configures a Provider.
type Option func(*Provider)

// WithScript sets phrases that every new stream replays as final
// transcripts, one per interval.
func WithScript(phrases []string, interval time.Duration) Option {
	return func(p *Provider) {
		p.script = phrases
		p.interval = interval
	}
}

// New returns a mock Provider.
func New(opts ...Option) *Provider {
	p := &Provider{interval: 100 * time.Millisecond}
	for _, o := range opts {
		o(p)
	}
	return p
}

// StartStream opens a scripted stream. Audio sent to it is counted and
// discarded.
func (p *Provider) StartStream(ctx context.Context, _ stt.StreamConfig) (stt.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Stream{
		partials: make(chan stt.Transcript, 16),
		finals:   make(chan stt.Transcript, 16),
		done:     make(chan struct{}),
	}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	if len(p.script) > 0 {
		s.wg.Add(1)
		go s.replay(ctx, p.script, p.interval)
	}
	return s, nil
}

// Streams returns every stream the provider has opened, for test
// inspection.
func (p *Provider) Streams() []*Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Stream(nil), p.streams...)
}

// Stream is a scripted stt.Stream.
type Stream struct {
	partials chan stt.Transcript
	finals   chan stt.Transcript

	mu         sync.Mutex
	audioBytes int

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio records the chunk size and discards the audio.
func (s *Stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("mock: stream is closed")
	default:
	}
	s.mu.Lock()
	s.audioBytes += len(chunk)
	s.mu.Unlock()
	return nil
}

// AudioBytes returns the total audio bytes received.
func (s *Stream) AudioBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioBytes
}

// Partials returns the interim transcript channel.
func (s *Stream) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the authoritative transcript channel.
func (s *Stream) Finals() <-chan stt.Transcript { return s.finals }

// EmitPartial pushes an interim transcript. Returns false once the stream
// is closed.
func (s *Stream) EmitPartial(text string) bool {
	return s.emit(s.partials, stt.Transcript{Text: text})
}

// EmitFinal pushes a final transcript. Returns false once the stream is
// closed.
func (s *Stream) EmitFinal(text string) bool {
	return s.emit(s.finals, stt.Transcript{Text: text, IsFinal: true})
}

func (s *Stream) emit(ch chan stt.Transcript, t stt.Transcript) bool {
	select {
	case <-s.done:
		return false
	case ch <- t:
		return true
	}
}

// Close ends the stream and closes both transcript channels.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		close(s.partials)
		close(s.finals)
	})
	return nil
}

func (s *Stream) replay(ctx context.Context, script []string, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for _, phrase := range script {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
		if !s.EmitFinal(phrase) {
			return
		}
	}
}
