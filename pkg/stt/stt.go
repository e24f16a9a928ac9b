// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model,
// or a scripted mock in tests) and exposes a uniform streaming interface.
// The central abstraction is Stream: once opened, a stream accepts raw PCM
// audio frames and emits two channels of Transcript values — low-latency
// partials for responsiveness and authoritative finals that drive the
// aligner.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"
)

// Transcript represents a speech-to-text result. Both partial (interim) and
// final transcripts use this type; only finals are fed to the aligner.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or
	// partial (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// engine does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to stream
	// start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// StreamConfig describes the audio format for a new STT stream.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is the usual
	// STT-optimised mono rate.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by
	// most engines). Implementations may downmix internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en",
	// "de"). Empty lets the engine use its default.
	Language string
}

// Stream represents an open transcription stream. It is an interface so
// that test code can provide scripted implementations without a live
// engine.
//
// Callers must call Close when the stream is no longer needed; failing to
// do so may leak goroutines inside the implementation. All methods must be
// safe for concurrent use.
type Stream interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian signed PCM
	// audio for transcription. The chunk must match the SampleRate and
	// Channels agreed in StreamConfig. Calling SendAudio after Close
	// returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel emitting interim Transcript
	// values, suitable for UI feedback but never for alignment. Closed
	// when the stream ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel emitting authoritative
	// Transcript values — the phrases handed to the aligner. Closed when
	// the stream ends.
	Finals() <-chan Transcript

	// Close terminates the stream, flushes pending audio, and releases
	// all associated resources. After Close returns, the Partials and
	// Finals channels are closed. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription stream with the
	// given audio format. The returned Stream is ready to accept audio
	// immediately. The caller owns the Stream and must call Close when
	// done.
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
