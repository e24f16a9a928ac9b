// Command readpace is the read-along tracking server. It loads a reference
// text, listens for speech transcripts (from a streaming STT engine or
// plain HTTP posts), and serves the live alignment state to renderer
// clients over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/readpace/readpace/internal/align"
	"github.com/readpace/readpace/internal/align/backtrack"
	"github.com/readpace/readpace/internal/config"
	"github.com/readpace/readpace/internal/health"
	"github.com/readpace/readpace/internal/observe"
	"github.com/readpace/readpace/internal/server"
	"github.com/readpace/readpace/internal/session"
	"github.com/readpace/readpace/internal/store/postgres"
	"github.com/readpace/readpace/internal/tokenize"
	"github.com/readpace/readpace/pkg/stt"
	"github.com/readpace/readpace/pkg/stt/mock"
	"github.com/readpace/readpace/pkg/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	textPath := flag.String("text", "", "path to the reference text to read along")
	sessionID := flag.String("session", "default", "session identifier used in logs and the archive")
	flag.Parse()

	if *textPath == "" {
		fmt.Fprintln(os.Stderr, "readpace: -text is required")
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "readpace: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "readpace: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("readpace starting",
		"config", *configPath,
		"text", *textPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "readpace"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Reference text ────────────────────────────────────────────────────────
	raw, err := os.ReadFile(*textPath)
	if err != nil {
		slog.Error("cannot read reference text", "path", *textPath, "err", err)
		return 1
	}
	doc := tokenize.Parse(string(raw))
	if doc.WordCount() == 0 {
		slog.Error("reference text contains no words", "path", *textPath)
		return 1
	}
	slog.Info("reference text loaded", "tokens", doc.Len(), "words", doc.WordCount())

	// ── STT provider ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	var provider stt.Provider
	if cfg.STT.Name != "" {
		provider, err = reg.CreateSTT(cfg.STT)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown stt provider — transcripts accepted over HTTP only", "name", cfg.STT.Name)
		} else if err != nil {
			slog.Error("failed to create stt provider", "name", cfg.STT.Name, "err", err)
			return 1
		} else {
			slog.Info("stt provider created", "name", cfg.STT.Name)
		}
	} else {
		slog.Info("no stt provider configured — transcripts accepted over HTTP only")
	}

	// ── Session archive (optional) ────────────────────────────────────────────
	var archive *postgres.Archive
	var checkers []health.Checker
	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		archive, err = postgres.NewArchive(ctx, dsn)
		if err != nil {
			slog.Error("session archive init failed", "err", err)
			return 1
		}
		defer archive.Close()
		checkers = append(checkers, health.Checker{Name: "database", Check: archive.Ping})
		slog.Info("session archive enabled")
	} else {
		slog.Warn("no postgres dsn configured — session archiving disabled")
	}

	// ── Session ───────────────────────────────────────────────────────────────
	bcast := server.NewBroadcaster(logger)
	sess := session.New(doc,
		session.WithID(*sessionID),
		session.WithLogger(logger),
		session.WithListener(bcast),
		session.WithAlignOptions(alignOptions(cfg.Alignment)...),
		session.WithBacktrackOptions(backtrackOptions(cfg.Backtrack)...),
		session.WithHistoryCapacity(cfg.Session.HistoryCapacity),
	)
	defer sess.Close()

	// ── STT stream + pump ─────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	var stream stt.Stream
	if provider != nil {
		stream, err = provider.StartStream(gctx, stt.StreamConfig{
			SampleRate: cfg.STT.SampleRate,
			Channels:   1,
			Language:   cfg.STT.Language,
		})
		if err != nil {
			slog.Error("failed to start stt stream", "err", err)
			return 1
		}
		start := time.Now()
		g.Go(func() error {
			pumpTranscripts(gctx, stream, sess, cfg.STT.Name, start)
			return nil
		})
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithLogger(logger),
		server.WithHealth(health.New(checkers...)),
	}
	if stream != nil {
		srvOpts = append(srvOpts, server.WithAudioSink(stream.SendAudio))
	}
	srv := server.New(sess, bcast, srvOpts...)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.AlignmentChanged || d.BacktrackChanged {
			sess.Configure(alignOptions(new.Alignment), backtrackOptions(new.Backtrack))
			slog.Info("session tuning reloaded")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	if stream != nil {
		if err := stream.Close(); err != nil {
			slog.Warn("stt stream close error", "err", err)
		}
	}

	// ── Archive the finished session ──────────────────────────────────────────
	if archive != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := archive.SaveSession(saveCtx, sess.Progress(), sess.Decisions()); err != nil {
			slog.Error("failed to archive session", "err", err)
		} else {
			slog.Info("session archived", "session", *sessionID)
		}
	}

	slog.Info("goodbye")
	return 0
}

// pumpTranscripts feeds final transcripts into the session in arrival
// order. Partial transcripts are surfaced at debug level only; the
// aligner consumes finals.
func pumpTranscripts(ctx context.Context, stream stt.Stream, sess *session.Session, providerName string, start time.Time) {
	metrics := observe.DefaultMetrics()
	partials := stream.Partials()
	finals := stream.Finals()
	for partials != nil || finals != nil {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			slog.Debug("partial transcript", "text", t.Text)
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			metrics.RecordTranscription(ctx, providerName, time.Since(start))
			slog.Debug("final transcript", "text", t.Text, "confidence", t.Confidence)
			sess.ConsumePhrase(t.Text)
		}
	}
}

// registerBuiltinProviders wires the STT engines that ship with readpace
// into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, whisper.WithSampleRate(entry.SampleRate))
		}
		if ms := optInt(entry.Options, "silence_threshold_ms"); ms > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		if ms := optInt(entry.Options, "max_buffer_duration_ms"); ms > 0 {
			opts = append(opts, whisper.WithMaxBufferDurationMs(ms))
		}
		return whisper.New(entry.ModelPath, opts...)
	})

	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []mock.Option
		if script := optStrings(entry.Options, "script"); len(script) > 0 {
			interval := time.Duration(optInt(entry.Options, "interval_ms")) * time.Millisecond
			if interval <= 0 {
				interval = time.Second
			}
			opts = append(opts, mock.WithScript(script, interval))
		}
		return mock.New(opts...), nil
	})
}

// alignOptions maps the YAML tuning block onto aligner options. Zero
// values mean "keep the default" and are skipped; out-of-range values are
// clamped by the options themselves.
func alignOptions(c config.AlignmentConfig) []align.Option {
	var opts []align.Option
	if c.BeamWidth != 0 {
		opts = append(opts, align.WithBeamWidth(c.BeamWidth))
	}
	if c.MatchThreshold != 0 {
		opts = append(opts, align.WithMatchThreshold(c.MatchThreshold))
	}
	if c.AdvanceMargin != 0 {
		opts = append(opts, align.WithAdvanceMargin(c.AdvanceMargin))
	}
	if c.LookaheadWindow != 0 {
		opts = append(opts, align.WithLookaheadWindow(c.LookaheadWindow))
	}
	opts = append(opts, align.WithPhonetic(c.PhoneticEnabled))
	if c.PhoneticWeight != 0 {
		opts = append(opts, align.WithPhoneticWeight(c.PhoneticWeight))
	}
	return opts
}

// backtrackOptions maps the YAML drift block onto controller options.
func backtrackOptions(c config.BacktrackConfig) []backtrack.Option {
	var opts []backtrack.Option
	if c.Window != 0 {
		opts = append(opts, backtrack.WithWindow(c.Window))
	}
	if c.Threshold != 0 {
		opts = append(opts, backtrack.WithThreshold(c.Threshold))
	}
	return opts
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optInt extracts an integer from a provider Options map[string]any.
// Returns 0 if the map is nil, the key is absent, or the value is not a
// number (YAML decodes integers as int).
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// optStrings extracts a string slice from a provider Options map.
func optStrings(opts map[string]any, key string) []string {
	if opts == nil {
		return nil
	}
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
