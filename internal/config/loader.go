package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known speech-to-text provider names. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{"whisper", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and returns a
// joined error listing all failures found. Alignment and backtrack tuning
// values are deliberately not validated here: the core clamps them itself
// so a sloppy config can degrade tracking quality but never stop a
// session. Validate only warns when clamping will occur.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// STT provider
	if cfg.STT.Name != "" && !slices.Contains(ValidProviderNames, cfg.STT.Name) {
		slog.Warn("unknown STT provider name — may be a typo or third-party provider",
			"name", cfg.STT.Name,
			"known", ValidProviderNames,
		)
	}
	if cfg.STT.Name == "whisper" && cfg.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.model_path is required when stt.name is whisper"))
	}

	// Alignment tuning: clamping warnings only.
	warnRangeInt("alignment.beam_width", cfg.Alignment.BeamWidth, 2, 10)
	warnRangeFloat("alignment.match_threshold", cfg.Alignment.MatchThreshold, 0, 1)
	warnRangeFloat("alignment.advance_margin", cfg.Alignment.AdvanceMargin, 0, 1)
	warnRangeInt("alignment.lookahead_window", cfg.Alignment.LookaheadWindow, 5, 20)
	warnRangeFloat("alignment.phonetic_weight", cfg.Alignment.PhoneticWeight, 0, 1)

	// Backtrack tuning.
	warnRangeInt("backtrack.window", cfg.Backtrack.Window, 4, 20)
	if t := cfg.Backtrack.Threshold; t != 0 && (t < 0 || math.IsNaN(t) || math.IsInf(t, 0)) {
		slog.Warn("backtrack.threshold is not a positive real and will be ignored", "value", t)
	}

	if cfg.Session.HistoryCapacity < 0 {
		errs = append(errs, fmt.Errorf("session.history_capacity %d must not be negative", cfg.Session.HistoryCapacity))
	}

	return errors.Join(errs...)
}

func warnRangeInt(field string, v, lo, hi int) {
	if v != 0 && (v < lo || v > hi) {
		slog.Warn("config value out of range; the core will clamp it",
			"field", field, "value", v, "min", lo, "max", hi)
	}
}

func warnRangeFloat(field string, v, lo, hi float64) {
	if v != 0 && (v < lo || v > hi || math.IsNaN(v) || math.IsInf(v, 0)) {
		slog.Warn("config value out of range; the core will clamp or ignore it",
			"field", field, "value", v, "min", lo, "max", hi)
	}
}
