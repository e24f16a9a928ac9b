package config_test

import (
	"strings"
	"testing"

	"github.com/readpace/readpace/internal/config"
)

func TestLoadFromReaderFullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
alignment:
  beam_width: 7
  match_threshold: 0.8
  phonetic_enabled: true
backtrack:
  window: 10
  threshold: 1.5
session:
  history_capacity: 64
stt:
  name: whisper
  model_path: /models/ggml-base.en.bin
  language: en
  sample_rate: 16000
archive:
  postgres_dsn: postgres://localhost/readpace
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Alignment.BeamWidth != 7 || !cfg.Alignment.PhoneticEnabled {
		t.Errorf("Alignment = %+v, want beam_width 7 with phonetics on", cfg.Alignment)
	}
	if cfg.Backtrack.Window != 10 || cfg.Backtrack.Threshold != 1.5 {
		t.Errorf("Backtrack = %+v, want window 10 threshold 1.5", cfg.Backtrack)
	}
	if cfg.Session.HistoryCapacity != 64 {
		t.Errorf("HistoryCapacity = %d, want 64", cfg.Session.HistoryCapacity)
	}
	if cfg.STT.Name != "whisper" || cfg.STT.ModelPath == "" {
		t.Errorf("STT = %+v, want whisper with model path", cfg.STT)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  beam_width: 5
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidateWhisperRequiresModelPath(t *testing.T) {
	t.Parallel()
	yaml := `
stt:
  name: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for whisper without model_path, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") {
		t.Errorf("error should mention model_path, got: %v", err)
	}
}

func TestValidateTLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/readpace/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS without key file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidateNegativeHistoryCapacity(t *testing.T) {
	t.Parallel()
	yaml := `
session:
  history_capacity: -1
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for negative history capacity, got nil")
	}
}

// Out-of-range tuning values are the core's problem (it clamps); the
// loader must accept them.
func TestValidateAcceptsOutOfRangeTuning(t *testing.T) {
	t.Parallel()
	yaml := `
alignment:
  beam_width: 500
  match_threshold: 7.5
backtrack:
  window: 1000
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader rejected clampable tuning: %v", err)
	}
	if cfg.Alignment.BeamWidth != 500 {
		t.Errorf("BeamWidth = %d, want raw value 500 preserved", cfg.Alignment.BeamWidth)
	}
}

func TestValidateEmptyConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("empty config rejected: %v", err)
	}
	if cfg.STT.Name != "" || cfg.Archive.PostgresDSN != "" {
		t.Errorf("empty config = %+v, want zero values", cfg)
	}
}
