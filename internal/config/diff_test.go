package config_test

import (
	"testing"

	"github.com/readpace/readpace/internal/config"
)

func TestDiffDetectsChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Server.LogLevel = config.LogInfo
	old.Alignment.BeamWidth = 5
	old.Backtrack.Threshold = 2.0

	same := *old
	if d := config.Diff(old, &same); d.Any() {
		t.Errorf("Diff of identical configs = %+v, want no changes", d)
	}

	levelChanged := *old
	levelChanged.Server.LogLevel = config.LogDebug
	d := config.Diff(old, &levelChanged)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff = %+v, want log level change to debug", d)
	}
	if d.AlignmentChanged || d.BacktrackChanged {
		t.Errorf("Diff = %+v, want only the log level flagged", d)
	}

	tuningChanged := *old
	tuningChanged.Alignment.MatchThreshold = 0.9
	tuningChanged.Backtrack.Window = 12
	d = config.Diff(old, &tuningChanged)
	if !d.AlignmentChanged || !d.BacktrackChanged {
		t.Errorf("Diff = %+v, want alignment and backtrack flagged", d)
	}
	if !d.Any() {
		t.Error("Any() = false with changes present")
	}
}

// Address and engine swaps need a restart, so the diff must not report
// them as hot-reloadable.
func TestDiffIgnoresRestartOnlyFields(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	changed := *old
	changed.Server.ListenAddr = ":9999"
	changed.STT.Name = "mock"
	changed.Archive.PostgresDSN = "postgres://elsewhere/readpace"

	if d := config.Diff(old, &changed); d.Any() {
		t.Errorf("Diff = %+v, want restart-only changes ignored", d)
	}
}
