package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/readpace/readpace/internal/align/history"
	"github.com/readpace/readpace/internal/session"
	"github.com/readpace/readpace/internal/store/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if READPACE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("READPACE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("READPACE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestArchive creates a fresh [postgres.Archive] against a clean schema
// and registers cleanup.
func newTestArchive(t *testing.T) *postgres.Archive {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS decisions CASCADE",
		"DROP TABLE IF EXISTS sessions CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}

	archive, err := postgres.NewArchive(ctx, dsn)
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	t.Cleanup(archive.Close)
	return archive
}

func TestSaveAndLoadSession(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	progress := session.Progress{
		SessionID:  "chapter-one",
		WordCount:  9,
		Correct:    3,
		Incorrect:  1,
		Phrases:    2,
		WordsHeard: 5,
		Elapsed:    90 * time.Second,
	}
	decided := time.Now().UTC().Truncate(time.Microsecond)
	want := []history.Decision{
		{TokenIndex: 0, Outcome: history.OutcomeCorrect, Expected: "the", Heard: "the", Automatic: true, At: decided},
		{TokenIndex: 2, Outcome: history.OutcomeCorrect, Expected: "quick", Heard: "quick", Automatic: true, At: decided},
		{TokenIndex: 4, Outcome: history.OutcomeIncorrect, Expected: "brown", Heard: "crown", Automatic: true, At: decided},
		{TokenIndex: 6, Outcome: history.OutcomeCorrect, Expected: "fox", Heard: "fox", Automatic: false, At: decided},
	}

	if err := archive.SaveSession(ctx, progress, want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	sessions, err := archive.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != "chapter-one" || got.Correct != 3 || got.Incorrect != 1 || got.WordsHeard != 5 {
		t.Errorf("summary = %+v, want saved progress", got)
	}
	if got.Elapsed != 90*time.Second {
		t.Errorf("elapsed = %v, want 90s", got.Elapsed)
	}

	decisions, err := archive.Decisions(ctx, "chapter-one", got.EndedAt)
	if err != nil {
		t.Fatalf("Decisions: %v", err)
	}
	if len(decisions) != len(want) {
		t.Fatalf("len(decisions) = %d, want %d", len(decisions), len(want))
	}
	for i, d := range decisions {
		w := want[i]
		if d.TokenIndex != w.TokenIndex || d.Outcome != w.Outcome ||
			d.Expected != w.Expected || d.Heard != w.Heard || d.Automatic != w.Automatic {
			t.Errorf("decision[%d] = %+v, want %+v", i, d, w)
		}
	}
}

func TestSameSessionIDMultipleRuns(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	p := session.Progress{SessionID: "default", WordCount: 9, Correct: 9}
	if err := archive.SaveSession(ctx, p, nil); err != nil {
		t.Fatalf("first SaveSession: %v", err)
	}
	// The primary key includes ended_at, so a rerun of the same document
	// under the same id archives as a second row.
	time.Sleep(2 * time.Millisecond)
	if err := archive.SaveSession(ctx, p, nil); err != nil {
		t.Fatalf("second SaveSession: %v", err)
	}

	sessions, err := archive.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("len(sessions) = %d, want 2", len(sessions))
	}
	if len(sessions) == 2 && sessions[0].EndedAt.Before(sessions[1].EndedAt) {
		t.Error("RecentSessions not ordered newest first")
	}
}

func TestRecentSessionsEmpty(t *testing.T) {
	archive := newTestArchive(t)

	sessions, err := archive.RecentSessions(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("sessions = %#v, want empty non-nil slice", sessions)
	}
}
