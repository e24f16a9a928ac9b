// Package postgres archives finished read-along sessions in PostgreSQL.
//
// Archival is optional: when no DSN is configured the application runs
// without it and nothing here is touched. The schema is two tables, a
// per-session summary row and the full ordered decision log, so a
// coaching dashboard can replay exactly what the aligner committed.
//
// Usage:
//
//	archive, err := postgres.NewArchive(ctx, dsn)
//	if err != nil { … }
//	defer archive.Close()
//
//	_ = archive.SaveSession(ctx, sess.Progress(), sess.Decisions())
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/readpace/readpace/internal/align/history"
	"github.com/readpace/readpace/internal/session"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT         NOT NULL,
    ended_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    word_count   INTEGER      NOT NULL,
    correct      INTEGER      NOT NULL,
    incorrect    INTEGER      NOT NULL,
    skipped      INTEGER      NOT NULL,
    phrases      INTEGER      NOT NULL,
    words_heard  INTEGER      NOT NULL,
    elapsed_ns   BIGINT       NOT NULL,
    PRIMARY KEY (id, ended_at)
);

CREATE INDEX IF NOT EXISTS idx_sessions_ended_at
    ON sessions (ended_at);
`

const ddlDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    session_id   TEXT         NOT NULL,
    ended_at     TIMESTAMPTZ  NOT NULL,
    seq          INTEGER      NOT NULL,
    token_index  INTEGER      NOT NULL,
    outcome      TEXT         NOT NULL,
    expected     TEXT         NOT NULL,
    heard        TEXT         NOT NULL DEFAULT '',
    automatic    BOOLEAN      NOT NULL,
    decided_at   TIMESTAMPTZ  NOT NULL,
    PRIMARY KEY (session_id, ended_at, seq),
    FOREIGN KEY (session_id, ended_at)
        REFERENCES sessions (id, ended_at) ON DELETE CASCADE
);
`

// Migrate creates or ensures the archive tables exist. It is idempotent
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlDecisions} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// Archive is the PostgreSQL-backed session archive. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive connects to the PostgreSQL database at dsn, verifies the
// connection, and runs [Migrate].
func NewArchive(ctx context.Context, dsn string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("session archive: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session archive: %w", err)
	}

	return &Archive{pool: pool}, nil
}

// Ping verifies the database connection; it backs the readiness probe.
func (a *Archive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (a *Archive) Close() {
	a.pool.Close()
}

// SaveSession writes the session summary and its complete decision log in
// a single transaction. The decision slice must be in commit order.
func (a *Archive) SaveSession(ctx context.Context, p session.Progress, decisions []history.Decision) error {
	endedAt := time.Now().UTC()

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session archive: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSession = `
		INSERT INTO sessions
		    (id, ended_at, word_count, correct, incorrect, skipped, phrases, words_heard, elapsed_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := tx.Exec(ctx, insertSession,
		p.SessionID,
		endedAt,
		p.WordCount,
		p.Correct,
		p.Incorrect,
		p.Skipped,
		p.Phrases,
		p.WordsHeard,
		p.Elapsed.Nanoseconds(),
	); err != nil {
		return fmt.Errorf("session archive: insert session: %w", err)
	}

	if len(decisions) > 0 {
		rows := make([][]any, 0, len(decisions))
		for seq, d := range decisions {
			rows = append(rows, []any{
				p.SessionID, endedAt, seq,
				d.TokenIndex, string(d.Outcome), d.Expected, d.Heard,
				d.Automatic, d.At,
			})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"decisions"},
			[]string{"session_id", "ended_at", "seq", "token_index", "outcome", "expected", "heard", "automatic", "decided_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("session archive: copy decisions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session archive: commit: %w", err)
	}
	return nil
}

// SessionSummary is one archived session row.
type SessionSummary struct {
	ID         string
	EndedAt    time.Time
	WordCount  int
	Correct    int
	Incorrect  int
	Skipped    int
	Phrases    int
	WordsHeard int
	Elapsed    time.Duration
}

// RecentSessions returns up to limit archived sessions, newest first.
func (a *Archive) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	const q = `
		SELECT id, ended_at, word_count, correct, incorrect, skipped, phrases, words_heard, elapsed_ns
		FROM   sessions
		ORDER  BY ended_at DESC
		LIMIT  $1`

	rows, err := a.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("session archive: recent sessions: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionSummary, error) {
		var (
			s         SessionSummary
			elapsedNS int64
		)
		if err := row.Scan(
			&s.ID, &s.EndedAt, &s.WordCount, &s.Correct, &s.Incorrect,
			&s.Skipped, &s.Phrases, &s.WordsHeard, &elapsedNS,
		); err != nil {
			return SessionSummary{}, err
		}
		s.Elapsed = time.Duration(elapsedNS)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session archive: scan rows: %w", err)
	}
	if summaries == nil {
		summaries = []SessionSummary{}
	}
	return summaries, nil
}

// Decisions returns the full decision log for one archived session run,
// in commit order.
func (a *Archive) Decisions(ctx context.Context, sessionID string, endedAt time.Time) ([]history.Decision, error) {
	const q = `
		SELECT token_index, outcome, expected, heard, automatic, decided_at
		FROM   decisions
		WHERE  session_id = $1 AND ended_at = $2
		ORDER  BY seq`

	rows, err := a.pool.Query(ctx, q, sessionID, endedAt)
	if err != nil {
		return nil, fmt.Errorf("session archive: decisions: %w", err)
	}
	decisions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Decision, error) {
		var (
			d       history.Decision
			outcome string
		)
		if err := row.Scan(&d.TokenIndex, &outcome, &d.Expected, &d.Heard, &d.Automatic, &d.At); err != nil {
			return history.Decision{}, err
		}
		d.Outcome = history.Outcome(outcome)
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session archive: scan rows: %w", err)
	}
	if decisions == nil {
		decisions = []history.Decision{}
	}
	return decisions, nil
}
