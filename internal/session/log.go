package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/penchant/pkg/types"
)

// logSchema holds one row per session and one per turn. Phase is recorded at
// save time so logs show how far a session got.
const logSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	ended_at   TEXT NOT NULL,
	phase      TEXT NOT NULL,
	turn_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	seq        INTEGER NOT NULL,
	speaker    TEXT NOT NULL,
	text       TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
`

// Log persists finished sessions to SQLite so elicitation transcripts
// survive the process.
type Log struct {
	db *sql.DB
}

// OpenLog opens (creating if needed) the session log database at path.
func OpenLog(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	if _, err := db.Exec(logSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session log schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Save writes a session's full transcript in one transaction.
func (l *Log) Save(ctx context.Context, state *ConversationState, phase types.Phase) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session log transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, started_at, ended_at, phase, turn_count) VALUES (?, ?, ?, ?, ?)`,
		state.SessionID,
		state.StartedAt.Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(phase),
		len(state.Turns),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session row: %w", err)
	}

	for seq, turn := range state.Turns {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO turns (id, session_id, seq, speaker, text, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			turn.ID, state.SessionID, seq, string(turn.Speaker), turn.Text,
			turn.Timestamp.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert turn %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// Turns reads back a session's transcript in order, mostly for inspection
// and tests.
func (l *Log) Turns(ctx context.Context, sessionID string) ([]types.Turn, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, speaker, text, timestamp FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []types.Turn
	for rows.Next() {
		var t types.Turn
		var speaker, ts string
		if err := rows.Scan(&t.ID, &speaker, &t.Text, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Speaker = types.Speaker(speaker)
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse turn timestamp: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
