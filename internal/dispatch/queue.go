package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meshbridge/bridge/internal/events"
)

// DurableQueue persists pending outbound commands to a pure-Go SQLite
// file in WAL mode so a crashed adapter process can redeliver in-flight
// requests on restart, adapted from the teacher's
// internal/queue.MessageQueue — trimmed to this module's single purpose
// (outbound command durability ahead of C9, not a full priority/retry
// message bus) and without the SDTW-specific signature/attachment
// columns the teacher's schema carried.
type DurableQueue struct {
	db *sql.DB
}

// OpenDurableQueue opens (creating if needed) the SQLite-backed queue at
// path, in WAL mode for concurrent reader/writer access.
func OpenDurableQueue(path string) (*DurableQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dispatch queue: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate dispatch queue: %w", err)
	}
	return &DurableQueue{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS pending_commands (
	request_id TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	payload TEXT NOT NULL,
	enqueued_at TIMESTAMP NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0
);`

// Enqueue records cmd as in-flight before C9 attempts it.
func (q *DurableQueue) Enqueue(ctx context.Context, platform string, cmd events.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO pending_commands(request_id, platform, payload, enqueued_at, attempts)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(request_id) DO UPDATE SET attempts = attempts + 1`,
		cmd.RequestID, platform, string(payload), time.Now())
	return err
}

// Ack removes a command once C9 has produced a terminal result
// (request_success or request_failed).
func (q *DurableQueue) Ack(ctx context.Context, requestID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM pending_commands WHERE request_id = ?`, requestID)
	return err
}

// PendingForPlatform returns commands left in-flight from a prior
// process lifetime, for redelivery on adapter startup.
func (q *DurableQueue) PendingForPlatform(ctx context.Context, platform string) ([]events.Command, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT payload FROM pending_commands WHERE platform = ? ORDER BY enqueued_at ASC`, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Command
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var cmd events.Command
		if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
			continue
		}
		out = append(out, cmd)
	}
	return out, rows.Err()
}

// Depth reports the current queue size.
func (q *DurableQueue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_commands`).Scan(&n)
	return n, err
}

// Close releases the underlying database handle.
func (q *DurableQueue) Close() error { return q.db.Close() }
