package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/hanguk-agent/internal/dialog"
)

// QueryLog persists completed dialog turns for analytics/audit, grounded
// on internal/persistence/postgres/trades_repo.go's sqlx + lib/pq
// wrapper: parameterized inserts, JSONB payload, pq.Error code handling.
type QueryLog struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewQueryLog(db *sqlx.DB, timeout time.Duration) *QueryLog {
	return &QueryLog{db: db, timeout: timeout}
}

// Record is one logged turn: the resolved task, the final answer text,
// and the full parameter record for replay/debugging.
type Record struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	Task      string    `db:"task"`
	Answer    string    `db:"answer"`
	Params    []byte    `db:"params"`
	CreatedAt time.Time `db:"created_at"`
}

// Append inserts one completed turn. Duplicate (session_id, created_at)
// pairs are reported distinctly via the pq unique-violation code, mirror
// of trades_repo.go's Insert().
func (q *QueryLog) Append(ctx context.Context, sessionID, answer string, params dialog.QueryParams) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal query params: %w", err)
	}

	query := `
		INSERT INTO query_log (session_id, task, answer, params, created_at)
		VALUES ($1, $2, $3, $4, now())`

	_, err = q.db.ExecContext(ctx, query, sessionID, string(params.Task), answer, paramsJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate query log entry: %w", err)
		}
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// RecentBySession returns the most recent logged turns for a session,
// newest first, bounded by limit.
func (q *QueryLog) RecentBySession(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	query := `
		SELECT id, session_id, task, answer, params, created_at
		FROM query_log
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var out []Record
	if err := q.db.SelectContext(ctx, &out, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("select query log: %w", err)
	}
	return out, nil
}
