// Package history persists one row per query as it moves through execution.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed width so stored timestamps sort chronologically as
// text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ErrNotFound is returned when no query has the requested id.
var ErrNotFound = errors.New("query not found")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Begin inserts rec. CreatedAt and UpdatedAt default to now.
func (s *Store) Begin(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("query id is empty")
	}
	if rec.Task == "" {
		return fmt.Errorf("task is empty")
	}
	if rec.State == "" {
		rec.State = StateReceived
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO query_log(id, task, engine, caller, state, priority, error_message, detail, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Task, rec.Engine, rec.Caller, string(rec.State), rec.Priority,
		nullString(rec.ErrorMessage), nullString(rec.Detail),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert query %s: %w", rec.ID, err)
	}
	return nil
}

// Transition moves query id to state and applies upd.
func (s *Store) Transition(ctx context.Context, id string, state State, upd Update) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE query_log
SET state = ?,
    engine = COALESCE(?, engine),
    priority = COALESCE(?, priority),
    error_message = COALESCE(?, error_message),
    detail = COALESCE(?, detail),
    updated_at = ?
WHERE id = ?;
`, string(state), nullString(upd.Engine), nullFloat(upd.Priority), nullString(upd.ErrorMessage), nullString(upd.Detail),
		formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update query %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update query %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update query %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectColumns = `id, task, engine, caller, state, priority, error_message, detail, created_at, updated_at`

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM query_log WHERE id = ?;`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get query %s: %w", id, err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM query_log ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return out, nil
}

// Prune deletes records created before now minus retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := formatTime(s.now().Add(-retention))
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_log WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune query log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune query log: %w", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec        Record
		state      string
		errMsg     sql.NullString
		detail     sql.NullString
		createdAtS string
		updatedAtS string
	)
	if err := row.Scan(&rec.ID, &rec.Task, &rec.Engine, &rec.Caller, &state, &rec.Priority,
		&errMsg, &detail, &createdAtS, &updatedAtS); err != nil {
		return nil, err
	}
	rec.State = State(state)
	if errMsg.Valid {
		rec.ErrorMessage = &errMsg.String
	}
	if detail.Valid {
		rec.Detail = &detail.String
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAtS); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}
