package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"batchbot/internal/model"
	"batchbot/migrations"
)

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertReply inserts the reply record, or overwrites the existing row
// for the same target.
func (s *SQLite) UpsertReply(ctx context.Context, r *model.Reply) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replies (target_id, reply_id, target_created_utc, content_flags, is_set, is_obstructed)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(target_id) DO UPDATE SET
		   reply_id = excluded.reply_id,
		   target_created_utc = excluded.target_created_utc,
		   content_flags = excluded.content_flags,
		   is_set = excluded.is_set,
		   is_obstructed = excluded.is_obstructed`,
		r.TargetID, r.ReplyID, r.TargetCreatedUTC, int64(r.ContentFlags),
		boolToInt(r.IsSet), boolToInt(r.IsObstructed),
	)
	if err != nil {
		return fmt.Errorf("upsert reply: %w", err)
	}
	return nil
}

// GetReply returns the row for targetID, or nil when no row exists.
func (s *SQLite) GetReply(ctx context.Context, targetID string) (*model.Reply, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT target_id, reply_id, target_created_utc, content_flags, is_set, is_obstructed
		 FROM replies WHERE target_id = ?`, targetID,
	)
	r, err := scanReply(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateFlags writes flags for the target only when the stored value
// differs, keeping re-check ticks write-free on unchanged content.
func (s *SQLite) UpdateFlags(ctx context.Context, targetID string, flags model.Verdict) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE replies SET content_flags = ? WHERE target_id = ? AND content_flags <> ?`,
		int64(flags), targetID, int64(flags),
	)
	if err != nil {
		return fmt.Errorf("update flags: %w", err)
	}
	return nil
}

// MarkObstructed flags the row as blocked from reversal.
func (s *SQLite) MarkObstructed(ctx context.Context, targetID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE replies SET is_obstructed = 1 WHERE target_id = ?`, targetID,
	)
	if err != nil {
		return fmt.Errorf("mark obstructed: %w", err)
	}
	return nil
}

// ClearReply marks the action no longer live.
func (s *SQLite) ClearReply(ctx context.Context, targetID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE replies SET is_set = 0 WHERE target_id = ?`, targetID,
	)
	if err != nil {
		return fmt.Errorf("clear reply: %w", err)
	}
	return nil
}

// PendingForRecheck returns live, unobstructed rows whose target was
// created within the retention window.
func (s *SQLite) PendingForRecheck(ctx context.Context, now time.Time, retention time.Duration) ([]model.Reply, error) {
	cutoff := now.Unix() - int64(retention.Seconds())
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, reply_id, target_created_utc, content_flags, is_set, is_obstructed
		 FROM replies
		 WHERE is_set = 1 AND is_obstructed = 0 AND target_created_utc >= ?
		 ORDER BY target_created_utc`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var replies []model.Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReply(row scannable) (model.Reply, error) {
	var r model.Reply
	var flags int64
	var isSet, isObstructed int
	err := row.Scan(&r.TargetID, &r.ReplyID, &r.TargetCreatedUTC, &flags, &isSet, &isObstructed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan reply: %w", err)
	}
	r.ContentFlags = model.Verdict(flags)
	r.IsSet = isSet == 1
	r.IsObstructed = isObstructed == 1
	return r, nil
}
