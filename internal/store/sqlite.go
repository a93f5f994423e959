package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/lms-client/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordSessionEvent appends one entry to the audit log.
func (s *SQLiteStore) RecordSessionEvent(ctx context.Context, ev model.SessionEvent) error {
	if ev.Kind == "" {
		return fmt.Errorf("session event kind must not be empty")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_events (id, user_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, string(ev.Kind), ev.Detail, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording session event: %w", err)
	}
	return nil
}

// GetSessionEvents returns the most recent events, newest first.
func (s *SQLiteStore) GetSessionEvents(ctx context.Context, limit int) ([]model.SessionEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, user_id, kind, detail, created_at
		FROM session_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer rows.Close()

	var events []model.SessionEvent
	for rows.Next() {
		ev, err := scanSessionEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// ClearSessionEvents empties the audit log.
func (s *SQLiteStore) ClearSessionEvents(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_events"); err != nil {
		return fmt.Errorf("clearing session events: %w", err)
	}
	return nil
}

// SaveNotificationSnapshot replaces the stored snapshot with items.
func (s *SQLiteStore) SaveNotificationSnapshot(
	ctx context.Context,
	items []model.NotificationItem,
	fetchedAt time.Time,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notification_snapshot"); err != nil {
		return fmt.Errorf("clearing notification snapshot: %w", err)
	}

	const query = `
		INSERT INTO notification_snapshot (
			position, id, recipient_id, kind, message,
			is_read, created_at, related_id, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing snapshot statement: %w", err)
	}
	defer stmt.Close()

	fetchedAt = fetchedAt.UTC()
	for i, it := range items {
		_, err := stmt.ExecContext(ctx,
			i, it.ID, it.RecipientID, string(it.Kind), it.Message,
			boolToInt(it.IsRead), it.CreatedAt.UTC(), it.RelatedID, fetchedAt,
		)
		if err != nil {
			return fmt.Errorf("saving snapshot item %s: %w", it.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshot_meta (id, fetched_at) VALUES (1, ?)", fetchedAt)
	if err != nil {
		return fmt.Errorf("saving snapshot time: %w", err)
	}

	return tx.Commit()
}

// GetNotificationSnapshot returns the stored snapshot, or nil if no poll
// has succeeded yet.
func (s *SQLiteStore) GetNotificationSnapshot(ctx context.Context) (*model.NotificationSnapshot, error) {
	var fetchedAt time.Time
	err := s.db.QueryRowxContext(ctx,
		"SELECT fetched_at FROM snapshot_meta WHERE id = 1").Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot time: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, recipient_id, kind, message, is_read, created_at, related_id
		FROM notification_snapshot
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying notification snapshot: %w", err)
	}
	defer rows.Close()

	snap := &model.NotificationSnapshot{FetchedAt: fetchedAt, Items: []model.NotificationItem{}}
	for rows.Next() {
		it, err := scanSnapshotItem(rows)
		if err != nil {
			return nil, err
		}
		snap.Items = append(snap.Items, it)
	}

	return snap, rows.Err()
}

// scanSessionEvent scans a session_events row.
func scanSessionEvent(rows *sqlx.Rows) (model.SessionEvent, error) {
	var (
		ev   model.SessionEvent
		kind string
	)

	if err := rows.Scan(&ev.ID, &ev.UserID, &kind, &ev.Detail, &ev.CreatedAt); err != nil {
		return model.SessionEvent{}, fmt.Errorf("scanning session event row: %w", err)
	}
	ev.Kind = model.SessionEventKind(kind)

	return ev, nil
}

// scanSnapshotItem scans a notification_snapshot row.
func scanSnapshotItem(rows *sqlx.Rows) (model.NotificationItem, error) {
	var (
		it      model.NotificationItem
		kind    string
		readInt int
	)

	err := rows.Scan(
		&it.ID, &it.RecipientID, &kind, &it.Message,
		&readInt, &it.CreatedAt, &it.RelatedID,
	)
	if err != nil {
		return model.NotificationItem{}, fmt.Errorf("scanning snapshot row: %w", err)
	}

	it.Kind = model.NotificationKind(kind).Normalize()
	it.IsRead = readInt != 0

	return it, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
