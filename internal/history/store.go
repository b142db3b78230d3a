// Package history keeps a local SQLite audit log of routing decisions. It
// is write-only from the pipeline's point of view: nothing in it feeds a
// later classify or forward.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailroute/internal/model"
)

// DefaultRecentLimit is used when Recent is called with a non-positive
// limit.
const DefaultRecentLimit = 20

// Store records routing events in SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at dbPath and runs any pending
// schema migrations. Use ":memory:" for a throwaway store.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

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

// Record stores ev, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, ev model.RoutingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	ev.OccurredAt = ev.OccurredAt.UTC()

	const query = `
		INSERT INTO routing_events (
			id, occurred_at, action, subject, classification,
			department, recipient, outcome, error_kind
		) VALUES (
			:id, :occurred_at, :action, :subject, :classification,
			:department, :recipient, :outcome, :error_kind
		)`

	if _, err := s.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("recording %s event: %w", ev.Action, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.RoutingEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var events []model.RoutingEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, occurred_at, action, subject, classification,
			department, recipient, outcome, error_kind
		FROM routing_events
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying routing events: %w", err)
	}

	return events, nil
}

// DepartmentCount is the number of successful forwards to one department.
type DepartmentCount struct {
	Department string `db:"department"`
	Forwards   int    `db:"forwards"`
}

// ForwardCounts summarizes successful forwards per department, busiest
// first.
func (s *Store) ForwardCounts(ctx context.Context) ([]DepartmentCount, error) {
	var counts []DepartmentCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT department, COUNT(*) AS forwards
		FROM routing_events
		WHERE action = 'forward' AND outcome = 'ok'
		GROUP BY department
		ORDER BY forwards DESC, department ASC`)
	if err != nil {
		return nil, fmt.Errorf("counting forwards: %w", err)
	}
	return counts, nil
}
