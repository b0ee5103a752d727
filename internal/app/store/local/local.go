// internal/app/store/local/local.go

// Package local implements the embedded cache that keeps the app usable
// offline. One SQLite table per entity kind; every row carries a synced
// column the syncer flips after a confirmed remote write. Reads and writes
// are synchronous; live queries re-emit after any write to the kind's table.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Kind names an entity table, used for live-query invalidation.
type Kind string

const (
	KindList    Kind = "lists"
	KindTask    Kind = "tasks"
	KindSession Kind = "focus_sessions"
	KindGroup   Kind = "groups"
	KindMember  Kind = "group_members"
)

// DB is the local cache handle. Safe for concurrent use.
type DB struct {
	sql *sql.DB
	log *zap.Logger
	hub *hub
}

// Open opens (creating if needed) the cache database at path and runs
// migrations. WAL mode keeps readers unblocked during writes.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sdb, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent handler load.
	sdb.SetMaxOpenConns(1)

	d := &DB{sql: sdb, log: logger, hub: newHub()}
	if err := d.migrate(); err != nil {
		sdb.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database and stops all live queries.
func (d *DB) Close() error {
	d.hub.closeAll()
	return d.sql.Close()
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lists (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			task_count INTEGER NOT NULL DEFAULT 0,
			completed_task_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lists_owner ON lists(owner_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			list_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			priority TEXT NOT NULL DEFAULT 'low',
			due_at TEXT,
			remind_at TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			subtasks TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_list ON tasks(list_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id)`,
		`CREATE TABLE IF NOT EXISTS focus_sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			task_id TEXT NOT NULL DEFAULT '',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			points_earned INTEGER NOT NULL DEFAULT 0,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON focus_sessions(owner_id)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL,
			code_ci TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			member_count INTEGER NOT NULL DEFAULT 0,
			task_count INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_groups_code_ci ON groups(code_ci)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member',
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			joined_at TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_group ON group_members(group_id)`,
	}
	for _, s := range stmts {
		if _, err := d.sql.Exec(s); err != nil {
			return fmt.Errorf("local cache migration: %w", err)
		}
	}
	return nil
}

// notify wakes every live query watching kind. Called after each write.
func (d *DB) notify(kind Kind) {
	d.hub.notify(kind)
}

// Time columns are stored as RFC 3339 text. SQLite has no native time type
// and text keeps rows inspectable with the sqlite3 shell.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}

// watch registers a live query for kind. The returned channel receives the
// current result of run immediately and again after every write to the
// kind's table, until ctx is canceled. Emissions coalesce: a slow consumer
// sees the latest state, not every intermediate one.
func watch[T any](ctx context.Context, d *DB, kind Kind, run func(context.Context) ([]T, error)) (<-chan []T, error) {
	first, err := run(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []T, 1)
	out <- first

	wake := d.hub.subscribe(kind)
	go func() {
		defer close(out)
		defer d.hub.unsubscribe(kind, wake)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-wake:
				if !ok {
					return
				}
				res, err := run(ctx)
				if err != nil {
					if ctx.Err() == nil {
						d.log.Warn("live query re-evaluation failed",
							zap.String("kind", string(kind)), zap.Error(err))
					}
					continue
				}
				// Latest-wins: replace an unconsumed emission.
				select {
				case out <- res:
				default:
					select {
					case <-out:
					default:
					}
					select {
					case out <- res:
					default:
					}
				}
			}
		}
	}()
	return out, nil
}
