// internal/app/store/local/sessions.go
package local

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
)

const sessionCols = `id, owner_id, task_id, duration_seconds, started_at, ended_at,
	completed, points_earned, synced`

func scanSession(row interface{ Scan(...any) error }) (models.FocusSession, error) {
	var s models.FocusSession
	var startedAt, endedAt string
	if err := row.Scan(&s.ID, &s.OwnerID, &s.TaskID, &s.Duration,
		&startedAt, &endedAt, &s.Completed, &s.PointsEarned, &s.Synced); err != nil {
		return models.FocusSession{}, err
	}
	s.StartedAt = decodeTime(startedAt)
	s.EndedAt = decodeTime(endedAt)
	return s, nil
}

// GetSession returns the cached focus session or a NotFound error.
func (d *DB) GetSession(ctx context.Context, id string) (models.FocusSession, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM focus_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FocusSession{}, taskerr.NotFound("session %s not in local cache", id)
	}
	if err != nil {
		return models.FocusSession{}, taskerr.Transport(err, "read session")
	}
	return s, nil
}

// PutSession upserts the session row and wakes session live queries.
func (d *DB) PutSession(ctx context.Context, s models.FocusSession) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO focus_sessions (`+sessionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			task_id = excluded.task_id,
			duration_seconds = excluded.duration_seconds,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			completed = excluded.completed,
			points_earned = excluded.points_earned,
			synced = excluded.synced`,
		s.ID, s.OwnerID, s.TaskID, s.Duration, encodeTime(s.StartedAt),
		encodeTime(s.EndedAt), s.Completed, s.PointsEarned, s.Synced)
	if err != nil {
		return taskerr.Transport(err, "write session")
	}
	d.notify(KindSession)
	return nil
}

// DeleteSession removes the session row.
func (d *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM focus_sessions WHERE id = ?`, id); err != nil {
		return taskerr.Transport(err, "delete session")
	}
	d.notify(KindSession)
	return nil
}

// SessionsByOwner returns the user's sessions, most recent first.
func (d *DB) SessionsByOwner(ctx context.Context, ownerID string) ([]models.FocusSession, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM focus_sessions WHERE owner_id = ? ORDER BY started_at DESC`, ownerID)
	if err != nil {
		return nil, taskerr.Transport(err, "query sessions")
	}
	defer rows.Close()

	var out []models.FocusSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, taskerr.Transport(err, "scan session")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, taskerr.Transport(err, "query sessions")
	}
	return out, nil
}

// WatchSessions is a live query over the user's sessions.
func (d *DB) WatchSessions(ctx context.Context, ownerID string) (<-chan []models.FocusSession, error) {
	return watch(ctx, d, KindSession, func(ctx context.Context) ([]models.FocusSession, error) {
		return d.SessionsByOwner(ctx, ownerID)
	})
}
