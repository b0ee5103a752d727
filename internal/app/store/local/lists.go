// internal/app/store/local/lists.go
package local

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
)

const listCols = `id, owner_id, name, color, task_count, completed_task_count, created_at, synced`

func scanList(row interface{ Scan(...any) error }) (models.TodoList, error) {
	var l models.TodoList
	var createdAt string
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Color, &l.TaskCount,
		&l.CompletedTaskCount, &createdAt, &l.Synced); err != nil {
		return models.TodoList{}, err
	}
	l.CreatedAt = decodeTime(createdAt)
	return l, nil
}

// GetList returns the cached list or a NotFound error.
func (d *DB) GetList(ctx context.Context, id string) (models.TodoList, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+listCols+` FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TodoList{}, taskerr.NotFound("list %s not in local cache", id)
	}
	if err != nil {
		return models.TodoList{}, taskerr.Transport(err, "read list")
	}
	return l, nil
}

// PutList upserts the list row (overwrite conflict policy) and wakes list
// live queries. Durable on return.
func (d *DB) PutList(ctx context.Context, l models.TodoList) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO lists (`+listCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			color = excluded.color,
			task_count = excluded.task_count,
			completed_task_count = excluded.completed_task_count,
			created_at = excluded.created_at,
			synced = excluded.synced`,
		l.ID, l.OwnerID, l.Name, l.Color, l.TaskCount, l.CompletedTaskCount,
		encodeTime(l.CreatedAt), l.Synced)
	if err != nil {
		return taskerr.Transport(err, "write list")
	}
	d.notify(KindList)
	return nil
}

// DeleteList removes the list row. Deleting an absent row is not an error.
func (d *DB) DeleteList(ctx context.Context, id string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id); err != nil {
		return taskerr.Transport(err, "delete list")
	}
	d.notify(KindList)
	return nil
}

// ListsByOwner returns the owner's lists, newest first.
func (d *DB) ListsByOwner(ctx context.Context, ownerID string) ([]models.TodoList, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT `+listCols+` FROM lists WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, taskerr.Transport(err, "query lists")
	}
	defer rows.Close()

	var out []models.TodoList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, taskerr.Transport(err, "scan list")
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, taskerr.Transport(err, "query lists")
	}
	return out, nil
}

// UnsyncedLists returns up to limit lists still awaiting remote confirmation.
func (d *DB) UnsyncedLists(ctx context.Context, limit int) ([]models.TodoList, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT `+listCols+` FROM lists WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, taskerr.Transport(err, "query unsynced lists")
	}
	defer rows.Close()

	var out []models.TodoList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, taskerr.Transport(err, "scan list")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// WatchLists is a live query over the owner's lists.
func (d *DB) WatchLists(ctx context.Context, ownerID string) (<-chan []models.TodoList, error) {
	return watch(ctx, d, KindList, func(ctx context.Context) ([]models.TodoList, error) {
		return d.ListsByOwner(ctx, ownerID)
	})
}
