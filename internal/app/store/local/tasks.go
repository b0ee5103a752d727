// internal/app/store/local/tasks.go
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
)

const taskCols = `id, list_id, owner_id, title, description, completed, completed_at,
	priority, due_at, remind_at, tags, subtasks, created_at, synced`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var (
		t                            models.Task
		completedAt, dueAt, remindAt sql.NullString
		priority, tags, subtasks     string
		createdAt                    string
	)
	if err := row.Scan(&t.ID, &t.ListID, &t.OwnerID, &t.Title, &t.Description,
		&t.Completed, &completedAt, &priority, &dueAt, &remindAt,
		&tags, &subtasks, &createdAt, &t.Synced); err != nil {
		return models.Task{}, err
	}
	t.CompletedAt = decodeTimePtr(completedAt)
	t.Priority = models.ParsePriority(priority)
	t.DueAt = decodeTimePtr(dueAt)
	t.RemindAt = decodeTimePtr(remindAt)
	t.CreatedAt = decodeTime(createdAt)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		t.Tags = nil
	}
	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		t.Subtasks = nil
	}
	return t, nil
}

// GetTask returns the cached task or a NotFound error.
func (d *DB) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, taskerr.NotFound("task %s not in local cache", id)
	}
	if err != nil {
		return models.Task{}, taskerr.Transport(err, "read task")
	}
	return t, nil
}

// PutTask upserts the task row and wakes task live queries.
func (d *DB) PutTask(ctx context.Context, t models.Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return taskerr.Transport(err, "encode tags")
	}
	subtasks, err := json.Marshal(t.Subtasks)
	if err != nil {
		return taskerr.Transport(err, "encode subtasks")
	}
	_, err = d.sql.ExecContext(ctx, `
		INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			list_id = excluded.list_id,
			owner_id = excluded.owner_id,
			title = excluded.title,
			description = excluded.description,
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			priority = excluded.priority,
			due_at = excluded.due_at,
			remind_at = excluded.remind_at,
			tags = excluded.tags,
			subtasks = excluded.subtasks,
			created_at = excluded.created_at,
			synced = excluded.synced`,
		t.ID, t.ListID, t.OwnerID, t.Title, t.Description, t.Completed,
		encodeTimePtr(t.CompletedAt), t.Priority.String(),
		encodeTimePtr(t.DueAt), encodeTimePtr(t.RemindAt),
		string(tags), string(subtasks), encodeTime(t.CreatedAt), t.Synced)
	if err != nil {
		return taskerr.Transport(err, "write task")
	}
	d.notify(KindTask)
	return nil
}

// DeleteTask removes the task row.
func (d *DB) DeleteTask(ctx context.Context, id string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return taskerr.Transport(err, "delete task")
	}
	d.notify(KindTask)
	return nil
}

func (d *DB) queryTasks(ctx context.Context, q string, args ...any) ([]models.Task, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, taskerr.Transport(err, "query tasks")
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, taskerr.Transport(err, "scan task")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, taskerr.Transport(err, "query tasks")
	}
	return out, nil
}

// TasksByList returns every task under a list, oldest first.
func (d *DB) TasksByList(ctx context.Context, listID string) ([]models.Task, error) {
	return d.queryTasks(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE list_id = ? ORDER BY created_at`, listID)
}

// UnsyncedTasks returns up to limit tasks still awaiting remote confirmation.
func (d *DB) UnsyncedTasks(ctx context.Context, limit int) ([]models.Task, error) {
	return d.queryTasks(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
}

// WatchTasks is a live query over a list's tasks.
func (d *DB) WatchTasks(ctx context.Context, listID string) (<-chan []models.Task, error) {
	return watch(ctx, d, KindTask, func(ctx context.Context) ([]models.Task, error) {
		return d.TasksByList(ctx, listID)
	})
}
