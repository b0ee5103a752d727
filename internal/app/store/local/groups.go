// internal/app/store/local/groups.go
package local

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
)

const groupCols = `id, name, description, code, code_ci, owner_id, color,
	member_count, task_count, active, created_at, synced`

func scanGroup(row interface{ Scan(...any) error }) (models.Group, bool, error) {
	var g models.Group
	var createdAt string
	var synced bool
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Code, &g.CodeCI,
		&g.OwnerID, &g.Color, &g.MemberCount, &g.TaskCount, &g.Active,
		&createdAt, &synced); err != nil {
		return models.Group{}, false, err
	}
	g.CreatedAt = decodeTime(createdAt)
	return g, synced, nil
}

// GetGroup returns the cached group or a NotFound error.
func (d *DB) GetGroup(ctx context.Context, id string) (models.Group, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, _, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, taskerr.NotFound("group %s not in local cache", id)
	}
	if err != nil {
		return models.Group{}, taskerr.Transport(err, "read group")
	}
	return g, nil
}

// PutGroup upserts the group row. Group data is remote-first, so callers pass
// synced=true when mirroring a confirmed remote document.
func (d *DB) PutGroup(ctx context.Context, g models.Group, synced bool) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO groups (`+groupCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			code = excluded.code,
			code_ci = excluded.code_ci,
			owner_id = excluded.owner_id,
			color = excluded.color,
			member_count = excluded.member_count,
			task_count = excluded.task_count,
			active = excluded.active,
			created_at = excluded.created_at,
			synced = excluded.synced`,
		g.ID, g.Name, g.Description, g.Code, g.CodeCI, g.OwnerID, g.Color,
		g.MemberCount, g.TaskCount, g.Active, encodeTime(g.CreatedAt), synced)
	if err != nil {
		return taskerr.Transport(err, "write group")
	}
	d.notify(KindGroup)
	return nil
}

// ActiveGroupCodeExists reports whether any cached active group carries the
// given case-folded code.
func (d *DB) ActiveGroupCodeExists(ctx context.Context, codeCI string) (bool, error) {
	var n int
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM groups WHERE code_ci = ? AND active = 1`, codeCI).Scan(&n)
	if err != nil {
		return false, taskerr.Transport(err, "query group codes")
	}
	return n > 0, nil
}

// PutMember upserts the cached membership row.
func (d *DB) PutMember(ctx context.Context, m models.GroupMember, synced bool) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, user_id, display_name, email,
			avatar_url, role, tasks_completed, active, joined_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			role = excluded.role,
			tasks_completed = excluded.tasks_completed,
			active = excluded.active,
			joined_at = excluded.joined_at,
			synced = excluded.synced`,
		m.ID, m.GroupID, m.UserID, m.DisplayName, m.Email, m.AvatarURL,
		string(m.Role), m.TasksCompleted, m.Active, encodeTime(m.JoinedAt), synced)
	if err != nil {
		return taskerr.Transport(err, "write member")
	}
	d.notify(KindMember)
	return nil
}

// GetMember returns the cached membership row or a NotFound error.
func (d *DB) GetMember(ctx context.Context, id string) (models.GroupMember, error) {
	var m models.GroupMember
	var role, joinedAt string
	var synced bool
	err := d.sql.QueryRowContext(ctx, `
		SELECT id, group_id, user_id, display_name, email, avatar_url, role,
			tasks_completed, active, joined_at, synced
		FROM group_members WHERE id = ?`, id).
		Scan(&m.ID, &m.GroupID, &m.UserID, &m.DisplayName, &m.Email, &m.AvatarURL,
			&role, &m.TasksCompleted, &m.Active, &joinedAt, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMember{}, taskerr.NotFound("member %s not in local cache", id)
	}
	if err != nil {
		return models.GroupMember{}, taskerr.Transport(err, "read member")
	}
	m.Role = models.Role(role)
	m.JoinedAt = decodeTime(joinedAt)
	return m, nil
}
