// internal/app/groups/engine.go
package groups

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// MembershipEngine owns the member-role state machine for groups. Every
// mutating operation resolves the actor's current membership first; a
// missing or inactive record means NONE, which only create and join accept.
//
// The remote store is authoritative for group data; confirmed documents are
// mirrored into the local cache marked synced. There are no cross-document
// transactions at these call sites, so multi-write operations (create
// group + owner membership) are sequenced and the gaps documented.
type MembershipEngine struct {
	local  *local.DB
	remote remote.Store
	codes  *CodeAllocator
	log    *zap.Logger
	now    func() time.Time
}

// NewMembershipEngine creates the engine.
func NewMembershipEngine(localDB *local.DB, remoteStore remote.Store, codes *CodeAllocator, logger *zap.Logger) *MembershipEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipEngine{
		local:  localDB,
		remote: remoteStore,
		codes:  codes,
		log:    logger,
		now:    time.Now,
	}
}

// membership resolves the (group, user) membership record. A NotFound from
// the remote store maps to (zero, false, nil): state NONE.
func (e *MembershipEngine) membership(ctx context.Context, groupID, userID string) (models.GroupMember, bool, error) {
	var m models.GroupMember
	err := e.remote.Get(ctx, remote.MemberPath(groupID, models.MemberID(groupID, userID)), &m)
	if taskerr.IsKind(err, taskerr.KindNotFound) {
		return models.GroupMember{}, false, nil
	}
	if err != nil {
		return models.GroupMember{}, false, err
	}
	return m, m.Active, nil
}

// activeGroup loads the group and rejects inactive ones as NotFound.
func (e *MembershipEngine) activeGroup(ctx context.Context, groupID string) (models.Group, error) {
	var g models.Group
	if err := e.remote.Get(ctx, remote.GroupPath(groupID), &g); err != nil {
		return models.Group{}, err
	}
	if !g.Active {
		return models.Group{}, taskerr.NotFound("group %s is no longer active", groupID)
	}
	return g, nil
}

// mirrorGroup refreshes the local cache copy of the group from the remote
// document. Best effort; a stale mirror heals on the next refresh.
func (e *MembershipEngine) mirrorGroup(ctx context.Context, groupID string) {
	var g models.Group
	if err := e.remote.Get(ctx, remote.GroupPath(groupID), &g); err != nil {
		e.log.Warn("group mirror refresh failed", zap.String("group_id", groupID), zap.Error(err))
		return
	}
	if g.MemberCount < 0 {
		g.MemberCount = 0
	}
	if err := e.local.PutGroup(ctx, g, true); err != nil {
		e.log.Warn("group mirror write failed", zap.String("group_id", groupID), zap.Error(err))
	}
}

// decrementMemberCount lowers member_count by one, floored at zero. The
// read-then-increment pair is not atomic; a drifted count self-heals here
// instead of going negative.
func (e *MembershipEngine) decrementMemberCount(ctx context.Context, groupID string) {
	var g models.Group
	if err := e.remote.Get(ctx, remote.GroupPath(groupID), &g); err == nil && g.MemberCount <= 0 {
		e.log.Warn("member count already at floor, skipping decrement", zap.String("group_id", groupID))
		return
	}
	if err := e.remote.Increment(ctx, remote.GroupPath(groupID), "member_count", -1); err != nil {
		e.log.Warn("member count decrement failed", zap.String("group_id", groupID), zap.Error(err))
	}
}

// CreateGroup creates a group with the actor as sole OWNER member.
//
// Two sequenced writes, no transaction: a crash between them leaves a group
// without an owner membership. The window is accepted; the owner record is
// rewritten on the owner's next interaction via the deterministic member id.
func (e *MembershipEngine) CreateGroup(ctx context.Context, ownerID string, profile models.MemberProfile, name, description, color string) (models.Group, error) {
	if ownerID == "" {
		return models.Group{}, taskerr.Validation("owner id is required")
	}
	if strings.TrimSpace(name) == "" {
		return models.Group{}, taskerr.Validation("group name is required")
	}

	now := e.now().UTC()
	g := models.Group{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		OwnerID:     ownerID,
		Color:       color,
		MemberCount: 1,
		Active:      true,
		CreatedAt:   now,
	}

	// The unique partial index on active code_ci is the real uniqueness
	// guarantee; one regenerate-and-retry covers the check-then-create race
	// the allocator cannot close.
	for attempt := 0; ; attempt++ {
		code, err := e.codes.Generate(ctx)
		if err != nil {
			return models.Group{}, err
		}
		g.Code = strings.ToUpper(code)
		g.CodeCI = NormalizeCode(code)
		err = e.remote.Set(ctx, remote.GroupPath(g.ID), g)
		if err == nil {
			break
		}
		if taskerr.IsKind(err, taskerr.KindConflict) && attempt == 0 {
			e.log.Warn("join code collided at create, regenerating", zap.String("code", g.Code))
			continue
		}
		return models.Group{}, err
	}

	owner := models.GroupMember{
		ID:          models.MemberID(g.ID, ownerID),
		GroupID:     g.ID,
		UserID:      ownerID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AvatarURL:   profile.AvatarURL,
		Role:        models.RoleOwner,
		Active:      true,
		JoinedAt:    now,
	}
	if err := e.remote.Set(ctx, remote.MemberPath(g.ID, owner.ID), owner); err != nil {
		return models.Group{}, taskerr.Wrap(taskerr.KindTransport, err, "group created but owner membership write failed")
	}

	if err := e.local.PutGroup(ctx, g, true); err != nil {
		e.log.Warn("group mirror write failed", zap.String("group_id", g.ID), zap.Error(err))
	}
	if err := e.local.PutMember(ctx, owner, true); err != nil {
		e.log.Warn("member mirror write failed", zap.String("member_id", owner.ID), zap.Error(err))
	}

	e.log.Info("group created", zap.String("group_id", g.ID), zap.String("code", g.Code))
	return g, nil
}

// JoinGroup adds the user as MEMBER of the active group holding code.
// Joining a group the user already actively belongs to is a Conflict and
// changes nothing. Re-joining after removal creates a fresh membership
// snapshot, which also resets the tasks-completed counter.
func (e *MembershipEngine) JoinGroup(ctx context.Context, userID string, profile models.MemberProfile, code string) (models.GroupMember, error) {
	if userID == "" {
		return models.GroupMember{}, taskerr.Validation("user id is required")
	}
	g, err := e.codes.Resolve(ctx, code)
	if err != nil {
		return models.GroupMember{}, err
	}

	if _, active, err := e.membership(ctx, g.ID, userID); err != nil {
		return models.GroupMember{}, err
	} else if active {
		return models.GroupMember{}, taskerr.Conflict("user already has an active membership in group %s", g.ID)
	}

	m := models.GroupMember{
		ID:          models.MemberID(g.ID, userID),
		GroupID:     g.ID,
		UserID:      userID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AvatarURL:   profile.AvatarURL,
		Role:        models.RoleMember,
		Active:      true,
		JoinedAt:    e.now().UTC(),
	}
	if err := e.remote.Set(ctx, remote.MemberPath(g.ID, m.ID), m); err != nil {
		return models.GroupMember{}, err
	}
	if err := e.remote.Increment(ctx, remote.GroupPath(g.ID), "member_count", 1); err != nil {
		e.log.Warn("member count increment failed", zap.String("group_id", g.ID), zap.Error(err))
	}

	if err := e.local.PutMember(ctx, m, true); err != nil {
		e.log.Warn("member mirror write failed", zap.String("member_id", m.ID), zap.Error(err))
	}
	e.mirrorGroup(ctx, g.ID)

	e.log.Info("user joined group", zap.String("group_id", g.ID), zap.String("user_id", userID))
	return m, nil
}

// LeaveGroup deactivates the actor's own membership. The OWNER cannot
// leave; ownership would be orphaned.
func (e *MembershipEngine) LeaveGroup(ctx context.Context, userID, groupID string) error {
	if _, err := e.activeGroup(ctx, groupID); err != nil {
		return err
	}
	m, active, err := e.membership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !active {
		return taskerr.Authorization("user is not a member of this group")
	}
	if m.Role == models.RoleOwner {
		return taskerr.Authorization("owner cannot leave the group")
	}

	if err := e.deactivateMember(ctx, m); err != nil {
		return err
	}
	e.decrementMemberCount(ctx, groupID)
	e.mirrorGroup(ctx, groupID)

	e.log.Info("user left group", zap.String("group_id", groupID), zap.String("user_id", userID))
	return nil
}

// RemoveMember deactivates another user's membership. Requires OWNER or
// ADMIN; the OWNER can never be removed.
func (e *MembershipEngine) RemoveMember(ctx context.Context, actorID, groupID, targetUserID string) error {
	if _, err := e.activeGroup(ctx, groupID); err != nil {
		return err
	}
	actor, active, err := e.membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !active || (actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin) {
		return taskerr.Authorization("removing members requires the owner or admin role")
	}

	target, targetActive, err := e.membership(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if !targetActive {
		return taskerr.NotFound("user %s is not an active member of group %s", targetUserID, groupID)
	}
	if target.Role == models.RoleOwner {
		return taskerr.Authorization("the group owner cannot be removed")
	}

	if err := e.deactivateMember(ctx, target); err != nil {
		return err
	}
	e.decrementMemberCount(ctx, groupID)
	e.mirrorGroup(ctx, groupID)

	e.log.Info("member removed", zap.String("group_id", groupID),
		zap.String("target_user_id", targetUserID), zap.String("actor_id", actorID))
	return nil
}

// UpdateMemberRole promotes or demotes a member between MEMBER and ADMIN.
// Only the OWNER may change roles, and ownership itself is not transferable
// through this path.
func (e *MembershipEngine) UpdateMemberRole(ctx context.Context, actorID, groupID, targetUserID string, role models.Role) error {
	if !role.Valid() {
		return taskerr.Validation("unknown role %q", role)
	}
	if role == models.RoleOwner {
		return taskerr.Validation("ownership cannot be granted through a role update")
	}
	if _, err := e.activeGroup(ctx, groupID); err != nil {
		return err
	}
	actor, active, err := e.membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !active || actor.Role != models.RoleOwner {
		return taskerr.Authorization("changing roles requires the owner role")
	}

	target, targetActive, err := e.membership(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if !targetActive {
		return taskerr.NotFound("user %s is not an active member of group %s", targetUserID, groupID)
	}
	if target.Role == models.RoleOwner {
		return taskerr.Authorization("the owner's role cannot be changed")
	}

	if err := e.remote.Update(ctx, remote.MemberPath(groupID, target.ID), map[string]any{
		"role": string(role),
	}); err != nil {
		return err
	}
	target.Role = role
	if err := e.local.PutMember(ctx, target, true); err != nil {
		e.log.Warn("member mirror write failed", zap.String("member_id", target.ID), zap.Error(err))
	}

	e.log.Info("member role updated", zap.String("group_id", groupID),
		zap.String("target_user_id", targetUserID), zap.String("role", string(role)))
	return nil
}

// UpdateGroupInfo updates group metadata. Requires OWNER or ADMIN.
func (e *MembershipEngine) UpdateGroupInfo(ctx context.Context, actorID, groupID, name, description, color string) error {
	if strings.TrimSpace(name) == "" {
		return taskerr.Validation("group name is required")
	}
	if _, err := e.activeGroup(ctx, groupID); err != nil {
		return err
	}
	actor, active, err := e.membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !active || (actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin) {
		return taskerr.Authorization("updating the group requires the owner or admin role")
	}

	if err := e.remote.Update(ctx, remote.GroupPath(groupID), map[string]any{
		"name":        strings.TrimSpace(name),
		"description": description,
		"color":       color,
	}); err != nil {
		return err
	}
	e.mirrorGroup(ctx, groupID)
	return nil
}

// DeleteGroup soft-deletes a group: the active flag flips, nothing is
// physically removed, and the join code becomes reusable. Member records
// are deactivated with it, the owner's included (never deleted).
func (e *MembershipEngine) DeleteGroup(ctx context.Context, actorID, groupID string) error {
	g, err := e.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	actor, active, err := e.membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !active || actor.Role != models.RoleOwner {
		return taskerr.Authorization("deleting the group requires the owner role")
	}

	if err := e.remote.Update(ctx, remote.GroupPath(groupID), map[string]any{
		"active": false,
	}); err != nil {
		return err
	}

	// Deactivate memberships one by one; no transaction covers this, so a
	// failure leaves stragglers that the active=false group filter hides.
	members, err := e.ActiveMembers(ctx, groupID)
	if err != nil {
		e.log.Warn("member list unavailable during group delete", zap.Error(err))
	}
	for _, m := range members {
		if err := e.deactivateMember(ctx, m); err != nil {
			e.log.Warn("member deactivation failed during group delete",
				zap.String("member_id", m.ID), zap.Error(err))
		}
	}

	g.Active = false
	if err := e.local.PutGroup(ctx, g, true); err != nil {
		e.log.Warn("group mirror write failed", zap.String("group_id", groupID), zap.Error(err))
	}

	e.log.Info("group deleted", zap.String("group_id", groupID), zap.String("actor_id", actorID))
	return nil
}

// ActiveMembers returns the group's active members ordered by join time.
func (e *MembershipEngine) ActiveMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	docs, err := e.remote.Query(ctx, remote.MembersPath(groupID),
		map[string]any{"active": true}, &remote.Sort{Field: "joined_at", Asc: true}, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.GroupMember, 0, len(docs))
	for _, raw := range docs {
		var m models.GroupMember
		if err := remote.Decode(raw, &m); err != nil {
			return nil, taskerr.Transport(err, "decode member")
		}
		out = append(out, m)
	}
	return out, nil
}

// IncrementTasksCompleted bumps the member's completion counter and the
// group's task counter after a shared task is finished.
func (e *MembershipEngine) IncrementTasksCompleted(ctx context.Context, groupID, userID string) error {
	m, active, err := e.membership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !active {
		return taskerr.Authorization("user is not a member of this group")
	}
	if err := e.remote.Increment(ctx, remote.MemberPath(groupID, m.ID), "tasks_completed", 1); err != nil {
		return err
	}
	if err := e.remote.Increment(ctx, remote.GroupPath(groupID), "task_count", 1); err != nil {
		e.log.Warn("group task count increment failed", zap.String("group_id", groupID), zap.Error(err))
	}
	return nil
}

func (e *MembershipEngine) deactivateMember(ctx context.Context, m models.GroupMember) error {
	if err := e.remote.Update(ctx, remote.MemberPath(m.GroupID, m.ID), map[string]any{
		"active": false,
	}); err != nil {
		return err
	}
	m.Active = false
	if err := e.local.PutMember(ctx, m, true); err != nil {
		e.log.Warn("member mirror write failed", zap.String("member_id", m.ID), zap.Error(err))
	}
	return nil
}
