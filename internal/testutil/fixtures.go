// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
)

// Fixtures provides helper methods for creating test data in both stores.
type Fixtures struct {
	local  *local.DB
	remote remote.Store
	t      *testing.T
}

// NewFixtures creates a Fixtures instance. Either store may be nil when a
// test only touches one side.
func NewFixtures(t *testing.T, localDB *local.DB, remoteStore remote.Store) *Fixtures {
	t.Helper()
	return &Fixtures{local: localDB, remote: remoteStore, t: t}
}

// Profile returns a member profile snapshot for the given name.
func Profile(name string) models.MemberProfile {
	return models.MemberProfile{
		DisplayName: name,
		Email:       name + "@test.com",
		AvatarURL:   "https://avatars.test/" + name,
	}
}

// CreateList writes a list into the local cache.
func (f *Fixtures) CreateList(ctx context.Context, ownerID, name string) models.TodoList {
	f.t.Helper()
	l := models.TodoList{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Synced:    true,
	}
	if err := f.local.PutList(ctx, l); err != nil {
		f.t.Fatalf("failed to create test list: %v", err)
	}
	return l
}

// CreateTask writes a task into the local cache.
func (f *Fixtures) CreateTask(ctx context.Context, ownerID, listID, title string, completed bool) models.Task {
	f.t.Helper()
	tk := models.Task{
		ID:        uuid.NewString(),
		ListID:    listID,
		OwnerID:   ownerID,
		Title:     title,
		Priority:  models.PriorityMedium,
		CreatedAt: time.Now().UTC(),
		Synced:    true,
	}
	if completed {
		tk.SetCompleted(true, time.Now())
	}
	if err := f.local.PutTask(ctx, tk); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return tk
}

// CreateRemoteGroup writes an active group document plus its owner
// membership straight into the remote store, bypassing the engine.
func (f *Fixtures) CreateRemoteGroup(ctx context.Context, ownerID, name, code string) models.Group {
	f.t.Helper()
	g := models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Code:        strings.ToUpper(code),
		CodeCI:      text.Fold(code),
		OwnerID:     ownerID,
		MemberCount: 1,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := f.remote.Set(ctx, remote.GroupPath(g.ID), g); err != nil {
		f.t.Fatalf("failed to create remote group: %v", err)
	}
	owner := models.GroupMember{
		ID:          models.MemberID(g.ID, ownerID),
		GroupID:     g.ID,
		UserID:      ownerID,
		DisplayName: ownerID,
		Role:        models.RoleOwner,
		Active:      true,
		JoinedAt:    g.CreatedAt,
	}
	if err := f.remote.Set(ctx, remote.MemberPath(g.ID, owner.ID), owner); err != nil {
		f.t.Fatalf("failed to create remote owner membership: %v", err)
	}
	return g
}
