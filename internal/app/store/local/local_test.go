package local_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

func setup(t *testing.T) *local.DB {
	t.Helper()
	db, err := local.Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open local cache: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestListRoundTrip(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	l := models.TodoList{
		ID:        "l1",
		OwnerID:   "u1",
		Name:      "Groceries",
		Color:     "#ff8800",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Synced:    false,
	}
	if err := db.PutList(ctx, l); err != nil {
		t.Fatalf("PutList failed: %v", err)
	}

	got, err := db.GetList(ctx, "l1")
	if err != nil {
		t.Fatalf("GetList failed: %v", err)
	}
	if got.Name != l.Name || got.OwnerID != l.OwnerID || got.Color != l.Color {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.Synced {
		t.Error("expected synced=false after unconfirmed write")
	}
	if !got.CreatedAt.Equal(l.CreatedAt) {
		t.Errorf("created_at mismatch: got %v, want %v", got.CreatedAt, l.CreatedAt)
	}

	// Upsert with the confirmed copy flips the flag in place.
	l.Synced = true
	if err := db.PutList(ctx, l); err != nil {
		t.Fatalf("PutList (upsert) failed: %v", err)
	}
	got, err = db.GetList(ctx, "l1")
	if err != nil {
		t.Fatalf("GetList failed: %v", err)
	}
	if !got.Synced {
		t.Error("expected synced=true after confirmed write")
	}
}

func TestGetList_Missing(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	_, err := db.GetList(ctx, "nope")
	if !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListsByOwner_ScopedAndOrdered(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		l := models.TodoList{ID: id, OwnerID: "u1", Name: id, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := db.PutList(ctx, l); err != nil {
			t.Fatalf("PutList failed: %v", err)
		}
	}
	if err := db.PutList(ctx, models.TodoList{ID: "x", OwnerID: "u2", Name: "other", CreatedAt: base}); err != nil {
		t.Fatalf("PutList failed: %v", err)
	}

	ls, err := db.ListsByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListsByOwner failed: %v", err)
	}
	if len(ls) != 3 {
		t.Fatalf("expected 3 lists, got %d", len(ls))
	}
	// Newest first.
	if ls[0].ID != "c" || ls[2].ID != "a" {
		t.Errorf("unexpected order: %s, %s, %s", ls[0].ID, ls[1].ID, ls[2].ID)
	}
}

func TestUnsyncedLists(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	now := time.Now().UTC()
	put := func(id string, synced bool) {
		l := models.TodoList{ID: id, OwnerID: "u1", Name: id, CreatedAt: now, Synced: synced}
		if err := db.PutList(ctx, l); err != nil {
			t.Fatalf("PutList failed: %v", err)
		}
	}
	put("s1", true)
	put("p1", false)
	put("p2", false)

	pending, err := db.UnsyncedLists(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedLists failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 unsynced lists, got %d", len(pending))
	}
	for _, l := range pending {
		if l.Synced {
			t.Errorf("list %s reported synced in the unsynced scan", l.ID)
		}
	}

	limited, err := db.UnsyncedLists(ctx, 1)
	if err != nil {
		t.Fatalf("UnsyncedLists failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(limited))
	}
}

func TestTaskRoundTrip_NestedFields(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	due := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Millisecond)
	tk := models.Task{
		ID:          "t1",
		ListID:      "l1",
		OwnerID:     "u1",
		Title:       "Write report",
		Description: "quarterly numbers",
		Priority:    models.PriorityUrgent,
		DueAt:       &due,
		Tags:        []string{"work", "deadline"},
		Subtasks: []models.Subtask{
			{ID: "s1", Title: "gather data", Done: true},
			{ID: "s2", Title: "draft"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := db.PutTask(ctx, tk); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	got, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Priority != models.PriorityUrgent {
		t.Errorf("priority = %v, want urgent", got.Priority)
	}
	if got.DueAt == nil || !got.DueAt.Equal(due) {
		t.Errorf("due_at mismatch: got %v", got.DueAt)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" {
		t.Errorf("tags mismatch: %v", got.Tags)
	}
	if len(got.Subtasks) != 2 || !got.Subtasks[0].Done || got.Subtasks[1].Title != "draft" {
		t.Errorf("subtasks mismatch: %+v", got.Subtasks)
	}
}

func TestTasksByList_OrderedAscending(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	base := time.Now().UTC()
	for i, id := range []string{"t1", "t2", "t3"} {
		tk := models.Task{ID: id, ListID: "l1", OwnerID: "u1", Title: id, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := db.PutTask(ctx, tk); err != nil {
			t.Fatalf("PutTask failed: %v", err)
		}
	}

	ts, err := db.TasksByList(ctx, "l1")
	if err != nil {
		t.Fatalf("TasksByList failed: %v", err)
	}
	if len(ts) != 3 || ts[0].ID != "t1" || ts[2].ID != "t3" {
		t.Fatalf("unexpected order or count: %+v", ts)
	}
}

func TestDeleteTask(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	tk := models.Task{ID: "t1", ListID: "l1", OwnerID: "u1", Title: "x", CreatedAt: time.Now().UTC()}
	if err := db.PutTask(ctx, tk); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	if err := db.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := db.GetTask(ctx, "t1"); !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestWatchLists_EmitsInitialAndOnWrite(t *testing.T) {
	db := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PutList(ctx, models.TodoList{ID: "l1", OwnerID: "u1", Name: "first", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("PutList failed: %v", err)
	}

	ch, err := db.WatchLists(ctx, "u1")
	if err != nil {
		t.Fatalf("WatchLists failed: %v", err)
	}

	select {
	case ls := <-ch:
		if len(ls) != 1 || ls[0].ID != "l1" {
			t.Fatalf("unexpected initial emission: %+v", ls)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial emission")
	}

	if err := db.PutList(ctx, models.TodoList{ID: "l2", OwnerID: "u1", Name: "second", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("PutList failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ls := <-ch:
			if len(ls) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("write never reflected in the watch channel")
		}
	}
}

func TestWatchLists_ClosesOnCancel(t *testing.T) {
	db := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := db.WatchLists(ctx, "u1")
	if err != nil {
		t.Fatalf("WatchLists failed: %v", err)
	}
	<-ch // initial emission
	cancel()

	select {
	case _, open := <-ch:
		if open {
			// One buffered emission may still be in flight; the next receive
			// must observe the close.
			if _, open := <-ch; open {
				t.Fatal("channel still open after cancel")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestGroupMirrorRoundTrip(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	g := models.Group{
		ID:          "g1",
		Name:        "Study Group",
		Code:        "K3F9QZ",
		CodeCI:      "k3f9qz",
		OwnerID:     "u1",
		MemberCount: 1,
		Active:      true,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := db.PutGroup(ctx, g, true); err != nil {
		t.Fatalf("PutGroup failed: %v", err)
	}

	got, err := db.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Code != "K3F9QZ" || !got.Active || got.MemberCount != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	found, err := db.ActiveGroupCodeExists(ctx, "k3f9qz")
	if err != nil {
		t.Fatalf("ActiveGroupCodeExists failed: %v", err)
	}
	if !found {
		t.Error("expected active code to be found")
	}

	// Deactivated groups release their code.
	g.Active = false
	if err := db.PutGroup(ctx, g, true); err != nil {
		t.Fatalf("PutGroup failed: %v", err)
	}
	found, err = db.ActiveGroupCodeExists(ctx, "k3f9qz")
	if err != nil {
		t.Fatalf("ActiveGroupCodeExists failed: %v", err)
	}
	if found {
		t.Error("expected inactive group's code to be released")
	}
}

func TestMemberMirrorRoundTrip(t *testing.T) {
	db := setup(t)
	ctx := testCtx(t)

	m := models.GroupMember{
		ID:          models.MemberID("g1", "u1"),
		GroupID:     "g1",
		UserID:      "u1",
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Role:        models.RoleOwner,
		Active:      true,
		JoinedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := db.PutMember(ctx, m, true); err != nil {
		t.Fatalf("PutMember failed: %v", err)
	}

	got, err := db.GetMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if got.Role != models.RoleOwner || !got.Active || got.DisplayName != "Alice" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.JoinedAt.Equal(m.JoinedAt) {
		t.Errorf("joined_at mismatch: got %v, want %v", got.JoinedAt, m.JoinedAt)
	}

	if _, err := db.GetMember(ctx, "nope"); !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Fatalf("expected not-found for unknown member, got %v", err)
	}
}
