package groups_test

import (
	"context"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/app/groups"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"go.uber.org/zap"
)

func TestObserveGroup_EmitsCachedSnapshotFirst(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	views := groups.NewViewReconciler(db, rem, zap.NewNop())
	fx := testutil.NewFixtures(t, db, rem)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateRemoteGroup(ctx, "alice", "Study Group", "AB12CD")
	if err := db.PutGroup(ctx, g, true); err != nil {
		t.Fatalf("PutGroup failed: %v", err)
	}

	ch, err := views.ObserveGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("ObserveGroup failed: %v", err)
	}

	select {
	case got := <-ch:
		if got == nil || got.ID != g.ID {
			t.Fatalf("unexpected first emission: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no cached snapshot emitted")
	}
}

func TestObserveGroup_NilForMissingGroup(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	views := groups.NewViewReconciler(db, rem, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ch, err := views.ObserveGroup(ctx, "never-created")
	if err != nil {
		t.Fatalf("ObserveGroup failed: %v", err)
	}

	select {
	case got := <-ch:
		if got != nil {
			t.Fatalf("expected nil emission for a group that never existed, got %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no emission for missing group")
	}
}

func TestObserveGroup_SuppressesRemoteMissWithLocalSnapshot(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	views := groups.NewViewReconciler(db, rem, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Cached locally but absent remotely, like a view opened mid-outage.
	g := models.Group{ID: "g1", Name: "Cached", Code: "AB12CD", CodeCI: "ab12cd",
		OwnerID: "alice", MemberCount: 1, Active: true, CreatedAt: time.Now().UTC()}
	if err := db.PutGroup(ctx, g, true); err != nil {
		t.Fatalf("PutGroup failed: %v", err)
	}

	ch, err := views.ObserveGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("ObserveGroup failed: %v", err)
	}

	first := <-ch
	if first == nil || first.ID != "g1" {
		t.Fatalf("unexpected first emission: %+v", first)
	}

	// The remote's "does not exist" snapshot must not surface as nil.
	select {
	case got, ok := <-ch:
		if ok && got == nil {
			t.Fatal("remote miss leaked through despite a local snapshot")
		}
	case <-time.After(200 * time.Millisecond):
		// No further emission is the expected quiet outcome.
	}
}

func TestObserveGroup_FollowsRemoteUpdates(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	views := groups.NewViewReconciler(db, rem, zap.NewNop())
	fx := testutil.NewFixtures(t, db, rem)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateRemoteGroup(ctx, "alice", "Before", "AB12CD")

	ch, err := views.ObserveGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("ObserveGroup failed: %v", err)
	}
	<-ch // initial snapshot

	if err := rem.Update(ctx, remote.GroupPath(g.ID), map[string]any{"name": "After"}); err != nil {
		t.Fatalf("remote update failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got, ok := <-ch:
			if !ok {
				t.Fatal("observe channel closed early")
			}
			if got != nil && got.Name == "After" {
				// The update also landed in the local mirror.
				cached, err := db.GetGroup(ctx, g.ID)
				if err != nil {
					t.Fatalf("GetGroup failed: %v", err)
				}
				if cached.Name != "After" {
					t.Errorf("local mirror not refreshed: %q", cached.Name)
				}
				return
			}
		case <-deadline:
			t.Fatal("remote update never surfaced")
		}
	}
}

func TestObserveMembers_ActiveOnlyOrdered(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	alloc := groups.NewCodeAllocator(db, rem, zap.NewNop())
	engine := groups.NewMembershipEngine(db, rem, alloc, zap.NewNop())
	views := groups.NewViewReconciler(db, rem, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g, err := engine.CreateGroup(ctx, "alice", testutil.Profile("alice"), "Study Group", "", "")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	for _, u := range []string{"bob", "carol"} {
		time.Sleep(2 * time.Millisecond)
		if _, err := engine.JoinGroup(ctx, u, testutil.Profile(u), g.Code); err != nil {
			t.Fatalf("JoinGroup(%s) failed: %v", u, err)
		}
	}
	if err := engine.LeaveGroup(ctx, "bob", g.ID); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}

	ch, err := views.ObserveMembers(ctx, g.ID)
	if err != nil {
		t.Fatalf("ObserveMembers failed: %v", err)
	}

	select {
	case members := <-ch:
		if len(members) != 2 {
			t.Fatalf("expected 2 active members, got %d", len(members))
		}
		if members[0].UserID != "alice" || members[1].UserID != "carol" {
			t.Errorf("unexpected order: %s, %s", members[0].UserID, members[1].UserID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no member snapshot emitted")
	}
}

func TestObserveGroup_StopsOnCancel(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	views := groups.NewViewReconciler(db, rem, zap.NewNop())
	fx := testutil.NewFixtures(t, db, rem)

	setupCtx, cancelSetup := testutil.TestContext()
	defer cancelSetup()
	g := fx.CreateRemoteGroup(setupCtx, "alice", "Study Group", "AB12CD")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := views.ObserveGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("ObserveGroup failed: %v", err)
	}
	<-ch
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
