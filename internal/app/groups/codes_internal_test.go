package groups

import (
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"go.uber.org/zap"
)

func seedGroupWithCode(t *testing.T, rem *testutil.MemRemote, id, code string) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	err := rem.Set(ctx, remote.GroupPath(id), models.Group{
		ID:          id,
		Name:        "Seeded",
		Code:        code,
		CodeCI:      NormalizeCode(code),
		OwnerID:     "zed",
		MemberCount: 1,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed group failed: %v", err)
	}
}

func TestCreateGroup_RegeneratesOnCodeCollision(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	alloc := NewCodeAllocator(db, rem, zap.NewNop())
	engine := NewMembershipEngine(db, rem, alloc, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seedGroupWithCode(t, rem, "seed", "AAAAAA")

	// Every candidate in the first allocation collides with the seeded code,
	// so Generate exhausts its retries and hands back the taken code. The
	// store's unique index rejects the write and CreateGroup draws again.
	draws := 0
	alloc.draw = func() string {
		draws++
		if draws <= maxCodeAttempts {
			return "AAAAAA"
		}
		return "BBBBBB"
	}

	g, err := engine.CreateGroup(ctx, "alice", testutil.Profile("alice"), "Study Group", "", "")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if g.Code != "BBBBBB" {
		t.Errorf("code = %q, want the regenerated BBBBBB", g.Code)
	}
	if draws <= maxCodeAttempts {
		t.Errorf("expected a second allocation after the conflict, draws = %d", draws)
	}

	var stored models.Group
	if err := rem.Get(ctx, remote.GroupPath(g.ID), &stored); err != nil {
		t.Fatalf("created group missing remotely: %v", err)
	}
	if stored.CodeCI != NormalizeCode("BBBBBB") {
		t.Errorf("stored code_ci = %q, want %q", stored.CodeCI, NormalizeCode("BBBBBB"))
	}
}

func TestRemoteStore_RejectsDuplicateActiveCode(t *testing.T) {
	rem := testutil.NewMemRemote()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seedGroupWithCode(t, rem, "g1", "CCCCCC")

	err := rem.Set(ctx, remote.GroupPath("g2"), models.Group{
		ID:     "g2",
		Name:   "Other",
		Code:   "cccccc",
		CodeCI: NormalizeCode("cccccc"),
		Active: true,
	})
	if !taskerr.IsKind(err, taskerr.KindConflict) {
		t.Fatalf("expected conflict for duplicate active code, got %v", err)
	}

	// The index is partial: an inactive record may carry a taken code.
	err = rem.Set(ctx, remote.GroupPath("g3"), models.Group{
		ID:     "g3",
		Name:   "Retired",
		Code:   "CCCCCC",
		CodeCI: NormalizeCode("CCCCCC"),
		Active: false,
	})
	if err != nil {
		t.Fatalf("inactive duplicate must be allowed: %v", err)
	}
}
