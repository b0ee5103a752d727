package sync_test

import (
	"testing"
	"time"

	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"go.uber.org/zap"
)

func TestResyncPass_DrainsAfterReconnect(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	syncer := appsync.New(db, rem, zap.NewNop())
	worker := appsync.NewResync(syncer, zap.NewNop(), time.Minute, 50)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rem.SetOffline(true)

	l, err := syncer.CreateList(ctx, models.TodoList{OwnerID: "u1", Name: "offline"})
	if err != nil {
		t.Fatalf("CreateList failed: %v", err)
	}
	tk, err := syncer.CreateTask(ctx, models.Task{OwnerID: "u1", ListID: l.ID, Title: "offline task"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	syncer.Wait()

	pendingLists, err := db.UnsyncedLists(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedLists failed: %v", err)
	}
	pendingTasks, err := db.UnsyncedTasks(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedTasks failed: %v", err)
	}
	if len(pendingLists) != 1 || len(pendingTasks) != 1 {
		t.Fatalf("expected 1 pending list and 1 pending task, got %d/%d",
			len(pendingLists), len(pendingTasks))
	}

	// A pass while still offline changes nothing.
	worker.Pass(ctx)
	if got, _ := db.GetList(ctx, l.ID); got.Synced {
		t.Fatal("offline pass must not flip the sync flag")
	}

	rem.SetOffline(false)
	worker.Pass(ctx)
	syncer.Wait()

	gotList, err := db.GetList(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetList failed: %v", err)
	}
	gotTask, err := db.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if !gotList.Synced || !gotTask.Synced {
		t.Errorf("expected both records confirmed after reconnect pass, got list=%v task=%v",
			gotList.Synced, gotTask.Synced)
	}

	pendingLists, _ = db.UnsyncedLists(ctx, 10)
	pendingTasks, _ = db.UnsyncedTasks(ctx, 10)
	if len(pendingLists) != 0 || len(pendingTasks) != 0 {
		t.Errorf("expected no pending records after drain, got %d/%d",
			len(pendingLists), len(pendingTasks))
	}
}

func TestResync_StartStop(t *testing.T) {
	db := testutil.SetupLocalDB(t)
	syncer := appsync.New(db, testutil.NewMemRemote(), zap.NewNop())
	worker := appsync.NewResync(syncer, zap.NewNop(), 10*time.Millisecond, 10)

	worker.Start()
	time.Sleep(50 * time.Millisecond)
	worker.Stop()
	// Stop blocks until the loop exits; reaching here is the assertion.
}
