package lists_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskmesh/taskmesh/internal/app/features/lists"
	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*appsync.Syncer, http.Handler) {
	t.Helper()
	db := testutil.SetupLocalDB(t)
	syncer := appsync.New(db, testutil.NewMemRemote(), zap.NewNop())
	t.Cleanup(syncer.Wait)
	h := lists.NewHandler(syncer, zap.NewNop())
	return syncer, lists.Routes(h)
}

func TestCreateList_Created(t *testing.T) {
	_, router := setup(t)

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", "u1",
		`{"name":"Groceries","color":"#ff8800"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var got models.TodoList
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Name != "Groceries" || got.OwnerID != "u1" {
		t.Errorf("unexpected response: %+v", got)
	}
	if got.Synced {
		t.Error("create response must report synced=false")
	}
}

func TestCreateList_MissingUser(t *testing.T) {
	_, router := setup(t)

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", "", `{"name":"x"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateList_ValidationMapsTo400(t *testing.T) {
	_, router := setup(t)

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", "u1", `{"name":""}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestListLists_OwnedOnly(t *testing.T) {
	syncer, router := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, owner := range []string{"u1", "u1", "u2"} {
		if _, err := syncer.CreateList(ctx, models.TodoList{OwnerID: owner, Name: "L"}); err != nil {
			t.Fatalf("CreateList failed: %v", err)
		}
	}

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/", "u1", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ls []models.TodoList
	if err := json.NewDecoder(rec.Body).Decode(&ls); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(ls) != 2 {
		t.Errorf("expected 2 lists for u1, got %d", len(ls))
	}
}

func TestUpdateList_ForeignListForbidden(t *testing.T) {
	syncer, router := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	l, err := syncer.CreateList(ctx, models.TodoList{OwnerID: "u2", Name: "theirs"})
	if err != nil {
		t.Fatalf("CreateList failed: %v", err)
	}

	req := testutil.NewAuthenticatedRequest(http.MethodPut, "/"+l.ID, "u1", `{"name":"mine now"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteList_UnknownMapsTo404(t *testing.T) {
	_, router := setup(t)

	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/nope", "u1", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}
