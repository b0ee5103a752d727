package groups_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	groupsfeature "github.com/taskmesh/taskmesh/internal/app/features/groups"
	groupscore "github.com/taskmesh/taskmesh/internal/app/groups"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*testutil.MemRemote, http.Handler) {
	t.Helper()
	db := testutil.SetupLocalDB(t)
	rem := testutil.NewMemRemote()
	alloc := groupscore.NewCodeAllocator(db, rem, zap.NewNop())
	engine := groupscore.NewMembershipEngine(db, rem, alloc, zap.NewNop())
	h := groupsfeature.NewHandler(engine, alloc, db, rem, zap.NewNop())
	return rem, groupsfeature.Routes(h)
}

func createGroup(t *testing.T, router http.Handler, ownerID, name string) models.Group {
	t.Helper()
	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", ownerID,
		`{"name":"`+name+`","profile":{"display_name":"`+ownerID+`"}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("group create status = %d: %s", rec.Code, rec.Body.String())
	}
	var g models.Group
	if err := json.NewDecoder(rec.Body).Decode(&g); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return g
}

func TestCreateAndGetGroup(t *testing.T) {
	_, router := setup(t)

	g := createGroup(t, router, "alice", "Study Group")
	if g.Code == "" || !g.Active || g.MemberCount != 1 {
		t.Errorf("unexpected group: %+v", g)
	}

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/"+g.ID, "alice", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJoinFlow_EndToEnd(t *testing.T) {
	_, router := setup(t)

	g := createGroup(t, router, "alice", "Study Group")

	// Code validation endpoint sees the live code, any casing.
	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/codes/"+g.Code, "bob", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	var v struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !v.Valid {
		t.Fatal("live code reported invalid")
	}

	// Join.
	req = testutil.NewAuthenticatedRequest(http.MethodPost, "/join", "bob",
		`{"code":"`+g.Code+`","profile":{"display_name":"Bob"}}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d: %s", rec.Code, rec.Body.String())
	}

	// Double join conflicts.
	req = testutil.NewAuthenticatedRequest(http.MethodPost, "/join", "bob",
		`{"code":"`+g.Code+`","profile":{"display_name":"Bob"}}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double join status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	// Member list shows both, owner first.
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/"+g.ID+"/members", "alice", "")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("members status = %d", rec.Code)
	}
	var members []models.GroupMember
	if err := json.NewDecoder(rec.Body).Decode(&members); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestLeave_OwnerForbidden(t *testing.T) {
	_, router := setup(t)

	g := createGroup(t, router, "alice", "Study Group")

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/"+g.ID+"/leave", "alice", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("owner leave status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestRoleUpdate_Endpoint(t *testing.T) {
	_, router := setup(t)

	g := createGroup(t, router, "alice", "Study Group")
	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/join", "bob",
		`{"code":"`+g.Code+`","profile":{"display_name":"Bob"}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d", rec.Code)
	}

	req = testutil.NewAuthenticatedRequest(http.MethodPut, "/"+g.ID+"/members/bob/role", "alice",
		`{"role":"admin"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("role update status = %d: %s", rec.Code, rec.Body.String())
	}

	// Granting ownership is rejected as validation.
	req = testutil.NewAuthenticatedRequest(http.MethodPut, "/"+g.ID+"/members/bob/role", "alice",
		`{"role":"owner"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("owner grant status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteGroup_ThenGetNotFound(t *testing.T) {
	_, router := setup(t)

	g := createGroup(t, router, "alice", "Study Group")

	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/"+g.ID, "alice", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}

	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/"+g.ID, "alice", "")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}
