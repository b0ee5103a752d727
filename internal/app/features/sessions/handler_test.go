package sessions_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskmesh/taskmesh/internal/app/features/sessions"
	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"go.uber.org/zap"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	db := testutil.SetupLocalDB(t)
	syncer := appsync.New(db, testutil.NewMemRemote(), zap.NewNop())
	h := sessions.NewHandler(syncer, zap.NewNop())
	return sessions.Routes(h)
}

func TestCreateSession(t *testing.T) {
	router := setup(t)

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", "u1",
		`{"duration_seconds":1500,"completed":true,"points_earned":25}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var got models.FocusSession
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.OwnerID != "u1" || got.Duration != 1500 || !got.Synced {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestListSessions_OwnedOnly(t *testing.T) {
	router := setup(t)

	for _, uid := range []string{"u1", "u1", "u2"} {
		req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", uid, `{"duration_seconds":60}`)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/", "u1", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ss []models.FocusSession
	if err := json.NewDecoder(rec.Body).Decode(&ss); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(ss) != 2 {
		t.Errorf("expected 2 sessions for u1, got %d", len(ss))
	}
}

func TestDeleteSession_ForeignForbidden(t *testing.T) {
	router := setup(t)

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/", "u2", `{"duration_seconds":60}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var fs models.FocusSession
	if err := json.NewDecoder(rec.Body).Decode(&fs); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	req = testutil.NewAuthenticatedRequest(http.MethodDelete, "/"+fs.ID, "u1", "")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}
