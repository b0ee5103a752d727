// internal/app/features/sessions/handler.go

// Package sessions is the JSON API over focus-session storage.
package sessions

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/taskmesh/taskmesh/internal/app/features/shared"
	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"github.com/taskmesh/taskmesh/internal/app/system/authz"
	"github.com/taskmesh/taskmesh/internal/app/system/timeouts"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the sessions feature.
type Handler struct {
	Syncer *appsync.Syncer
	Log    *zap.Logger
}

// NewHandler constructs a sessions Handler.
func NewHandler(syncer *appsync.Syncer, logger *zap.Logger) *Handler {
	return &Handler{Syncer: syncer, Log: logger}
}

// Routes returns the router mounted at /sessions.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Put("/{sessionID}", h.Update)
	r.Delete("/{sessionID}", h.Delete)
	return r
}

type sessionInput struct {
	TaskID       string    `json:"task_id"`
	Duration     int       `json:"duration_seconds"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Completed    bool      `json:"completed"`
	PointsEarned int       `json:"points_earned"`
}

// Create records a finished or in-progress focus session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in sessionInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short)
	defer cancel()

	fs, err := h.Syncer.CreateSession(ctx, models.FocusSession{
		OwnerID:      uid,
		TaskID:       in.TaskID,
		Duration:     in.Duration,
		StartedAt:    in.StartedAt,
		EndedAt:      in.EndedAt,
		Completed:    in.Completed,
		PointsEarned: in.PointsEarned,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, fs)
}

// List returns the caller's sessions, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short)
	defer cancel()

	ss, err := h.Syncer.Local().SessionsByOwner(ctx, uid)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, ss)
}

// Update overwrites a session the caller owns.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in sessionInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short)
	defer cancel()

	cur, err := h.ownedSession(ctx, uid, chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	cur.TaskID = in.TaskID
	cur.Duration = in.Duration
	if !in.StartedAt.IsZero() {
		cur.StartedAt = in.StartedAt
	}
	cur.EndedAt = in.EndedAt
	cur.Completed = in.Completed
	cur.PointsEarned = in.PointsEarned

	fs, err := h.Syncer.UpdateSession(ctx, cur)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, fs)
}

// Delete removes a session the caller owns.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short)
	defer cancel()

	cur, err := h.ownedSession(ctx, uid, chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if err := h.Syncer.DeleteSession(ctx, cur.ID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) ownedSession(ctx context.Context, uid, id string) (models.FocusSession, error) {
	fs, err := h.Syncer.Local().GetSession(ctx, id)
	if err != nil {
		return models.FocusSession{}, err
	}
	if fs.OwnerID != uid {
		return models.FocusSession{}, taskerr.Authorization("session belongs to another user")
	}
	return fs, nil
}
