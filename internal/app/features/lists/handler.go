// internal/app/features/lists/handler.go

// Package lists is the JSON API over the todo-list sync operations.
package lists

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskmesh/taskmesh/internal/app/features/shared"
	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"github.com/taskmesh/taskmesh/internal/app/system/authz"
	"github.com/taskmesh/taskmesh/internal/app/system/sanitize"
	"github.com/taskmesh/taskmesh/internal/app/system/timeouts"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the lists feature.
type Handler struct {
	Syncer *appsync.Syncer
	Log    *zap.Logger
}

// NewHandler constructs a lists Handler.
func NewHandler(syncer *appsync.Syncer, logger *zap.Logger) *Handler {
	return &Handler{Syncer: syncer, Log: logger}
}

// Routes returns the router mounted at /lists.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Put("/{listID}", h.Update)
	r.Delete("/{listID}", h.Delete)
	return r
}

type listInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Create makes a new list for the calling user. The response carries
// synced=false; the remote leg completes in the background.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in listInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	l, err := h.Syncer.CreateList(ctx, models.TodoList{
		OwnerID: uid,
		Name:    sanitize.Text(in.Name),
		Color:   sanitize.Text(in.Color),
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, l)
}

// List returns the calling user's lists from the local cache.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short)
	defer cancel()

	ls, err := h.Syncer.Local().ListsByOwner(ctx, uid)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, ls)
}

// Update renames or recolors a list the caller owns.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in listInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	listID := chi.URLParam(r, "listID")
	cur, err := h.Syncer.Local().GetList(ctx, listID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if cur.OwnerID != uid {
		shared.Error(w, h.Log, taskerr.Authorization("list belongs to another user"))
		return
	}
	cur.Name = sanitize.Text(in.Name)
	cur.Color = sanitize.Text(in.Color)
	l, err := h.Syncer.UpdateList(ctx, cur)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, l)
}

// Delete removes a list the caller owns.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	listID := chi.URLParam(r, "listID")
	cur, err := h.Syncer.Local().GetList(ctx, listID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if cur.OwnerID != uid {
		shared.Error(w, h.Log, taskerr.Authorization("list belongs to another user"))
		return
	}
	if err := h.Syncer.DeleteList(ctx, uid, listID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}
