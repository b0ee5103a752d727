// internal/app/features/tasks/handler.go

// Package tasks is the JSON API over the task sync operations. Creation and
// listing are routed under /lists/{listID}/tasks; mutations of a known task
// live under /tasks/{taskID}.
package tasks

import (
	"context"
	"net/http"
	"time"

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

// Handler is the shared dependency container for the tasks feature.
type Handler struct {
	Syncer *appsync.Syncer
	Log    *zap.Logger
}

// NewHandler constructs a tasks Handler.
func NewHandler(syncer *appsync.Syncer, logger *zap.Logger) *Handler {
	return &Handler{Syncer: syncer, Log: logger}
}

// Routes returns the router mounted at /tasks.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Put("/{taskID}", h.Update)
	r.Delete("/{taskID}", h.Delete)
	r.Post("/{taskID}/complete", h.Complete)
	return r
}

type taskInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    string           `json:"priority"`
	DueAt       *time.Time       `json:"due_at"`
	RemindAt    *time.Time       `json:"remind_at"`
	Tags        []string         `json:"tags"`
	Subtasks    []models.Subtask `json:"subtasks"`
}

func (in taskInput) apply(t models.Task) models.Task {
	t.Title = sanitize.Text(in.Title)
	t.Description = sanitize.Text(in.Description)
	t.Priority = models.ParsePriority(in.Priority)
	t.DueAt = in.DueAt
	t.RemindAt = in.RemindAt
	t.Tags = in.Tags
	for i := range in.Subtasks {
		in.Subtasks[i].Title = sanitize.Text(in.Subtasks[i].Title)
	}
	t.Subtasks = in.Subtasks
	return t
}

// Create makes a new task under the list in the URL.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in taskInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	listID := chi.URLParam(r, "listID")
	if err := h.requireOwnedList(ctx, uid, listID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	t, err := h.Syncer.CreateTask(ctx, in.apply(models.Task{OwnerID: uid, ListID: listID}))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, t)
}

// List returns the tasks of the list in the URL.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short)
	defer cancel()

	listID := chi.URLParam(r, "listID")
	if err := h.requireOwnedList(ctx, uid, listID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	ts, err := h.Syncer.Local().TasksByList(ctx, listID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, ts)
}

// Update overwrites the mutable fields of a task the caller owns.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in taskInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	cur, err := h.ownedTask(ctx, uid, chi.URLParam(r, "taskID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	t, err := h.Syncer.UpdateTask(ctx, in.apply(cur))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, t)
}

type completeInput struct {
	Done bool `json:"done"`
}

// Complete flips a task's completion state.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	in := completeInput{Done: true}
	if r.ContentLength > 0 {
		if err := shared.Decode(r, &in); err != nil {
			shared.Error(w, h.Log, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	cur, err := h.ownedTask(ctx, uid, chi.URLParam(r, "taskID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	t, err := h.Syncer.CompleteTask(ctx, cur.ID, in.Done)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, t)
}

// Delete removes a task the caller owns.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	cur, err := h.ownedTask(ctx, uid, chi.URLParam(r, "taskID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if err := h.Syncer.DeleteTask(ctx, cur.ID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) requireOwnedList(ctx context.Context, uid, listID string) error {
	l, err := h.Syncer.Local().GetList(ctx, listID)
	if err != nil {
		return err
	}
	if l.OwnerID != uid {
		return taskerr.Authorization("list belongs to another user")
	}
	return nil
}

func (h *Handler) ownedTask(ctx context.Context, uid, taskID string) (models.Task, error) {
	t, err := h.Syncer.Local().GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if t.OwnerID != uid {
		return models.Task{}, taskerr.Authorization("task belongs to another user")
	}
	return t, nil
}
