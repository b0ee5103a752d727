// internal/app/features/groups/handler.go

// Package groups is the JSON API over the collaboration engine: group
// lifecycle, join codes, and membership administration.
package groups

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskmesh/taskmesh/internal/app/features/shared"
	groupscore "github.com/taskmesh/taskmesh/internal/app/groups"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/app/system/authz"
	"github.com/taskmesh/taskmesh/internal/app/system/sanitize"
	"github.com/taskmesh/taskmesh/internal/app/system/timeouts"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
type Handler struct {
	Engine *groupscore.MembershipEngine
	Codes  *groupscore.CodeAllocator
	Local  *local.DB
	Remote remote.Store
	Log    *zap.Logger
}

// NewHandler constructs a groups Handler.
func NewHandler(engine *groupscore.MembershipEngine, codes *groupscore.CodeAllocator, localDB *local.DB, remoteStore remote.Store, logger *zap.Logger) *Handler {
	return &Handler{Engine: engine, Codes: codes, Local: localDB, Remote: remoteStore, Log: logger}
}

// Routes returns the router mounted at /groups.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Post("/join", h.Join)
	r.Get("/codes/{code}", h.ValidateCode)
	r.Route("/{groupID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.UpdateInfo)
		r.Delete("/", h.Delete)
		r.Post("/leave", h.Leave)
		r.Get("/members", h.Members)
		r.Delete("/members/{userID}", h.RemoveMember)
		r.Put("/members/{userID}/role", h.UpdateRole)
	})
	return r
}

type groupInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Color       string               `json:"color"`
	Profile     models.MemberProfile `json:"profile"`
}

// Create makes a new group with the caller as owner.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in groupInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	in.Profile.DisplayName = sanitize.Text(in.Profile.DisplayName)
	g, err := h.Engine.CreateGroup(ctx, uid, in.Profile,
		sanitize.Text(in.Name), sanitize.Text(in.Description), sanitize.Text(in.Color))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, g)
}

// Get returns one group. The remote document wins; the local mirror answers
// when the remote store is unreachable.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := authz.UserID(r); !ok {
		shared.Unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	groupID := chi.URLParam(r, "groupID")
	var g models.Group
	err := h.Remote.Get(ctx, remote.GroupPath(groupID), &g)
	if taskerr.IsKind(err, taskerr.KindTransport) {
		g, err = h.Local.GetGroup(ctx, groupID)
	}
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if !g.Active {
		shared.Error(w, h.Log, taskerr.NotFound("group %s is no longer active", groupID))
		return
	}
	shared.JSON(w, http.StatusOK, g)
}

type joinInput struct {
	Code    string               `json:"code"`
	Profile models.MemberProfile `json:"profile"`
}

// Join adds the caller to the group holding the supplied code.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in joinInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	in.Profile.DisplayName = sanitize.Text(in.Profile.DisplayName)
	m, err := h.Engine.JoinGroup(ctx, uid, in.Profile, in.Code)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, m)
}

// ValidateCode reports whether a join code resolves to an active group.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	code := chi.URLParam(r, "code")
	shared.JSON(w, http.StatusOK, map[string]any{
		"code":  groupscore.NormalizeCode(code),
		"valid": h.Codes.Validate(ctx, code),
	})
}

// Leave deactivates the caller's own membership.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	if err := h.Engine.LeaveGroup(ctx, uid, chi.URLParam(r, "groupID")); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}

// Members lists the group's active members ordered by join time.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	if _, ok := authz.UserID(r); !ok {
		shared.Unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium)
	defer cancel()

	members, err := h.Engine.ActiveMembers(ctx, chi.URLParam(r, "groupID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, members)
}

// RemoveMember deactivates another member's membership.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	err := h.Engine.RemoveMember(ctx, uid, chi.URLParam(r, "groupID"), chi.URLParam(r, "userID"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}

type roleInput struct {
	Role string `json:"role"`
}

// UpdateRole promotes or demotes a member between member and admin.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in roleInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	err := h.Engine.UpdateMemberRole(ctx, uid, chi.URLParam(r, "groupID"),
		chi.URLParam(r, "userID"), models.Role(in.Role))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}

// UpdateInfo updates the group's name, description, and color.
func (h *Handler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	var in groupInput
	if err := shared.Decode(r, &in); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	groupID := chi.URLParam(r, "groupID")
	err := h.Engine.UpdateGroupInfo(ctx, uid, groupID,
		sanitize.Text(in.Name), sanitize.Text(in.Description), sanitize.Text(in.Color))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	var g models.Group
	if err := h.Remote.Get(ctx, remote.GroupPath(groupID), &g); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, g)
}

// Delete soft-deletes the group.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		shared.Unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long)
	defer cancel()

	if err := h.Engine.DeleteGroup(ctx, uid, chi.URLParam(r, "groupID")); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusNoContent, nil)
}
