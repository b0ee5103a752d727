// internal/app/features/health/handler.go

// Package health exposes the liveness endpoint load balancers and
// orchestrators poll.
package health

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskmesh/taskmesh/internal/app/features/shared"
	"github.com/taskmesh/taskmesh/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler checks connectivity to the remote store. The local cache is
// in-process; if it were broken the process would not be serving.
type Handler struct {
	Client *mongo.Client
	Log    *zap.Logger
}

// NewHandler constructs the health Handler.
func NewHandler(client *mongo.Client, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger}
}

// Routes returns the health router.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeHealth)
	return r
}

// ServeHealth reports ok plus whether the remote store is reachable.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping)
	defer cancel()

	remoteOK := true
	if h.Client != nil {
		if err := h.Client.Ping(ctx, nil); err != nil {
			remoteOK = false
			h.Log.Warn("remote store ping failed", zap.Error(err))
		}
	}
	shared.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"remote_ok": remoteOK,
	})
}
