// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	groupsfeature "github.com/taskmesh/taskmesh/internal/app/features/groups"
	healthfeature "github.com/taskmesh/taskmesh/internal/app/features/health"
	listsfeature "github.com/taskmesh/taskmesh/internal/app/features/lists"
	sessionsfeature "github.com/taskmesh/taskmesh/internal/app/features/sessions"
	tasksfeature "github.com/taskmesh/taskmesh/internal/app/features/tasks"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. TaskMesh mounts one feature router per
// application area: health, lists, tasks, focus sessions, and groups. Task
// creation and listing live under their parent list's path; the other task
// mutations address tasks directly.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Todo lists
	listsHandler := listsfeature.NewHandler(deps.Syncer, logger)
	r.Mount("/lists", listsfeature.Routes(listsHandler))

	// Tasks, nested under their list for creation and listing
	tasksHandler := tasksfeature.NewHandler(deps.Syncer, logger)
	r.Route("/lists/{listID}/tasks", func(r chi.Router) {
		r.Post("/", tasksHandler.Create)
		r.Get("/", tasksHandler.List)
	})
	r.Mount("/tasks", tasksfeature.Routes(tasksHandler))

	// Focus sessions
	sessionsHandler := sessionsfeature.NewHandler(deps.Syncer, logger)
	r.Mount("/sessions", sessionsfeature.Routes(sessionsHandler))

	// Group collaboration
	groupsHandler := groupsfeature.NewHandler(deps.Engine, deps.Codes, deps.Local, deps.Remote, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler))

	return r, nil
}
