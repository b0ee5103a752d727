// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	groupscore "github.com/taskmesh/taskmesh/internal/app/groups"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Both halves of the dual-store architecture live here (the MongoDB remote
// store and the SQLite local cache) plus the services built on top of them,
// so that Startup, BuildHandler, and Shutdown all reach the same instances.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Local  *local.DB
	Remote remote.Store

	Syncer *appsync.Syncer
	Resync *appsync.Resync
	Codes  *groupscore.CodeAllocator
	Engine *groupscore.MembershipEngine
	Views  *groupscore.ViewReconciler
}
