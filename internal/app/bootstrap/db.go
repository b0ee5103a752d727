// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	groupscore "github.com/taskmesh/taskmesh/internal/app/groups"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	appsync "github.com/taskmesh/taskmesh/internal/app/sync"
	"github.com/taskmesh/taskmesh/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB opens both halves of the dual-store architecture (the MongoDB
// remote store and the SQLite local cache) and builds the services on top of
// them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Medium)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		// Reachability at boot is not required; the local cache serves reads
		// and the resync worker drains writes once the store comes back.
		logger.Warn("remote store unreachable at startup, continuing offline", zap.Error(err))
	}
	db := client.Database(appCfg.MongoDatabase)

	localDB, err := local.Open(appCfg.CachePath, logger)
	if err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("open local cache: %w", err)
	}

	remoteStore := remote.NewMongo(db, logger)
	syncer := appsync.New(localDB, remoteStore, logger)
	codes := groupscore.NewCodeAllocator(localDB, remoteStore, logger)

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Local:         localDB,
		Remote:        remoteStore,
		Syncer:        syncer,
		Resync:        appsync.NewResync(syncer, logger, appCfg.ResyncInterval, appCfg.ResyncBatchSize),
		Codes:         codes,
		Engine:        groupscore.NewMembershipEngine(localDB, remoteStore, codes, logger),
		Views:         groupscore.NewViewReconciler(localDB, remoteStore, logger),
	}

	logger.Info("stores connected",
		zap.String("mongo_database", appCfg.MongoDatabase),
		zap.String("cache_path", appCfg.CachePath))
	return deps, nil
}

// EnsureSchema creates the remote store's indexes. The unique partial index
// on active join codes is the hard backstop behind the allocator's
// check-then-create flow; everything else is query support.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long)
	defer cancel()

	groups := deps.MongoDatabase.Collection("groups")
	_, err := groups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "code_ci", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_code_ci").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "active", Value: true}}),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "active", Value: 1}}},
	})
	if err != nil {
		// Index creation needs a reachable store; offline boot defers it to
		// the next start.
		logger.Warn("group index creation failed", zap.Error(err))
	}

	members := deps.MongoDatabase.Collection("group_members")
	_, err = members.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "active", Value: 1}, {Key: "joined_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}}},
	})
	if err != nil {
		logger.Warn("member index creation failed", zap.Error(err))
	}

	return nil
}
