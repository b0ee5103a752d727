// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TaskMesh.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, cache_path, etc.
//   - Environment variables: TASKMESH_MONGO_URI, TASKMESH_CACHE_PATH, etc.
//   - Command-line flags: --mongo_uri, --cache_path, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskmesh", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Local cache
	{Name: "cache_path", Default: "./data/cache.db", Desc: "SQLite local cache file path"},

	// Resync worker
	{Name: "resync_interval", Default: "30s", Desc: "Sweep interval for the unsynced-record worker (e.g., 30s, 2m)"},
	{Name: "resync_batch_size", Default: 100, Desc: "Max unsynced records pushed per sweep per entity"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have access
// to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TASKMESH_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKMESH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		CachePath: appValues.String("cache_path"),

		ResyncInterval:  appValues.Duration("resync_interval", 30*time.Second),
		ResyncBatchSize: appValues.Int("resync_batch_size"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// TaskMesh validates the MongoDB URI format to catch configuration errors
// early, before attempting to connect, and rejects nonsensical worker knobs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.CachePath == "" {
		return fmt.Errorf("cache_path must not be empty")
	}
	if appCfg.ResyncInterval <= 0 {
		return fmt.Errorf("resync_interval must be positive, got %s", appCfg.ResyncInterval)
	}
	if appCfg.ResyncBatchSize <= 0 {
		return fmt.Errorf("resync_batch_size must be positive, got %d", appCfg.ResyncBatchSize)
	}
	return nil
}
