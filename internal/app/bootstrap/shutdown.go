// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down the workers and both stores. Order matters:
// stop the resync worker first, then wait for in-flight remote legs, then
// close the stores they were writing to.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Resync != nil {
		deps.Resync.Stop()
	}
	if deps.Syncer != nil {
		deps.Syncer.Wait()
	}
	if deps.Local != nil {
		if err := deps.Local.Close(); err != nil {
			logger.Error("local cache close failed", zap.Error(err))
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
