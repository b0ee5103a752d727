// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging level, CORS, request limits); AppConfig is everything specific to
// this application: the remote store connection, the local cache file, and
// the reconciliation worker's knobs.
type AppConfig struct {
	// Remote document store (MongoDB) connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Local cache configuration
	CachePath string // SQLite cache file path (e.g., "./data/cache.db")

	// Resync worker configuration
	ResyncInterval  time.Duration // How often the worker sweeps for unsynced records
	ResyncBatchSize int           // Max records pushed per sweep per entity
}
