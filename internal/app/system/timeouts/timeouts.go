// Package timeouts provides centralized timeout values for handler
// operations.
//
// These are used with context.WithTimeout around store calls in HTTP
// handlers. Centralized values keep behavior consistent and easy to adjust.
//
// Guidelines:
//   - Ping: health checks and connectivity verification
//   - Short: single-record reads or lookups
//   - Medium: list queries, moderate writes, multi-step reads
//   - Long: multi-document sequences (group create, join, delete)
package timeouts

import "time"

const (
	Ping   = 2 * time.Second
	Short  = 5 * time.Second
	Medium = 10 * time.Second
	Long   = 30 * time.Second
)
