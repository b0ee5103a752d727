// internal/testutil/testutil.go

// Package testutil provides shared helpers for package tests: a temp-dir
// local cache, an in-memory remote store, fixtures, and request builders.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"go.uber.org/zap"
)

// SetupLocalDB opens a fresh local cache in a per-test temp directory and
// closes it when the test ends.
func SetupLocalDB(t *testing.T) *local.DB {
	t.Helper()
	db, err := local.Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open local cache: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContext returns a context with the standard test deadline.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Eventually polls cond until it returns true or the deadline passes.
func Eventually(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}
