// internal/app/sync/resync.go
package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Resync is a background worker that periodically drains synced=false rows
// by re-running their remote leg, one attempt per record per pass. Without
// it, a record whose first remote write failed would stay unsynced forever.
type Resync struct {
	syncer    *Syncer
	log       *zap.Logger
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewResync creates the worker. batchSize bounds how many records of each
// kind one pass retries.
func NewResync(syncer *Syncer, logger *zap.Logger, interval time.Duration, batchSize int) *Resync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resync{
		syncer:    syncer,
		log:       logger,
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background resync loop.
func (w *Resync) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("resync worker started",
		zap.Duration("interval", w.interval), zap.Int("batch_size", w.batchSize))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Resync) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("resync worker stopped")
}

func (w *Resync) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Pass(context.Background())
		}
	}
}

// Pass performs one bounded reconciliation pass. Exported so shutdown hooks
// and tests can run a pass directly.
func (w *Resync) Pass(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, remoteLegTimeout)
	defer cancel()

	lists, err := w.syncer.local.UnsyncedLists(ctx, w.batchSize)
	if err != nil {
		w.log.Error("resync: unsynced list scan failed", zap.Error(err))
	}
	for _, l := range lists {
		w.syncer.pushList(ctx, l)
	}

	tasks, err := w.syncer.local.UnsyncedTasks(ctx, w.batchSize)
	if err != nil {
		w.log.Error("resync: unsynced task scan failed", zap.Error(err))
	}
	for _, t := range tasks {
		w.syncer.pushTask(ctx, t)
	}

	if len(lists) > 0 || len(tasks) > 0 {
		w.log.Info("resync pass complete",
			zap.Int("lists", len(lists)), zap.Int("tasks", len(tasks)))
	}
}
