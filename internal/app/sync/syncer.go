// internal/app/sync/syncer.go

// Package sync keeps each local cache record and its remote document
// eventually aligned, favoring local responsiveness: every mutation lands in
// the local cache first with synced=false, then the remote leg runs
// asynchronously and flips the flag once the store confirms. Remote failure
// never rolls back the local half; the unsynced row is the only signal that
// reconciliation is pending, and the Resync worker drains those rows.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// remoteLegTimeout bounds one asynchronous remote write. The underlying
// store may queue indefinitely while offline; the leg gives up and leaves
// the record unsynced for the Resync worker instead.
const remoteLegTimeout = 30 * time.Second

// Syncer is the write-through/read-through adapter between the local cache
// and the remote store for user-scoped entities.
type Syncer struct {
	local  *local.DB
	remote remote.Store
	log    *zap.Logger

	legs sync.WaitGroup
}

// New creates a Syncer. If logger is nil a no-op logger is used.
func New(localDB *local.DB, remoteStore remote.Store, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{local: localDB, remote: remoteStore, log: logger}
}

// Local exposes the cache for read paths that bypass the sync adapters.
func (s *Syncer) Local() *local.DB { return s.local }

// Wait blocks until every in-flight remote leg has finished. Used on
// shutdown and by tests that need deterministic ordering.
func (s *Syncer) Wait() {
	s.legs.Wait()
}

// spawnLeg runs fn on its own goroutine with a bounded context.
func (s *Syncer) spawnLeg(fn func(ctx context.Context)) {
	s.legs.Add(1)
	go func() {
		defer s.legs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), remoteLegTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// --- Lists ---

// CreateList writes the list locally with synced=false and returns it
// immediately; the remote leg runs asynchronously.
func (s *Syncer) CreateList(ctx context.Context, l models.TodoList) (models.TodoList, error) {
	if l.OwnerID == "" {
		return models.TodoList{}, taskerr.Validation("list owner id is required")
	}
	if l.Name == "" {
		return models.TodoList{}, taskerr.Validation("list name is required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	l.Synced = false

	if err := s.local.PutList(ctx, l); err != nil {
		return models.TodoList{}, err
	}
	s.spawnLeg(func(ctx context.Context) { s.pushList(ctx, l) })
	return l, nil
}

// UpdateList writes locally first, then pushes remotely. Local and remote
// may diverge until the next successful remote write.
func (s *Syncer) UpdateList(ctx context.Context, l models.TodoList) (models.TodoList, error) {
	if l.ID == "" {
		return models.TodoList{}, taskerr.Validation("list id is required")
	}
	cur, err := s.local.GetList(ctx, l.ID)
	if err != nil {
		return models.TodoList{}, err
	}
	l.OwnerID = cur.OwnerID
	l.CreatedAt = cur.CreatedAt
	l.Synced = false
	if err := s.local.PutList(ctx, l); err != nil {
		return models.TodoList{}, err
	}
	s.spawnLeg(func(ctx context.Context) { s.pushList(ctx, l) })
	return l, nil
}

// DeleteList deletes locally, then remotely. A failed remote delete leaves
// an orphaned remote document until a future reconciliation.
func (s *Syncer) DeleteList(ctx context.Context, ownerID, listID string) error {
	if err := s.local.DeleteList(ctx, listID); err != nil {
		return err
	}
	s.spawnLeg(func(ctx context.Context) {
		if err := s.remote.Delete(ctx, remote.ListPath(ownerID, listID)); err != nil {
			s.log.Warn("remote list delete failed, remote copy orphaned",
				zap.String("list_id", listID), zap.Error(err))
		}
	})
	return nil
}

// pushList runs the remote leg for a list and, on confirmation, overwrites
// the local row with the server-confirmed value marked synced.
func (s *Syncer) pushList(ctx context.Context, l models.TodoList) {
	path := remote.ListPath(l.OwnerID, l.ID)
	if err := s.remote.Set(ctx, path, l); err != nil {
		s.log.Warn("remote list write failed, record left unsynced",
			zap.String("list_id", l.ID), zap.Error(err))
		return
	}
	var confirmed models.TodoList
	if err := s.remote.Get(ctx, path, &confirmed); err != nil {
		s.log.Warn("remote list readback failed, record left unsynced",
			zap.String("list_id", l.ID), zap.Error(err))
		return
	}
	confirmed.Synced = true
	if err := s.local.PutList(ctx, confirmed); err != nil {
		s.log.Error("local confirm write failed", zap.String("list_id", l.ID), zap.Error(err))
		return
	}
	s.log.Debug("list synced", zap.String("list_id", l.ID))
}

// ObserveLists returns a live sequence of the owner's lists. The local cache
// is the emission source; a remote subscription ingests confirmed documents
// into the cache, so consumers see monotonically merged state and an
// unsynced record never disappears before its confirmed version lands.
func (s *Syncer) ObserveLists(ctx context.Context, ownerID string) (<-chan []models.TodoList, error) {
	out, err := s.local.WatchLists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	events, err := s.remote.SubscribeQuery(ctx, remote.ListsPath(ownerID), nil,
		&remote.Sort{Field: "created_at", Asc: false})
	if err != nil {
		s.log.Warn("remote list subscription unavailable, serving cache only",
			zap.String("owner_id", ownerID), zap.Error(err))
		return out, nil
	}
	go func() {
		for ev := range events {
			if ev.Err != nil {
				s.log.Warn("remote list subscription error", zap.Error(ev.Err))
				continue
			}
			for _, raw := range ev.Docs {
				var l models.TodoList
				if err := remote.Decode(raw, &l); err != nil {
					s.log.Warn("remote list decode failed", zap.Error(err))
					continue
				}
				l.Synced = true
				if err := s.local.PutList(ctx, l); err != nil && ctx.Err() == nil {
					s.log.Warn("list snapshot ingest failed", zap.Error(err))
				}
			}
		}
	}()
	return out, nil
}

// --- Tasks ---

// CreateTask writes the task locally with synced=false, kicks off the remote
// leg, and recomputes the parent list's task counts.
func (s *Syncer) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if t.OwnerID == "" || t.ListID == "" {
		return models.Task{}, taskerr.Validation("task owner id and list id are required")
	}
	if t.Title == "" {
		return models.Task{}, taskerr.Validation("task title is required")
	}
	if t.Completed != (t.CompletedAt != nil) {
		return models.Task{}, taskerr.Validation("completed flag and completion time disagree")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Synced = false

	if err := s.local.PutTask(ctx, t); err != nil {
		return models.Task{}, err
	}
	if err := s.recountList(ctx, t.OwnerID, t.ListID); err != nil {
		s.log.Warn("list recount failed", zap.String("list_id", t.ListID), zap.Error(err))
	}
	s.spawnLeg(func(ctx context.Context) { s.pushTask(ctx, t) })
	return t, nil
}

// UpdateTask writes locally first, then pushes remotely, then recounts.
func (s *Syncer) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if t.ID == "" {
		return models.Task{}, taskerr.Validation("task id is required")
	}
	if t.Completed != (t.CompletedAt != nil) {
		return models.Task{}, taskerr.Validation("completed flag and completion time disagree")
	}
	cur, err := s.local.GetTask(ctx, t.ID)
	if err != nil {
		return models.Task{}, err
	}
	t.OwnerID = cur.OwnerID
	t.ListID = cur.ListID
	t.CreatedAt = cur.CreatedAt
	t.Synced = false
	if err := s.local.PutTask(ctx, t); err != nil {
		return models.Task{}, err
	}
	if err := s.recountList(ctx, t.OwnerID, t.ListID); err != nil {
		s.log.Warn("list recount failed", zap.String("list_id", t.ListID), zap.Error(err))
	}
	s.spawnLeg(func(ctx context.Context) { s.pushTask(ctx, t) })
	return t, nil
}

// CompleteTask marks a task done (or not) keeping the completion-time
// invariant, then follows the usual update path.
func (s *Syncer) CompleteTask(ctx context.Context, taskID string, done bool) (models.Task, error) {
	t, err := s.local.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	t.SetCompleted(done, time.Now())
	return s.UpdateTask(ctx, t)
}

// DeleteTask deletes locally, then remotely, then recounts the parent list.
func (s *Syncer) DeleteTask(ctx context.Context, taskID string) error {
	t, err := s.local.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.local.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	if err := s.recountList(ctx, t.OwnerID, t.ListID); err != nil {
		s.log.Warn("list recount failed", zap.String("list_id", t.ListID), zap.Error(err))
	}
	s.spawnLeg(func(ctx context.Context) {
		if err := s.remote.Delete(ctx, remote.TaskPath(t.OwnerID, t.ListID, t.ID)); err != nil {
			s.log.Warn("remote task delete failed, remote copy orphaned",
				zap.String("task_id", t.ID), zap.Error(err))
		}
	})
	return nil
}

func (s *Syncer) pushTask(ctx context.Context, t models.Task) {
	path := remote.TaskPath(t.OwnerID, t.ListID, t.ID)
	if err := s.remote.Set(ctx, path, t); err != nil {
		s.log.Warn("remote task write failed, record left unsynced",
			zap.String("task_id", t.ID), zap.Error(err))
		return
	}
	var confirmed models.Task
	if err := s.remote.Get(ctx, path, &confirmed); err != nil {
		s.log.Warn("remote task readback failed, record left unsynced",
			zap.String("task_id", t.ID), zap.Error(err))
		return
	}
	confirmed.Synced = true
	if err := s.local.PutTask(ctx, confirmed); err != nil {
		s.log.Error("local confirm write failed", zap.String("task_id", t.ID), zap.Error(err))
		return
	}
	s.log.Debug("task synced", zap.String("task_id", t.ID))
}

// ObserveTasks returns a live sequence of a list's tasks, merged the same
// way ObserveLists merges.
func (s *Syncer) ObserveTasks(ctx context.Context, ownerID, listID string) (<-chan []models.Task, error) {
	out, err := s.local.WatchTasks(ctx, listID)
	if err != nil {
		return nil, err
	}
	events, err := s.remote.SubscribeQuery(ctx, remote.TasksPath(ownerID, listID), nil,
		&remote.Sort{Field: "created_at", Asc: true})
	if err != nil {
		s.log.Warn("remote task subscription unavailable, serving cache only",
			zap.String("list_id", listID), zap.Error(err))
		return out, nil
	}
	go func() {
		for ev := range events {
			if ev.Err != nil {
				s.log.Warn("remote task subscription error", zap.Error(ev.Err))
				continue
			}
			for _, raw := range ev.Docs {
				var t models.Task
				if err := remote.Decode(raw, &t); err != nil {
					s.log.Warn("remote task decode failed", zap.Error(err))
					continue
				}
				t.Synced = true
				if err := s.local.PutTask(ctx, t); err != nil && ctx.Err() == nil {
					s.log.Warn("task snapshot ingest failed", zap.Error(err))
				}
			}
		}
	}()
	return out, nil
}

// recountList recomputes the parent list's task counts from a full scan of
// its cached tasks and pushes them to the remote list document. Not atomic
// with the task write that triggered it: two rapid mutations can race and
// leave a transiently wrong count that self-heals on the next mutation.
func (s *Syncer) recountList(ctx context.Context, ownerID, listID string) error {
	tasks, err := s.local.TasksByList(ctx, listID)
	if err != nil {
		return err
	}
	total := len(tasks)
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}

	l, err := s.local.GetList(ctx, listID)
	if err != nil {
		if taskerr.IsKind(err, taskerr.KindNotFound) {
			// Task written before its list reached the cache; the next
			// mutation recounts.
			return nil
		}
		return err
	}
	l.TaskCount = total
	l.CompletedTaskCount = completed
	if err := s.local.PutList(ctx, l); err != nil {
		return err
	}

	s.spawnLeg(func(ctx context.Context) {
		err := s.remote.Update(ctx, remote.ListPath(ownerID, listID), map[string]any{
			"task_count":           total,
			"completed_task_count": completed,
		})
		if err != nil {
			s.log.Warn("remote count push failed",
				zap.String("list_id", listID), zap.Error(err))
		}
	})
	return nil
}

// --- Focus sessions ---

// CreateSession stores a focus session. The remote leg for sessions is a
// declared extension point and currently a no-op, so the record is
// confirmed immediately.
func (s *Syncer) CreateSession(ctx context.Context, fs models.FocusSession) (models.FocusSession, error) {
	if fs.OwnerID == "" {
		return models.FocusSession{}, taskerr.Validation("session owner id is required")
	}
	if fs.ID == "" {
		fs.ID = uuid.NewString()
	}
	if fs.StartedAt.IsZero() {
		fs.StartedAt = time.Now().UTC()
	}
	fs.Synced = true // no-op remote leg confirms trivially
	if err := s.local.PutSession(ctx, fs); err != nil {
		return models.FocusSession{}, err
	}
	return fs, nil
}

// UpdateSession overwrites a stored session.
func (s *Syncer) UpdateSession(ctx context.Context, fs models.FocusSession) (models.FocusSession, error) {
	if fs.ID == "" {
		return models.FocusSession{}, taskerr.Validation("session id is required")
	}
	cur, err := s.local.GetSession(ctx, fs.ID)
	if err != nil {
		return models.FocusSession{}, err
	}
	fs.OwnerID = cur.OwnerID
	fs.Synced = true
	if err := s.local.PutSession(ctx, fs); err != nil {
		return models.FocusSession{}, err
	}
	return fs, nil
}

// DeleteSession removes a stored session.
func (s *Syncer) DeleteSession(ctx context.Context, id string) error {
	return s.local.DeleteSession(ctx, id)
}

// ObserveSessions returns a live sequence of the user's sessions. Sessions
// are local-only, so there is no remote ingestion.
func (s *Syncer) ObserveSessions(ctx context.Context, ownerID string) (<-chan []models.FocusSession, error) {
	return s.local.WatchSessions(ctx, ownerID)
}
