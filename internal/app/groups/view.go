// internal/app/groups/view.go
package groups

import (
	"context"

	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// ViewReconciler merges the local-first emission for a single group with its
// remote subscription, tolerating transient remote unavailability: once a
// local snapshot has been seen, a remote "not found" is suppressed so the
// caller keeps showing last-known-good data.
type ViewReconciler struct {
	local  *local.DB
	remote remote.Store
	log    *zap.Logger
}

// NewViewReconciler creates a ViewReconciler.
func NewViewReconciler(localDB *local.DB, remoteStore remote.Store, logger *zap.Logger) *ViewReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewReconciler{local: localDB, remote: remoteStore, log: logger}
}

// ObserveGroup emits the cached snapshot immediately when present, then
// follows the remote document. A nil emission means the group does not
// exist and never existed locally. The subscription ends when ctx is
// canceled; the returned channel is then closed.
func (r *ViewReconciler) ObserveGroup(ctx context.Context, groupID string) (<-chan *models.Group, error) {
	out := make(chan *models.Group, 1)

	hadLocal := false
	if g, err := r.local.GetGroup(ctx, groupID); err == nil {
		hadLocal = true
		out <- &g
	} else if !taskerr.IsKind(err, taskerr.KindNotFound) {
		close(out)
		return nil, err
	}

	events, err := r.remote.SubscribeDoc(ctx, remote.GroupPath(groupID))
	if err != nil {
		if hadLocal {
			// Cache-only view; nothing more will arrive but the caller
			// keeps the last-known-good snapshot.
			r.log.Warn("remote group subscription unavailable, serving cache only",
				zap.String("group_id", groupID), zap.Error(err))
			close(out)
			return out, nil
		}
		close(out)
		return nil, err
	}

	go func() {
		defer close(out)
		for ev := range events {
			if ev.Err != nil {
				r.log.Warn("remote group subscription error",
					zap.String("group_id", groupID), zap.Error(ev.Err))
				continue
			}
			if ev.Doc == nil {
				if hadLocal {
					// Offline tolerance: keep showing the last local
					// snapshot instead of flashing an empty view.
					continue
				}
				select {
				case out <- nil:
				case <-ctx.Done():
					return
				}
				continue
			}
			var g models.Group
			if err := remote.Decode(ev.Doc, &g); err != nil {
				r.log.Warn("remote group decode failed", zap.Error(err))
				continue
			}
			if err := r.local.PutGroup(ctx, g, true); err != nil && ctx.Err() == nil {
				r.log.Warn("group snapshot ingest failed", zap.Error(err))
			}
			hadLocal = true
			select {
			case out <- &g:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ObserveMembers follows the group's active member list, ordered by join
// time ascending. Members are not persisted standalone beyond the caller's
// own record, so there is no local fallback: the channel carries whatever
// the remote currently reports.
func (r *ViewReconciler) ObserveMembers(ctx context.Context, groupID string) (<-chan []models.GroupMember, error) {
	events, err := r.remote.SubscribeQuery(ctx, remote.MembersPath(groupID),
		map[string]any{"active": true}, &remote.Sort{Field: "joined_at", Asc: true})
	if err != nil {
		return nil, err
	}

	out := make(chan []models.GroupMember, 1)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Err != nil {
				r.log.Warn("remote member subscription error",
					zap.String("group_id", groupID), zap.Error(ev.Err))
				continue
			}
			members := make([]models.GroupMember, 0, len(ev.Docs))
			for _, raw := range ev.Docs {
				var m models.GroupMember
				if err := remote.Decode(raw, &m); err != nil {
					r.log.Warn("remote member decode failed", zap.Error(err))
					continue
				}
				members = append(members, m)
			}
			select {
			case out <- members:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
