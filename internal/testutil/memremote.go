// internal/testutil/memremote.go
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemRemote is an in-memory remote.Store for tests. It honors the same
// contract as the Mongo implementation (path addressing, NotFound mapping,
// atomic Increment, snapshot-first subscriptions) and adds offline
// simulation: while SetOffline(true), every call fails with a Transport
// error, like a store whose queue never flushes.
type MemRemote struct {
	mu      sync.Mutex
	colls   map[string]map[string]bson.M
	offline bool
	subs    []*memSub
}

type memSub struct {
	cancel <-chan struct{}
	// resolve computes the next event for this subscriber; nil result means
	// no delivery (unchanged).
	notify chan struct{}
}

// NewMemRemote creates an empty in-memory remote store.
func NewMemRemote() *MemRemote {
	return &MemRemote{colls: make(map[string]map[string]bson.M)}
}

// SetOffline toggles failure of every subsequent call.
func (f *MemRemote) SetOffline(offline bool) {
	f.mu.Lock()
	f.offline = offline
	f.mu.Unlock()
	if !offline {
		f.broadcast()
	}
}

var errOffline = errors.New("remote store unreachable")

func (f *MemRemote) checkOnline() error {
	if f.offline {
		return taskerr.Transport(errOffline, "remote call")
	}
	return nil
}

func (f *MemRemote) coll(name string) map[string]bson.M {
	if f.colls[name] == nil {
		f.colls[name] = make(map[string]bson.M)
	}
	return f.colls[name]
}

func toBsonM(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get implements remote.Store.
func (f *MemRemote) Get(ctx context.Context, path string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOnline(); err != nil {
		return err
	}
	t, err := remote.ParsePath(path)
	if err != nil {
		return taskerr.Validation("%v", err)
	}
	doc, ok := f.coll(t.Collection)[t.ID]
	if !ok {
		return taskerr.NotFound("remote document %s not found", path)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return taskerr.Transport(err, "encode")
	}
	return bson.Unmarshal(raw, out)
}

// Set implements remote.Store.
func (f *MemRemote) Set(ctx context.Context, path string, doc any) error {
	f.mu.Lock()
	if err := f.checkOnline(); err != nil {
		f.mu.Unlock()
		return err
	}
	t, err := remote.ParsePath(path)
	if err != nil {
		f.mu.Unlock()
		return taskerr.Validation("%v", err)
	}
	m, err := toBsonM(doc)
	if err != nil {
		f.mu.Unlock()
		return taskerr.Transport(err, "encode")
	}
	m["_id"] = t.ID
	// Model the unique partial index on active group codes, like the real
	// store's duplicate-key error.
	if t.Collection == "groups" && m["active"] == true {
		if ci, _ := m["code_ci"].(string); ci != "" {
			for id, other := range f.coll("groups") {
				if id != t.ID && other["active"] == true && other["code_ci"] == ci {
					f.mu.Unlock()
					return taskerr.Conflict("active group code %s already in use", ci)
				}
			}
		}
	}
	f.coll(t.Collection)[t.ID] = m
	f.mu.Unlock()
	f.broadcast()
	return nil
}

// Update implements remote.Store.
func (f *MemRemote) Update(ctx context.Context, path string, fields map[string]any) error {
	f.mu.Lock()
	if err := f.checkOnline(); err != nil {
		f.mu.Unlock()
		return err
	}
	t, err := remote.ParsePath(path)
	if err != nil {
		f.mu.Unlock()
		return taskerr.Validation("%v", err)
	}
	doc, ok := f.coll(t.Collection)[t.ID]
	if !ok {
		f.mu.Unlock()
		return taskerr.NotFound("remote document %s not found", path)
	}
	for k, v := range fields {
		doc[k] = v
	}
	f.mu.Unlock()
	f.broadcast()
	return nil
}

// Delete implements remote.Store.
func (f *MemRemote) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	if err := f.checkOnline(); err != nil {
		f.mu.Unlock()
		return err
	}
	t, err := remote.ParsePath(path)
	if err != nil {
		f.mu.Unlock()
		return taskerr.Validation("%v", err)
	}
	delete(f.coll(t.Collection), t.ID)
	f.mu.Unlock()
	f.broadcast()
	return nil
}

// Increment implements remote.Store atomically under the store lock.
func (f *MemRemote) Increment(ctx context.Context, path string, field string, delta int) error {
	f.mu.Lock()
	if err := f.checkOnline(); err != nil {
		f.mu.Unlock()
		return err
	}
	t, err := remote.ParsePath(path)
	if err != nil {
		f.mu.Unlock()
		return taskerr.Validation("%v", err)
	}
	doc, ok := f.coll(t.Collection)[t.ID]
	if !ok {
		f.mu.Unlock()
		return taskerr.NotFound("remote document %s not found", path)
	}
	doc[field] = asInt(doc[field]) + delta
	f.mu.Unlock()
	f.broadcast()
	return nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func matches(doc bson.M, scope map[string]any, filter map[string]any) bool {
	check := func(k string, want any) bool {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if wb, ok := want.(bool); ok {
			gb, ok := got.(bool)
			return ok && gb == wb
		}
		if ws, ok := want.(string); ok {
			gs, ok := got.(string)
			return ok && gs == ws
		}
		return got == want
	}
	for k, v := range scope {
		if !check(k, v) {
			return false
		}
	}
	for k, v := range filter {
		if !check(k, v) {
			return false
		}
	}
	return true
}

func less(a, b bson.M, field string) bool {
	av, bv := a[field], b[field]
	switch x := av.(type) {
	case string:
		y, _ := bv.(string)
		return x < y
	case primitive.DateTime:
		y, _ := bv.(primitive.DateTime)
		return x < y
	case int, int32, int64, float64:
		return float64(asInt(av)) < float64(asInt(bv))
	}
	return stringify(av) < stringify(bv)
}

func stringify(v any) string {
	raw, _ := bson.Marshal(bson.M{"v": v})
	return string(raw)
}

func (f *MemRemote) runQuery(t remote.Target, filter map[string]any, s *remote.Sort, limit int64) []bson.Raw {
	var docs []bson.M
	for _, doc := range f.coll(t.Collection) {
		if matches(doc, t.Scope, filter) {
			docs = append(docs, doc)
		}
	}
	if s != nil {
		sort.SliceStable(docs, func(i, j int) bool {
			if s.Asc {
				return less(docs[i], docs[j], s.Field)
			}
			return less(docs[j], docs[i], s.Field)
		})
	} else {
		sort.SliceStable(docs, func(i, j int) bool {
			return stringify(docs[i]["_id"]) < stringify(docs[j]["_id"])
		})
	}
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	out := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err == nil {
			out = append(out, raw)
		}
	}
	return out
}

// Query implements remote.Store.
func (f *MemRemote) Query(ctx context.Context, collectionPath string, filter map[string]any, s *remote.Sort, limit int64) ([]bson.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOnline(); err != nil {
		return nil, err
	}
	t, err := remote.ParsePath(collectionPath)
	if err != nil {
		return nil, taskerr.Validation("%v", err)
	}
	return f.runQuery(t, filter, s, limit), nil
}

func (f *MemRemote) broadcast() {
	f.mu.Lock()
	subs := make([]*memSub, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()
	for _, s := range subs {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

func (f *MemRemote) addSub(ctx context.Context) *memSub {
	s := &memSub{cancel: ctx.Done(), notify: make(chan struct{}, 1)}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

func (f *MemRemote) dropSub(s *memSub) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.subs {
		if cur == s {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

// SubscribeDoc implements remote.Store: an initial snapshot (nil doc when
// absent), then a fresh snapshot after every store mutation.
func (f *MemRemote) SubscribeDoc(ctx context.Context, path string) (<-chan remote.DocEvent, error) {
	f.mu.Lock()
	if f.offline {
		f.mu.Unlock()
		return nil, taskerr.Transport(errOffline, "remote subscribe")
	}
	f.mu.Unlock()
	t, err := remote.ParsePath(path)
	if err != nil {
		return nil, taskerr.Validation("%v", err)
	}

	snapshot := func() remote.DocEvent {
		f.mu.Lock()
		defer f.mu.Unlock()
		doc, ok := f.coll(t.Collection)[t.ID]
		if !ok {
			return remote.DocEvent{}
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return remote.DocEvent{Err: taskerr.Transport(err, "encode")}
		}
		return remote.DocEvent{Doc: raw}
	}

	sub := f.addSub(ctx)
	ch := make(chan remote.DocEvent, 16)
	ch <- snapshot()
	go func() {
		defer close(ch)
		defer f.dropSub(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
				select {
				case ch <- snapshot():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// SubscribeQuery implements remote.Store.
func (f *MemRemote) SubscribeQuery(ctx context.Context, collectionPath string, filter map[string]any, s *remote.Sort) (<-chan remote.QueryEvent, error) {
	f.mu.Lock()
	if f.offline {
		f.mu.Unlock()
		return nil, taskerr.Transport(errOffline, "remote subscribe")
	}
	f.mu.Unlock()
	t, err := remote.ParsePath(collectionPath)
	if err != nil {
		return nil, taskerr.Validation("%v", err)
	}

	snapshot := func() remote.QueryEvent {
		f.mu.Lock()
		defer f.mu.Unlock()
		return remote.QueryEvent{Docs: f.runQuery(t, filter, s, 0)}
	}

	sub := f.addSub(ctx)
	ch := make(chan remote.QueryEvent, 16)
	ch <- snapshot()
	go func() {
		defer close(ch)
		defer f.dropSub(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
				select {
				case ch <- snapshot():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
