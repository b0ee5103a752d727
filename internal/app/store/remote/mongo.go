// internal/app/store/remote/mongo.go
package remote

import (
	"bytes"
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// defaultPollInterval drives the fallback refresh loop when change streams
// are unavailable (standalone mongod without a replica set).
const defaultPollInterval = 2 * time.Second

// Mongo implements Store on a MongoDB database. Paths resolve to flat
// collections via ParsePath; scope fields from the path become filter fields.
type Mongo struct {
	db           *mongo.Database
	log          *zap.Logger
	pollInterval time.Duration
}

// NewMongo wraps db as a remote Store.
func NewMongo(db *mongo.Database, logger *zap.Logger) *Mongo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mongo{db: db, log: logger, pollInterval: defaultPollInterval}
}

func (m *Mongo) docFilter(t Target) bson.M {
	f := bson.M{"_id": t.ID}
	for k, v := range t.Scope {
		f[k] = v
	}
	return f
}

func (m *Mongo) collFilter(t Target, filter map[string]any) bson.M {
	f := bson.M{}
	for k, v := range t.Scope {
		f[k] = v
	}
	for k, v := range filter {
		f[k] = v
	}
	return f
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, path string, out any) error {
	t, err := ParsePath(path)
	if err != nil {
		return taskerr.Validation("%v", err)
	}
	err = m.db.Collection(t.Collection).FindOne(ctx, m.docFilter(t)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return taskerr.NotFound("remote document %s not found", path)
	}
	if err != nil {
		return taskerr.Transport(err, "remote get %s", path)
	}
	return nil
}

// Set implements Store.
func (m *Mongo) Set(ctx context.Context, path string, doc any) error {
	t, err := ParsePath(path)
	if err != nil {
		return taskerr.Validation("%v", err)
	}
	opts := options.Replace().SetUpsert(true)
	_, err = m.db.Collection(t.Collection).ReplaceOne(ctx, bson.M{"_id": t.ID}, doc, opts)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return taskerr.Conflict("remote set %s: duplicate key", path)
		}
		return taskerr.Transport(err, "remote set %s", path)
	}
	return nil
}

// Update implements Store.
func (m *Mongo) Update(ctx context.Context, path string, fields map[string]any) error {
	t, err := ParsePath(path)
	if err != nil {
		return taskerr.Validation("%v", err)
	}
	res, err := m.db.Collection(t.Collection).UpdateOne(ctx, m.docFilter(t), bson.M{"$set": bson.M(fields)})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return taskerr.Conflict("remote update %s: duplicate key", path)
		}
		return taskerr.Transport(err, "remote update %s", path)
	}
	if res.MatchedCount == 0 {
		return taskerr.NotFound("remote document %s not found", path)
	}
	return nil
}

// Delete implements Store.
func (m *Mongo) Delete(ctx context.Context, path string) error {
	t, err := ParsePath(path)
	if err != nil {
		return taskerr.Validation("%v", err)
	}
	if _, err := m.db.Collection(t.Collection).DeleteOne(ctx, m.docFilter(t)); err != nil {
		return taskerr.Transport(err, "remote delete %s", path)
	}
	return nil
}

// Increment implements Store using $inc, so concurrent counter updates do
// not lose increments the way read-modify-write would.
func (m *Mongo) Increment(ctx context.Context, path string, field string, delta int) error {
	t, err := ParsePath(path)
	if err != nil {
		return taskerr.Validation("%v", err)
	}
	res, err := m.db.Collection(t.Collection).UpdateOne(ctx, m.docFilter(t), bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return taskerr.Transport(err, "remote increment %s.%s", path, field)
	}
	if res.MatchedCount == 0 {
		return taskerr.NotFound("remote document %s not found", path)
	}
	return nil
}

// Query implements Store.
func (m *Mongo) Query(ctx context.Context, collectionPath string, filter map[string]any, sort *Sort, limit int64) ([]bson.Raw, error) {
	t, err := ParsePath(collectionPath)
	if err != nil {
		return nil, taskerr.Validation("%v", err)
	}
	opts := options.Find()
	if sort != nil {
		dir := 1
		if !sort.Asc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: sort.Field, Value: dir}})
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := m.db.Collection(t.Collection).Find(ctx, m.collFilter(t, filter), opts)
	if err != nil {
		return nil, taskerr.Transport(err, "remote query %s", collectionPath)
	}
	defer cur.Close(ctx)

	var out []bson.Raw
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		out = append(out, raw)
	}
	if err := cur.Err(); err != nil {
		return nil, taskerr.Transport(err, "remote query %s", collectionPath)
	}
	return out, nil
}

// SubscribeDoc implements Store: an initial snapshot, then change-stream
// deliveries, falling back to polling when the deployment has no change
// streams.
func (m *Mongo) SubscribeDoc(ctx context.Context, path string) (<-chan DocEvent, error) {
	t, err := ParsePath(path)
	if err != nil {
		return nil, taskerr.Validation("%v", err)
	}

	ch := make(chan DocEvent, 1)
	go func() {
		defer close(ch)

		snapshot := func() (bson.Raw, error) {
			res := m.db.Collection(t.Collection).FindOne(ctx, m.docFilter(t))
			raw, err := res.Raw()
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, nil
			}
			return raw, err
		}

		raw, err := snapshot()
		if err != nil {
			m.emitDoc(ctx, ch, DocEvent{Err: taskerr.Transport(err, "remote subscribe %s", path)})
			return
		}
		m.emitDoc(ctx, ch, DocEvent{Doc: raw})

		pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"documentKey._id": t.ID}}}}
		streamOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		stream, err := m.db.Collection(t.Collection).Watch(ctx, pipeline, streamOpts)
		if err != nil {
			m.log.Warn("change stream unavailable, polling instead",
				zap.String("path", path), zap.Error(err))
			m.pollDoc(ctx, ch, snapshot, raw)
			return
		}
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev struct {
				OperationType string   `bson:"operationType"`
				FullDocument  bson.Raw `bson:"fullDocument"`
			}
			if err := stream.Decode(&ev); err != nil {
				m.emitDoc(ctx, ch, DocEvent{Err: taskerr.Transport(err, "remote subscribe %s", path)})
				continue
			}
			if ev.OperationType == "delete" {
				m.emitDoc(ctx, ch, DocEvent{Doc: nil})
				continue
			}
			m.emitDoc(ctx, ch, DocEvent{Doc: ev.FullDocument})
		}
	}()
	return ch, nil
}

func (m *Mongo) pollDoc(ctx context.Context, ch chan<- DocEvent, snapshot func() (bson.Raw, error), last bson.Raw) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw, err := snapshot()
			if err != nil {
				if ctx.Err() == nil {
					m.emitDoc(ctx, ch, DocEvent{Err: taskerr.Transport(err, "remote poll")})
				}
				continue
			}
			if bytes.Equal(raw, last) {
				continue
			}
			last = raw
			m.emitDoc(ctx, ch, DocEvent{Doc: raw})
		}
	}
}

func (m *Mongo) emitDoc(ctx context.Context, ch chan<- DocEvent, ev DocEvent) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// SubscribeQuery implements Store: an initial result set, then a re-run
// after each change-stream event (or on an interval without change streams).
func (m *Mongo) SubscribeQuery(ctx context.Context, collectionPath string, filter map[string]any, sort *Sort) (<-chan QueryEvent, error) {
	t, err := ParsePath(collectionPath)
	if err != nil {
		return nil, taskerr.Validation("%v", err)
	}

	ch := make(chan QueryEvent, 1)
	go func() {
		defer close(ch)

		var last []bson.Raw
		run := func(force bool) {
			docs, err := m.Query(ctx, collectionPath, filter, sort, 0)
			if err != nil {
				if ctx.Err() == nil {
					m.emitQuery(ctx, ch, QueryEvent{Err: err})
				}
				return
			}
			if !force && rawSetsEqual(docs, last) {
				return
			}
			last = docs
			m.emitQuery(ctx, ch, QueryEvent{Docs: docs})
		}
		run(true)

		stream, err := m.db.Collection(t.Collection).Watch(ctx, mongo.Pipeline{})
		if err != nil {
			m.log.Warn("change stream unavailable, polling instead",
				zap.String("path", collectionPath), zap.Error(err))
			ticker := time.NewTicker(m.pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					run(false)
				}
			}
		}
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			run(false)
		}
	}()
	return ch, nil
}

func (m *Mongo) emitQuery(ctx context.Context, ch chan<- QueryEvent, ev QueryEvent) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

func rawSetsEqual(a, b []bson.Raw) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
