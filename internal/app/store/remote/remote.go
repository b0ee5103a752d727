// internal/app/store/remote/remote.go

// Package remote defines the contract for the authoritative cloud document
// store and its MongoDB implementation. Documents are addressed by
// hierarchical path; the caller encodes and decodes documents through their
// bson tags, so the contract itself stays entity-agnostic.
package remote

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// DocEvent is one delivery on a single-document subscription. A nil Doc with
// a nil Err means the document does not (or no longer) exists.
type DocEvent struct {
	Doc bson.Raw
	Err error
}

// QueryEvent is one delivery on a query subscription: the full current
// result set, re-sent whenever it may have changed.
type QueryEvent struct {
	Docs []bson.Raw
	Err  error
}

// Sort orders a query by a single field.
type Sort struct {
	Field string
	Asc   bool
}

// Store is the remote document store contract.
//
// All calls return eventually; there is no timeout beyond the caller's ctx.
// No multi-document atomicity is available: callers sequence their own
// writes and own the resulting windows.
type Store interface {
	// Get decodes the document at path into out.
	// Returns a NotFound taskerr when absent.
	Get(ctx context.Context, path string, out any) error
	// Set writes doc at path, overwriting any existing document.
	Set(ctx context.Context, path string, doc any) error
	// Update applies a partial field update to the document at path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document at path. Absent documents are not an error.
	Delete(ctx context.Context, path string) error
	// Increment atomically adds delta to a numeric field of the document.
	Increment(ctx context.Context, path string, field string, delta int) error

	// Query returns the documents of a collection path matching filter.
	// limit <= 0 means no limit.
	Query(ctx context.Context, collectionPath string, filter map[string]any, sort *Sort, limit int64) ([]bson.Raw, error)

	// SubscribeDoc delivers the current document at path, then every
	// subsequent change, until ctx is canceled. The channel is closed on
	// cancellation.
	SubscribeDoc(ctx context.Context, path string) (<-chan DocEvent, error)
	// SubscribeQuery delivers the current result set of the filtered
	// collection, then re-delivers it after changes, until ctx is canceled.
	SubscribeQuery(ctx context.Context, collectionPath string, filter map[string]any, sort *Sort) (<-chan QueryEvent, error)
}

// Decode unmarshals a raw document into out.
func Decode(raw bson.Raw, out any) error {
	return bson.Unmarshal(raw, out)
}
