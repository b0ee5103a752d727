// internal/domain/models/list.go
package models

import "time"

// TodoList is a user-owned collection of tasks.
//
// TaskCount and CompletedTaskCount are derived aggregates recomputed by the
// syncer after task mutations. They are not authoritative and may drift
// transiently between mutations.
type TodoList struct {
	ID                 string    `bson:"_id" json:"id"`
	OwnerID            string    `bson:"owner_id" json:"owner_id"`
	Name               string    `bson:"name" json:"name"`
	Color              string    `bson:"color" json:"color"`
	TaskCount          int       `bson:"task_count" json:"task_count"`
	CompletedTaskCount int       `bson:"completed_task_count" json:"completed_task_count"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`

	// Synced reports whether this copy has been confirmed written to the
	// remote store. Owned by the syncer; nothing else writes it.
	Synced bool `bson:"-" json:"synced"`
}
