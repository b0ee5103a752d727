// internal/domain/models/session.go
package models

import "time"

// FocusSession records one timed focus block, optionally tied to a task.
// Sessions are local-only today; the remote leg of their sync path is a
// declared extension point and currently a no-op.
type FocusSession struct {
	ID           string    `bson:"_id" json:"id"`
	OwnerID      string    `bson:"owner_id" json:"owner_id"`
	TaskID       string    `bson:"task_id,omitempty" json:"task_id,omitempty"`
	Duration     int       `bson:"duration_seconds" json:"duration_seconds"`
	StartedAt    time.Time `bson:"started_at" json:"started_at"`
	EndedAt      time.Time `bson:"ended_at" json:"ended_at"`
	Completed    bool      `bson:"completed" json:"completed"`
	PointsEarned int       `bson:"points_earned" json:"points_earned"`

	Synced bool `bson:"-" json:"synced"`
}
