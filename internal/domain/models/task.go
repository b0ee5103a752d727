// internal/domain/models/task.go
package models

import "time"

// Priority orders task urgency. Values are comparable: Low < Medium < High < Urgent.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return "low"
}

// ParsePriority maps a stored priority string back to its enum value.
// Unknown strings fall back to low rather than failing the read.
func ParsePriority(s string) Priority {
	for p, name := range priorityNames {
		if name == s {
			return p
		}
	}
	return PriorityLow
}

// Subtask is an embedded checklist item on a Task.
type Subtask struct {
	ID    string `bson:"id" json:"id"`
	Title string `bson:"title" json:"title"`
	Done  bool   `bson:"done" json:"done"`
}

// Task is a single todo item belonging to a list.
//
// Invariant: CompletedAt is non-nil iff Completed is true.
type Task struct {
	ID          string     `bson:"_id" json:"id"`
	ListID      string     `bson:"list_id" json:"list_id"`
	OwnerID     string     `bson:"owner_id" json:"owner_id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description" json:"description"`
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Priority    Priority   `bson:"priority" json:"priority"`
	DueAt       *time.Time `bson:"due_at,omitempty" json:"due_at,omitempty"`
	RemindAt    *time.Time `bson:"remind_at,omitempty" json:"remind_at,omitempty"`
	Tags        []string   `bson:"tags,omitempty" json:"tags,omitempty"`
	Subtasks    []Subtask  `bson:"subtasks,omitempty" json:"subtasks,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`

	Synced bool `bson:"-" json:"synced"`
}

// SetCompleted flips the completion flag and keeps the CompletedAt invariant.
func (t *Task) SetCompleted(done bool, now time.Time) {
	t.Completed = done
	if done {
		ts := now.UTC()
		t.CompletedAt = &ts
	} else {
		t.CompletedAt = nil
	}
}
