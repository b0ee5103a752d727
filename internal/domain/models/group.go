// internal/domain/models/group.go
package models

import "time"

// Group is a shared workspace users join by code.
//
// NOTE:
//   - Members are not embedded on Group; membership lives in the
//     group_members collection keyed by groupID_userID.
//   - Deletion is a soft delete: Active flips to false, the document stays.
//   - Code is unique among *active* groups only; a deactivated group's code
//     becomes reusable.
type Group struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description" json:"description"`
	Code        string `bson:"code" json:"code"`
	// CodeCI is the case-folded form of Code, kept for the unique partial
	// index and exact-match lookups.
	CodeCI      string    `bson:"code_ci" json:"code_ci"`
	OwnerID     string    `bson:"owner_id" json:"owner_id"`
	Color       string    `bson:"color" json:"color"`
	MemberCount int       `bson:"member_count" json:"member_count"`
	TaskCount   int       `bson:"task_count" json:"task_count"`
	Active      bool      `bson:"active" json:"active"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
