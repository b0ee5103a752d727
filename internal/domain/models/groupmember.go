// internal/domain/models/groupmember.go
package models

import "time"

// Role governs which group mutations a member may perform.
// Ordering: RoleOwner > RoleAdmin > RoleMember.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// MemberProfile is the display snapshot a user supplies when joining.
type MemberProfile struct {
	DisplayName string `bson:"display_name" json:"display_name"`
	Email       string `bson:"email" json:"email"`
	AvatarURL   string `bson:"avatar_url" json:"avatar_url"`
}

// GroupMember is the authoritative join between users and groups.
// The document id is deterministic (groupID + "_" + userID), so a user has at
// most one membership record per group; re-joining overwrites it.
//
// Invariants:
//   - exactly one active member with RoleOwner per active group
//   - the owner's record is never deleted, only deactivated with the group
type GroupMember struct {
	ID             string    `bson:"_id" json:"id"`
	GroupID        string    `bson:"group_id" json:"group_id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	DisplayName    string    `bson:"display_name" json:"display_name"`
	Email          string    `bson:"email" json:"email"`
	AvatarURL      string    `bson:"avatar_url" json:"avatar_url"`
	Role           Role      `bson:"role" json:"role"`
	TasksCompleted int       `bson:"tasks_completed" json:"tasks_completed"`
	Active         bool      `bson:"active" json:"active"`
	JoinedAt       time.Time `bson:"joined_at" json:"joined_at"`
}

// MemberID builds the deterministic membership document id.
func MemberID(groupID, userID string) string {
	return groupID + "_" + userID
}
