// internal/app/store/remote/path.go
package remote

import (
	"fmt"
	"strings"
)

// Path layout mirrors the remote document hierarchy:
//
//	users/{uid}/lists/{listID}
//	users/{uid}/lists/{listID}/tasks/{taskID}
//	groups/{groupID}
//	groups/{groupID}/members/{memberID}
//
// Each path maps to a flat collection plus scope fields derived from the
// path segments, so implementations can address documents without nesting.

// ListPath returns the document path for a user's list.
func ListPath(userID, listID string) string {
	return fmt.Sprintf("users/%s/lists/%s", userID, listID)
}

// ListsPath returns the collection path for a user's lists.
func ListsPath(userID string) string {
	return fmt.Sprintf("users/%s/lists", userID)
}

// TaskPath returns the document path for a task under a user's list.
func TaskPath(userID, listID, taskID string) string {
	return fmt.Sprintf("users/%s/lists/%s/tasks/%s", userID, listID, taskID)
}

// TasksPath returns the collection path for a list's tasks.
func TasksPath(userID, listID string) string {
	return fmt.Sprintf("users/%s/lists/%s/tasks", userID, listID)
}

// GroupPath returns the document path for a group.
func GroupPath(groupID string) string {
	return fmt.Sprintf("groups/%s", groupID)
}

// GroupsPath returns the groups collection path.
func GroupsPath() string { return "groups" }

// MemberPath returns the document path for a group membership.
func MemberPath(groupID, memberID string) string {
	return fmt.Sprintf("groups/%s/members/%s", groupID, memberID)
}

// MembersPath returns the collection path for a group's members.
func MembersPath(groupID string) string {
	return fmt.Sprintf("groups/%s/members", groupID)
}

// Target is a resolved path: the backing collection, the document id (empty
// for collection paths), and the scope fields implied by the path segments.
type Target struct {
	Collection string
	ID         string
	Scope      map[string]any
}

// ParsePath resolves a document or collection path to its target.
func ParsePath(path string) (Target, error) {
	seg := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(seg) == 1 && seg[0] == "groups":
		return Target{Collection: "groups", Scope: map[string]any{}}, nil
	case len(seg) == 2 && seg[0] == "groups":
		return Target{Collection: "groups", ID: seg[1], Scope: map[string]any{}}, nil
	case len(seg) == 3 && seg[0] == "groups" && seg[2] == "members":
		return Target{Collection: "group_members", Scope: map[string]any{"group_id": seg[1]}}, nil
	case len(seg) == 4 && seg[0] == "groups" && seg[2] == "members":
		return Target{Collection: "group_members", ID: seg[3], Scope: map[string]any{"group_id": seg[1]}}, nil
	case len(seg) == 3 && seg[0] == "users" && seg[2] == "lists":
		return Target{Collection: "lists", Scope: map[string]any{"owner_id": seg[1]}}, nil
	case len(seg) == 4 && seg[0] == "users" && seg[2] == "lists":
		return Target{Collection: "lists", ID: seg[3], Scope: map[string]any{"owner_id": seg[1]}}, nil
	case len(seg) == 5 && seg[0] == "users" && seg[2] == "lists" && seg[4] == "tasks":
		return Target{Collection: "tasks", Scope: map[string]any{"owner_id": seg[1], "list_id": seg[3]}}, nil
	case len(seg) == 6 && seg[0] == "users" && seg[2] == "lists" && seg[4] == "tasks":
		return Target{Collection: "tasks", ID: seg[5], Scope: map[string]any{"owner_id": seg[1], "list_id": seg[3]}}, nil
	}
	return Target{}, fmt.Errorf("unrecognized remote path %q", path)
}
