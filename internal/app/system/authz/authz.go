// internal/app/system/authz/authz.go

// Package authz extracts the caller's identity from a request. Token
// issuance and verification happen in the out-of-scope auth front end; by
// the time a request reaches these handlers it carries an
// already-authenticated user id in the X-User-ID header.
package authz

import (
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated user id set by the auth front end.
const UserIDHeader = "X-User-ID"

// UserID returns the request's authenticated user id and whether one is
// present.
func UserID(r *http.Request) (string, bool) {
	uid := strings.TrimSpace(r.Header.Get(UserIDHeader))
	return uid, uid != ""
}
