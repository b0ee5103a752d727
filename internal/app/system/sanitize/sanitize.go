// internal/app/system/sanitize/sanitize.go

// Package sanitize strips markup from free-text input before it reaches
// either store. List and group names, task titles, and descriptions all
// come from users and are re-rendered in other members' clients.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text removes all HTML from s and trims surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(policy.Sanitize(s))
}
