// internal/app/groups/codes.go

// Package groups owns the collaboration core: join-code allocation, the
// member-role state machine with its authorization checks, and the
// local/remote view reconciler for a single group.
package groups

import (
	"context"
	"crypto/rand"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/taskmesh/taskmesh/internal/app/store/local"
	"github.com/taskmesh/taskmesh/internal/app/store/remote"
	"github.com/taskmesh/taskmesh/internal/domain/models"
	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

const (
	// codeAlphabet drops I and O: codes are read aloud and typed back, and
	// those letters are too easy to confuse with 1 and 0.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"
	codeLength   = 6
	// maxCodeAttempts bounds collision retries in Generate. On exhaustion
	// the last candidate is returned anyway; the unique partial index on
	// active codes backstops creation.
	maxCodeAttempts = 10
	// codeScanLimit bounds the fallback full scan of active groups used to
	// defend against older records with inconsistent code casing.
	codeScanLimit = 500
)

// NormalizeCode folds a user-supplied join code for comparison and storage
// in the code_ci field.
func NormalizeCode(code string) string {
	return text.Fold(strings.TrimSpace(code))
}

// CodeAllocator generates and validates unique join codes against the
// combined local and remote view of active groups.
type CodeAllocator struct {
	local  *local.DB
	remote remote.Store
	log    *zap.Logger
	draw   func() string // candidate source, replaceable in tests
}

// NewCodeAllocator creates a CodeAllocator.
func NewCodeAllocator(localDB *local.DB, remoteStore remote.Store, logger *zap.Logger) *CodeAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeAllocator{local: localDB, remote: remoteStore, log: logger, draw: randomCode}
}

func randomCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// fixed byte so the modulo below still yields a valid code.
		for i := range buf {
			buf[i] = byte(i)
		}
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}

// Generate draws a fresh 6-character code, retrying on collision up to
// maxCodeAttempts. When the bound is exhausted or uniqueness cannot be
// verified (remote unreachable), the last candidate is returned anyway.
func (a *CodeAllocator) Generate(ctx context.Context) (string, error) {
	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code = a.draw()
		taken, err := a.Exists(ctx, code)
		if err != nil {
			a.log.Warn("code uniqueness check unavailable, accepting candidate",
				zap.String("code", code), zap.Error(err))
			return code, nil
		}
		if !taken {
			return code, nil
		}
	}
	a.log.Warn("code generation retry bound exhausted, returning last candidate",
		zap.String("code", code))
	return code, nil
}

// Exists reports whether any active group holds the given code, comparing
// case-insensitively. The exact-match query is tried first; an empty result
// falls back to a bounded scan of active groups with client-side
// normalization, then to the local cache.
func (a *CodeAllocator) Exists(ctx context.Context, code string) (bool, error) {
	ci := NormalizeCode(code)
	if ci == "" {
		return false, taskerr.Validation("group code is required")
	}

	docs, err := a.remote.Query(ctx, remote.GroupsPath(),
		map[string]any{"code_ci": ci, "active": true}, nil, 1)
	if err != nil {
		// Remote unreachable: the local cache is the best remaining view.
		found, lerr := a.local.ActiveGroupCodeExists(ctx, ci)
		if lerr != nil {
			return false, err
		}
		return found, nil
	}
	if len(docs) > 0 {
		return true, nil
	}

	// Older records may carry codes written with inconsistent casing and a
	// stale or missing code_ci; scan a bounded window and compare folded.
	docs, err = a.remote.Query(ctx, remote.GroupsPath(),
		map[string]any{"active": true}, nil, codeScanLimit)
	if err != nil {
		return false, err
	}
	for _, raw := range docs {
		var g models.Group
		if err := remote.Decode(raw, &g); err != nil {
			continue
		}
		if NormalizeCode(g.Code) == ci {
			return true, nil
		}
	}

	return a.local.ActiveGroupCodeExists(ctx, ci)
}

// Validate reports whether the code resolves to an active group.
func (a *CodeAllocator) Validate(ctx context.Context, code string) bool {
	found, err := a.Exists(ctx, code)
	if err != nil {
		a.log.Warn("code validation failed", zap.Error(err))
		return false
	}
	return found
}

// Resolve returns the active group holding the code.
func (a *CodeAllocator) Resolve(ctx context.Context, code string) (models.Group, error) {
	ci := NormalizeCode(code)
	if ci == "" {
		return models.Group{}, taskerr.Validation("group code is required")
	}
	docs, err := a.remote.Query(ctx, remote.GroupsPath(),
		map[string]any{"code_ci": ci, "active": true}, nil, 1)
	if err != nil {
		return models.Group{}, err
	}
	if len(docs) == 0 {
		// Same casing defense as Exists.
		scan, err := a.remote.Query(ctx, remote.GroupsPath(),
			map[string]any{"active": true}, nil, codeScanLimit)
		if err != nil {
			return models.Group{}, err
		}
		for _, raw := range scan {
			var g models.Group
			if err := remote.Decode(raw, &g); err != nil {
				continue
			}
			if NormalizeCode(g.Code) == ci {
				return g, nil
			}
		}
		return models.Group{}, taskerr.NotFound("no active group with code %s", strings.ToUpper(code))
	}
	var g models.Group
	if err := remote.Decode(docs[0], &g); err != nil {
		return models.Group{}, taskerr.Transport(err, "decode group")
	}
	return g, nil
}
