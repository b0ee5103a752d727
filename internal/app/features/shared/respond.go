// internal/app/features/shared/respond.go

// Package shared holds the JSON plumbing the feature handlers have in
// common: response encoding, request decoding, and the mapping from the
// core's error taxonomy to HTTP status codes.
package shared

import (
	"encoding/json"
	"net/http"

	"github.com/taskmesh/taskmesh/internal/domain/taskerr"
	"go.uber.org/zap"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Decode reads the request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return taskerr.Validation("invalid request body: %v", err)
	}
	return nil
}

type errBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Error maps a core error to its HTTP status and writes the error body.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := taskerr.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case taskerr.KindValidation:
		status = http.StatusBadRequest
	case taskerr.KindAuthorization:
		status = http.StatusForbidden
	case taskerr.KindNotFound:
		status = http.StatusNotFound
	case taskerr.KindConflict:
		status = http.StatusConflict
	case taskerr.KindTransport:
		log.Error("store call failed", zap.Error(err))
	}
	JSON(w, status, errBody{Error: err.Error(), Kind: kind.String()})
}

// Unauthorized writes the response for a request with no user id.
func Unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, errBody{Error: "missing authenticated user id", Kind: "unauthorized"})
}
