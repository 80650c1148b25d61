package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/session"
	"github.com/hperssn/focusflow/internal/tracking"
	"github.com/hperssn/focusflow/internal/users"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errBadRequest}, args...)...)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// respondFailure maps service errors onto status codes. Anything unexpected
// is logged and reported as a generic server error.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound), errors.Is(err, session.ErrUserNotFound):
		respondError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrSessionCompleted),
		errors.Is(err, session.ErrActiveSessionExists):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, users.ErrMissingIdentity):
		respondError(w, "Missing required fields", http.StatusBadRequest)
	case errors.Is(err, errBadRequest),
		errors.Is(err, tracking.ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidStatus),
		errors.Is(err, session.ErrInvalidDuration):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		LoggerFrom(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, "Server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}
