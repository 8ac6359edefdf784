// internal/handlers/api.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/app"
	"github.com/shrimpsizemoose/omtenta/internal/resit"
)

// statusForError maps the workflow error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, resit.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, resit.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resit.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, resit.ErrConflictingPending):
		return http.StatusConflict
	case errors.Is(err, resit.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

// requireIdentity resolves the caller from the identity header and, when
// auth is enabled, checks the bearer token. On failure the response is
// already written and the second return is false.
func requireIdentity(service *app.Service, w http.ResponseWriter, r *http.Request) (string, bool) {
	identity := service.Identity(r)
	if identity == "" {
		http.Error(w, "Invalid identity specified", http.StatusUnauthorized)
		return "", false
	}

	if err := service.ValidateAuthAndIdentity(r, identity); err != nil {
		logger.Error.Printf("Auth failed for %s: %v", identity, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	return identity, true
}
