package resit

import "errors"

// Sentinel errors for workflow outcomes. Handlers and the bot map these
// to transport codes with errors.Is, so wrap them, never shadow them.
var (
	// ErrNotAuthorized means the actor lacks the capability for the
	// operation: not a recorder, not an approver, or not the
	// authority.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound means the referenced student attempt or resit id
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the resit exists but is not in a state
	// that permits the operation, e.g. submitting a result before
	// resolution or approving after execution.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflictingPending means the student already has an
	// unfinished resit request.
	ErrConflictingPending = errors.New("conflicting pending request")

	// ErrInvalidArgument means a caller-supplied value is out of
	// range: negative score, empty reason, zero quorum and so on.
	ErrInvalidArgument = errors.New("invalid argument")
)
