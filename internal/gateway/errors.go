package gateway

import "errors"

// Error kinds surfaced by gateway implementations. Callers branch with
// errors.Is rather than matching message text.
var (
	// ErrValidation indicates malformed input rejected by the backend.
	ErrValidation = errors.New("invalid input")

	// ErrAuth indicates bad credentials, a missing/expired token, or a
	// failed authorization-code exchange.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound indicates the referenced task no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrNetwork indicates the backend is unreachable.
	ErrNetwork = errors.New("backend unreachable")
)
