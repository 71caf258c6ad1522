package whispers

import "errors"

// Error taxonomy for the authentication and storage boundary. Route
// handlers recover ErrInvalidCredentials and ErrProviderAuthFailure by
// redirecting to the login page; ErrStoreUnavailable is logged and the
// page degrades instead of failing.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. Callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreUnavailable means the account store could not be reached
	// or answered with a non-domain failure.
	ErrStoreUnavailable = errors.New("account store unavailable")

	// ErrProviderAuthFailure means an OAuth2 provider denied or aborted
	// the authorization-code flow.
	ErrProviderAuthFailure = errors.New("provider authentication failed")

	// ErrAccountNotFound is returned by lookups for a missing account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken is returned when registering an email that already
	// belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
)
