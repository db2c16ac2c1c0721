package api

import "fmt"

// AuthReason discriminates the two authentication failure classes.
type AuthReason string

const (
	// MissingToken means a call that requires auth found no stored token.
	// No network round trip happened.
	MissingToken AuthReason = "missing_token"

	// SessionExpired means the refresh path was exhausted. This is the
	// single fatal class: the session is terminated and never retried.
	SessionExpired AuthReason = "session_expired"
)

// AuthError is an authentication failure. SessionExpired always follows a
// credential wipe and the logout hook firing.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case MissingToken:
		return "no access token stored"
	case SessionExpired:
		return "session expired, please login again"
	}
	return fmt.Sprintf("auth error: %s", e.Reason)
}

// NetworkReason discriminates transport failure classes.
type NetworkReason string

const (
	// Timeout means the per-call deadline elapsed.
	Timeout NetworkReason = "timeout"

	// Unreachable means the transport failed before a response arrived.
	Unreachable NetworkReason = "unreachable"
)

// NetworkError is a transport-level failure. Raising one also flips the
// shared connectivity flag to unreachable.
type NetworkError struct {
	Reason NetworkReason
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not reach server (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("could not reach server (%s)", e.Reason)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response the server produced deliberately.
// It propagates to the caller as a displayable result.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error %d", e.Status)
}
