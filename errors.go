package goIdentity

import "errors"

// Precondition errors. These signal programmer or infrastructure problems and
// are returned as plain errors; expected outcomes such as a wrong password are
// reported through Result instead.
var (
	// ErrNilUser is returned when an operation receives a nil *User.
	ErrNilUser = errors.New("user is nil")
	// ErrInvalidArgument is returned for empty or out-of-range arguments.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotSupported is returned when the store lacks a capability an
	// operation needs, or when a token provider name is not registered.
	ErrNotSupported = errors.New("operation not supported")
	// ErrManagerNotReady is returned by methods on a nil or unbuilt Manager.
	ErrManagerNotReady = errors.New("manager not initialized")
	// ErrManagerClosed is returned by methods called after Close.
	ErrManagerClosed = errors.New("manager closed")
	// ErrUserNotFound is returned by stores when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrConcurrencyFailure is returned by stores when an Update loses an
	// optimistic concurrency check.
	ErrConcurrencyFailure = errors.New("optimistic concurrency failure")
	// ErrDuplicateUser is returned by stores when Create collides with an
	// existing ID.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrTwoFactorUnavailable is returned when the two-factor attempt limiter
	// backend cannot be reached.
	ErrTwoFactorUnavailable = errors.New("two-factor limiter unavailable")
	// ErrPersonalDataUnreadable is returned when a protected value read from
	// the store cannot be unprotected. Token providers treat it as "no key".
	ErrPersonalDataUnreadable = errors.New("personal data unreadable")
)
