package goIdentity

import (
	"fmt"
	"strings"
)

// Failure is one symbolic validation failure with a fixed, user-safe
// description. Failure values compare by Code under errors.Is.
type Failure struct {
	Code        string
	Description string
}

func (f Failure) Error() string {
	return f.Code + ": " + f.Description
}

// Is reports whether target is a Failure with the same Code.
func (f Failure) Is(target error) bool {
	t, ok := target.(Failure)
	return ok && t.Code == f.Code
}

// Failure codes.
const (
	CodeDefaultError                    = "DefaultError"
	CodeConcurrencyFailure              = "ConcurrencyFailure"
	CodePasswordMismatch                = "PasswordMismatch"
	CodeInvalidToken                    = "InvalidToken"
	CodeInvalidUserName                 = "InvalidUserName"
	CodeInvalidEmail                    = "InvalidEmail"
	CodeDuplicateUserName               = "DuplicateUserName"
	CodeDuplicateEmail                  = "DuplicateEmail"
	CodeUserAlreadyHasPassword          = "UserAlreadyHasPassword"
	CodeUserLockoutNotEnabled           = "UserLockoutNotEnabled"
	CodeUserAlreadyInRole               = "UserAlreadyInRole"
	CodeUserNotInRole                   = "UserNotInRole"
	CodePasswordTooShort                = "PasswordTooShort"
	CodePasswordRequiresUniqueChars     = "PasswordRequiresUniqueChars"
	CodePasswordRequiresNonAlphanumeric = "PasswordRequiresNonAlphanumeric"
	CodePasswordRequiresDigit           = "PasswordRequiresDigit"
	CodePasswordRequiresLower           = "PasswordRequiresLower"
	CodePasswordRequiresUpper           = "PasswordRequiresUpper"
	CodeTwoFactorRateLimited            = "TwoFactorRateLimited"
)

// Predefined failures for errors.Is matching against Result.Err.
var (
	FailureDefault                  = Failure{CodeDefaultError, "An unknown failure has occurred."}
	FailureConcurrency              = Failure{CodeConcurrencyFailure, "Optimistic concurrency failure, object has been modified."}
	FailurePasswordMismatch         = Failure{CodePasswordMismatch, "Incorrect password."}
	FailureInvalidToken             = Failure{CodeInvalidToken, "Invalid token."}
	FailureUserAlreadyHasPassword   = Failure{CodeUserAlreadyHasPassword, "User already has a password set."}
	FailureUserLockoutNotEnabled    = Failure{CodeUserLockoutNotEnabled, "Lockout is not enabled for this user."}
	FailurePasswordRequiresNonAlpha = Failure{CodePasswordRequiresNonAlphanumeric, "Passwords must have at least one non alphanumeric character."}
	FailurePasswordRequiresDigit    = Failure{CodePasswordRequiresDigit, "Passwords must have at least one digit ('0'-'9')."}
	FailurePasswordRequiresLower    = Failure{CodePasswordRequiresLower, "Passwords must have at least one lowercase ('a'-'z')."}
	FailurePasswordRequiresUpper    = Failure{CodePasswordRequiresUpper, "Passwords must have at least one uppercase ('A'-'Z')."}
	FailureTwoFactorRateLimited     = Failure{CodeTwoFactorRateLimited, "Too many two-factor attempts. Try again later."}
)

func failurePasswordTooShort(length int) Failure {
	return Failure{CodePasswordTooShort, fmt.Sprintf("Passwords must be at least %d characters.", length)}
}

func failurePasswordRequiresUniqueChars(n int) Failure {
	return Failure{CodePasswordRequiresUniqueChars, fmt.Sprintf("Passwords must use at least %d different characters.", n)}
}

func failureInvalidUserName(name string) Failure {
	return Failure{CodeInvalidUserName, fmt.Sprintf("Username '%s' is invalid, can only contain letters or digits.", name)}
}

func failureInvalidEmail(email string) Failure {
	return Failure{CodeInvalidEmail, fmt.Sprintf("Email '%s' is invalid.", email)}
}

func failureDuplicateUserName(name string) Failure {
	return Failure{CodeDuplicateUserName, fmt.Sprintf("Username '%s' is already taken.", name)}
}

func failureDuplicateEmail(email string) Failure {
	return Failure{CodeDuplicateEmail, fmt.Sprintf("Email '%s' is already taken.", email)}
}

func failureUserAlreadyInRole(role string) Failure {
	return Failure{CodeUserAlreadyInRole, fmt.Sprintf("User already in role '%s'.", role)}
}

func failureUserNotInRole(role string) Failure {
	return Failure{CodeUserNotInRole, fmt.Sprintf("User is not in role '%s'.", role)}
}

// Result is the outcome of an operation that can fail validation. All
// violated rules are reported together.
type Result struct {
	Succeeded bool
	Failures  []Failure
}

// Success returns a successful Result.
func Success() Result {
	return Result{Succeeded: true}
}

// Failed returns a failed Result carrying failures. With no arguments the
// result carries FailureDefault.
func Failed(failures ...Failure) Result {
	if len(failures) == 0 {
		failures = []Failure{FailureDefault}
	}
	return Result{Failures: append([]Failure(nil), failures...)}
}

// Has reports whether the result carries a failure with code.
func (r Result) Has(code string) bool {
	for _, f := range r.Failures {
		if f.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the failure codes in order.
func (r Result) Codes() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Code)
	}
	return out
}

// Err returns nil on success, otherwise a *ResultError.
func (r Result) Err() error {
	if r.Succeeded {
		return nil
	}
	return &ResultError{Failures: r.Failures}
}

func (r Result) String() string {
	if r.Succeeded {
		return "Succeeded"
	}
	return "Failed : " + strings.Join(r.Codes(), ",")
}

// ResultError wraps the failures of an unsuccessful Result.
type ResultError struct {
	Failures []Failure
}

func (e *ResultError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "goIdentity: " + strings.Join(parts, "; ")
}

// Unwrap exposes each failure to errors.Is and errors.As.
func (e *ResultError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}
