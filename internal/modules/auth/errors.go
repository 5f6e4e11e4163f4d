package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// callers must never be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAccountDeactivated = errors.New("account deactivated")
	ErrMFASetupRequired   = errors.New("mfa setup required for this role")
	ErrMFANotEnabled      = errors.New("mfa not enabled")
	ErrMFAInvalidCode     = errors.New("invalid mfa code")
	ErrTokenRevoked       = errors.New("token revoked")
)

// AccountLockedError carries the remaining lockout time so callers can tell
// the user when to retry. Lockout is not an enumeration risk: it fires for
// existing accounts regardless of password correctness.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d minutes", e.RetryAfterMinutes())
}

func (e *AccountLockedError) RetryAfterMinutes() int {
	m := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// PasswordPolicyError lists the specific unmet requirement tags.
type PasswordPolicyError struct {
	Missing []string
}

func (e *PasswordPolicyError) Error() string {
	return "password too weak: missing " + strings.Join(e.Missing, ", ")
}
