package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the authentication core. Unknown-email and
// wrong-password both surface as ErrInvalidCredentials so that callers
// cannot enumerate accounts.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired otp")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrVersionConflict     = errors.New("concurrent update conflict")
	ErrInvalidRegistration = errors.New("invalid registration data")
)

// AccountLockedError carries the remaining lockout window. It matches
// ErrAccountLocked under errors.Is; lockout is the only failure whose
// cause is disclosed precisely to the caller.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %d minutes", e.RetryAfterMinutes())
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RetryAfterMinutes returns the remaining lockout rounded up to whole
// minutes, never below one.
func (e *AccountLockedError) RetryAfterMinutes() int {
	m := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
