package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/bankstream/auth-core/internal/core/domain"
)

// LockoutPolicy tracks failed login attempts per identity and drives the
// active/locked state machine. All methods mutate the in-memory record only;
// persisting the result is the caller's job, which keeps the transition and
// the store write in a single compare-and-swap.
type LockoutPolicy struct {
	threshold int
	duration  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewLockoutPolicy builds a policy engine. threshold is the failure count
// that flips an account to locked; duration is how long the lock holds.
func NewLockoutPolicy(threshold int, duration time.Duration, log zerolog.Logger) *LockoutPolicy {
	return &LockoutPolicy{
		threshold: threshold,
		duration:  duration,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Tests use this for deterministic
// lockout-window assertions.
func (p *LockoutPolicy) WithClock(now func() time.Time) *LockoutPolicy {
	p.now = now
	return p
}

// RecordFailure increments the failure counter and stamps the attempt. It
// returns true only on the call that crosses the threshold and flips the
// account to locked, so the caller can notify exactly once.
func (p *LockoutPolicy) RecordFailure(u *domain.User) bool {
	u.FailedLoginAttempts++
	now := p.now()
	u.LastFailedLogin = &now

	if u.FailedLoginAttempts < p.threshold {
		return false
	}

	crossed := u.AccountStatus != domain.StatusLocked
	u.AccountStatus = domain.StatusLocked
	if crossed {
		p.log.Warn().
			Str("user_id", u.ID).
			Int("failed_attempts", u.FailedLoginAttempts).
			Msg("account locked after repeated failed logins")
	}
	return crossed
}

// RecordSuccess resets the failure state and reactivates the account.
func (p *LockoutPolicy) RecordSuccess(u *domain.User) {
	u.FailedLoginAttempts = 0
	u.LastFailedLogin = nil
	u.AccountStatus = domain.StatusActive
}

// IsLockedOut reports whether the identity is currently locked. An expired
// lock is lifted lazily here (read-time expiry): the record is reset to
// active in memory and false is returned; the caller persists the change on
// its next save.
func (p *LockoutPolicy) IsLockedOut(u *domain.User) bool {
	if u.AccountStatus != domain.StatusLocked {
		return false
	}
	if u.LastFailedLogin != nil && p.now().Sub(*u.LastFailedLogin) > p.duration {
		p.RecordSuccess(u)
		p.log.Info().Str("user_id", u.ID).Msg("lockout window elapsed, account unlocked")
		return false
	}
	return true
}

// Remaining returns how much of the lockout window is left. Zero when the
// account is not locked or the window has elapsed.
func (p *LockoutPolicy) Remaining(u *domain.User) time.Duration {
	if u.AccountStatus != domain.StatusLocked || u.LastFailedLogin == nil {
		return 0
	}
	left := p.duration - p.now().Sub(*u.LastFailedLogin)
	if left < 0 {
		return 0
	}
	return left
}

// LockoutMinutes is the full window in whole minutes, used in notifications.
func (p *LockoutPolicy) LockoutMinutes() int {
	return int(p.duration / time.Minute)
}
