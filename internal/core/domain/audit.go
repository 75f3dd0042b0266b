package domain

import "time"

// AuthEventKind classifies an entry in the authentication audit trail.
type AuthEventKind string

const (
	EventLoginFailed     AuthEventKind = "login_failed"
	EventOTPIssued       AuthEventKind = "otp_issued"
	EventOTPVerified     AuthEventKind = "otp_verified"
	EventAccountLocked   AuthEventKind = "account_locked"
	EventAccountUnlocked AuthEventKind = "account_unlocked"
)

// AuthEvent is one immutable audit record. Events are written best-effort
// after the credential state change has committed; a failed write never
// rolls back or fails the authentication flow itself.
type AuthEvent struct {
	UserID    string
	Email     string
	Kind      AuthEventKind
	Timestamp time.Time
}
