package ports

import (
	"context"
	"time"
)

// Notifier delivers security emails. Calls are best-effort: implementations
// must never block the login path, and delivery failure is logged, not
// returned to the authentication flow.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string, expiry time.Time)
	SendAccountLocked(ctx context.Context, email string, lockoutMinutes int)
}
