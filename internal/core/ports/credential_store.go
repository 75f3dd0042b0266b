package ports

import (
	"context"
	"time"

	"github.com/bankstream/auth-core/internal/core/domain"
)

// CredentialStore is the single source of truth for identities. Save must be
// atomic per record: implementations compare-and-swap on User.Version and
// return domain.ErrVersionConflict when the record changed underneath the
// caller, who re-reads and retries.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByActiveOTP locates the identity holding code as an unexpired OTP.
	// Missing and expired codes are indistinguishable to the caller: both
	// return domain.ErrUserNotFound.
	FindByActiveOTP(ctx context.Context, code string, now time.Time) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
}
