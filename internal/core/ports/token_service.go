package ports

import (
	"context"
	"time"

	"github.com/bankstream/auth-core/internal/core/domain"
)

// TokenPair is one issued session: a short-lived access token and a
// longer-lived single-use refresh token, both signed.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// TokenService issues and rotates session token pairs.
type TokenService interface {
	Issue(ctx context.Context, user *domain.User) (TokenPair, error)
	// Refresh validates the presented refresh token and rotates it: a brand
	// new pair is issued and the presented token becomes unusable. Replaying
	// a rotated-out token fails with domain.ErrInvalidRefreshToken.
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RotationStore remembers spent refresh token IDs until their natural
// expiry, backing single-use rotation.
type RotationStore interface {
	MarkSpent(ctx context.Context, jti string, ttl time.Duration) error
	IsSpent(ctx context.Context, jti string) (bool, error)
}
