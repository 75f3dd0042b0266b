package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTTokenService issues and rotates HS256-signed session token pairs. It is
// stateless except for the rotation store, which remembers spent refresh
// token IDs so each refresh token is usable exactly once.
type JWTTokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rotation   ports.RotationStore
	log        zerolog.Logger
	now        func() time.Time
}

// NewJWTTokenService builds a token manager. Zero lifetimes fall back to
// 30 minutes (access) and 24 hours (refresh).
func NewJWTTokenService(secret string, accessTTL, refreshTTL time.Duration, rotation ports.RotationStore, log zerolog.Logger) *JWTTokenService {
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &JWTTokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rotation:   rotation,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the time source for deterministic expiry tests.
func (s *JWTTokenService) WithClock(now func() time.Time) *JWTTokenService {
	s.now = now
	return s
}

// Issue signs a fresh access/refresh pair carrying the identity id and role.
func (s *JWTTokenService) Issue(_ context.Context, user *domain.User) (ports.TokenPair, error) {
	now := s.now()

	access, err := s.sign(jwt.MapClaims{
		"sub":        user.ID,
		"role":       string(user.Role),
		"token_type": tokenTypeAccess,
		"iat":        now.Unix(),
		"exp":        now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.sign(jwt.MapClaims{
		"sub":        user.ID,
		"role":       string(user.Role),
		"token_type": tokenTypeRefresh,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(s.refreshTTL).Unix(),
	})
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return ports.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.accessTTL,
		RefreshTTL:   s.refreshTTL,
	}, nil
}

// Refresh validates the presented refresh token, marks its jti as spent and
// issues a brand-new pair. A rotated-out, malformed, mis-typed or expired
// token fails with domain.ErrInvalidRefreshToken.
func (s *JWTTokenService) Refresh(ctx context.Context, refreshToken string) (ports.TokenPair, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(refreshToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tkn.Valid {
		return ports.TokenPair{}, domain.ErrInvalidRefreshToken
	}

	typ, _ := claims["token_type"].(string)
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	jti, _ := claims["jti"].(string)
	if typ != tokenTypeRefresh || sub == "" || jti == "" {
		return ports.TokenPair{}, domain.ErrInvalidRefreshToken
	}

	spent, err := s.rotation.IsSpent(ctx, jti)
	if err != nil {
		// Fail closed: with the rotation store unreachable a replayed token
		// cannot be told apart from a fresh one.
		return ports.TokenPair{}, fmt.Errorf("refresh: rotation check: %w", err)
	}
	if spent {
		s.log.Warn().Str("user_id", sub).Msg("rotated-out refresh token replayed")
		return ports.TokenPair{}, domain.ErrInvalidRefreshToken
	}

	// Remember the old jti until the token would have expired anyway.
	if err := s.rotation.MarkSpent(ctx, jti, s.remainingLife(claims)); err != nil {
		return ports.TokenPair{}, fmt.Errorf("refresh: mark spent: %w", err)
	}

	return s.Issue(ctx, &domain.User{ID: sub, Role: domain.Role(role)})
}

func (s *JWTTokenService) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// remainingLife computes how long the presented token had left to live,
// falling back to the full refresh lifetime when exp is unreadable.
func (s *JWTTokenService) remainingLife(claims jwt.MapClaims) time.Duration {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return s.refreshTTL
	}
	left := exp.Sub(s.now())
	if left <= 0 {
		return time.Minute
	}
	return left
}
