package ports

import (
	"context"

	"github.com/bankstream/auth-core/internal/core/domain"
)

// RegisterInput carries the fields collected at sign-up. The login handle is
// generated server-side, never user-chosen.
type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	MiddleName       string
	LastName         string
	IDNumber         int64
	SecurityQuestion domain.SecurityQuestion
	SecurityAnswer   string
}

// LoginAck acknowledges a successful primary authentication. No tokens are
// issued at this stage; the caller must complete OTP verification.
type LoginAck struct {
	Email string
}

// LoginService is the credential verification state machine: password check,
// lockout gate, OTP issuance and OTP verification.
type LoginService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	// Login runs primary authentication and, on success, issues an OTP and
	// triggers its delivery. Returns domain.ErrInvalidCredentials for both
	// unknown emails and wrong passwords, and *domain.AccountLockedError
	// when the identity is locked out.
	Login(ctx context.Context, email, password string) (*LoginAck, error)
	// VerifyOTP consumes a submitted code. The code is looked up globally;
	// on success the stored OTP is cleared and a session pair is issued.
	VerifyOTP(ctx context.Context, code string) (*domain.User, TokenPair, error)
	// UnlockAccount is the explicit administrative unlock transition.
	UnlockAccount(ctx context.Context, userID string) (*domain.User, error)
}
