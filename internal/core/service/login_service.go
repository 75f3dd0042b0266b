package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bankstream/auth-core/internal/api/metrics"
	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
)

// saveAttempts bounds the optimistic-concurrency retry loop. Conflicts only
// arise from concurrent logins against the same identity, so contention is
// short-lived.
const saveAttempts = 3

// Config carries the authentication policy constants. Every component
// receives them explicitly at construction.
type Config struct {
	BankName         string
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	OTPLength        int
	OTPTTL           time.Duration
}

// AuthService is the login state machine: primary authentication, lockout
// gate, OTP issuance and OTP verification, plus registration and the
// administrative unlock.
type AuthService struct {
	store    ports.CredentialStore
	tokens   ports.TokenService
	notifier ports.Notifier
	hasher   PasswordHasher
	lockout  *LockoutPolicy
	audit    ports.AuditTrail
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

// NewAuthService wires the state machine to its collaborators.
func NewAuthService(
	store ports.CredentialStore,
	tokens ports.TokenService,
	notifier ports.Notifier,
	hasher PasswordHasher,
	cfg Config,
	log zerolog.Logger,
) *AuthService {
	if cfg.OTPLength <= 0 {
		cfg.OTPLength = DefaultOTPLength
	}
	return &AuthService{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		hasher:   hasher,
		lockout:  NewLockoutPolicy(cfg.MaxLoginAttempts, cfg.LockoutDuration, log),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source for the service and its lockout
// engine. Tests use this for deterministic expiry assertions.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	s.lockout.WithClock(now)
	return s
}

// WithAudit attaches an audit trail. Events are recorded after the state
// change has committed; recording is best-effort and never fails the flow.
func (s *AuthService) WithAudit(trail ports.AuditTrail) *AuthService {
	s.audit = trail
	return s
}

func (s *AuthService) recordEvent(ctx context.Context, u *domain.User, kind domain.AuthEventKind) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &domain.AuthEvent{
		UserID:    u.ID,
		Email:     u.Email,
		Kind:      kind,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", u.ID).Str("kind", string(kind)).Msg("audit event write failed")
	}
}

// Login runs primary authentication for (email, password).
//
// Unknown emails and wrong passwords are indistinguishable to the caller:
// both return domain.ErrInvalidCredentials. Failed attempts against an
// existing identity are counted; the call that crosses the lockout threshold
// returns *domain.AccountLockedError instead, as does any attempt against a
// still-locked account. On success the prior failure state is cleared, a
// fresh OTP replaces any outstanding one, and delivery is triggered
// fire-and-forget. No tokens are issued here.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginAck, error) {
	email = NormalizeEmail(email)

	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// No counters for unknown emails: nothing to increment, and the
			// caller learns nothing about account existence.
			s.log.Info().Str("email", email).Msg("login attempt for unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	// 1. Password check.
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, s.failLogin(ctx, u)
	}

	// 2. Lockout gate. A correct password does not bypass a lock left
	// over from an earlier session, and does not reset its counters.
	if s.lockout.IsLockedOut(u) {
		s.log.Warn().Str("user_id", u.ID).Msg("locked-out account attempted login")
		return nil, &domain.AccountLockedError{RetryAfter: s.lockout.Remaining(u)}
	}

	// 3. Clear failure state, issue the OTP (overwriting any previous
	// one) and persist both under a single compare-and-swap.
	code, err := GenerateOTP(s.cfg.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	expiry := s.now().Add(s.cfg.OTPTTL)

	u, err = s.update(ctx, u, func(x *domain.User) error {
		s.lockout.RecordSuccess(x)
		x.SetOTP(code, expiry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	// Delivery is best-effort and must never fail the request.
	s.notifier.SendOTP(ctx, u.Email, code, expiry)
	s.recordEvent(ctx, u, domain.EventOTPIssued)

	s.log.Info().Str("user_id", u.ID).Msg("otp issued for login verification")
	return &ports.LoginAck{Email: u.Email}, nil
}

// failLogin records a failed attempt and maps the result to the caller-facing
// error. The lockout notification is sent only after the transition has
// committed, so a save retry can never double-send.
func (s *AuthService) failLogin(ctx context.Context, u *domain.User) error {
	var lockedNow bool
	u, err := s.update(ctx, u, func(x *domain.User) error {
		lockedNow = s.lockout.RecordFailure(x)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	s.log.Info().
		Str("user_id", u.ID).
		Int("failed_attempts", u.FailedLoginAttempts).
		Msg("failed login attempt")

	s.recordEvent(ctx, u, domain.EventLoginFailed)
	if lockedNow {
		metrics.LockoutsTotal.Inc()
		s.notifier.SendAccountLocked(ctx, u.Email, s.lockout.LockoutMinutes())
		s.recordEvent(ctx, u, domain.EventAccountLocked)
	}
	if s.lockout.IsLockedOut(u) {
		return &domain.AccountLockedError{RetryAfter: s.lockout.Remaining(u)}
	}
	return domain.ErrInvalidCredentials
}

// VerifyOTP completes the second factor. The code is looked up globally: it
// must match an unexpired stored OTP, and missing and expired codes produce
// the same error. On success the OTP is cleared (single use) and a session
// pair is issued. An expired OTP is left in place until the next issuance
// overwrites it.
func (s *AuthService) VerifyOTP(ctx context.Context, code string) (*domain.User, ports.TokenPair, error) {
	if code == "" {
		return nil, ports.TokenPair{}, domain.ErrInvalidOrExpiredOTP
	}

	u, err := s.store.FindByActiveOTP(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ports.TokenPair{}, domain.ErrInvalidOrExpiredOTP
		}
		return nil, ports.TokenPair{}, fmt.Errorf("verify otp: %w", err)
	}

	if s.lockout.IsLockedOut(u) {
		s.log.Warn().Str("user_id", u.ID).Msg("locked-out account attempted otp verification")
		return nil, ports.TokenPair{}, &domain.AccountLockedError{RetryAfter: s.lockout.Remaining(u)}
	}

	// Re-check inside the CAS loop: a concurrent login may have overwritten
	// the code between lookup and save.
	u, err = s.update(ctx, u, func(x *domain.User) error {
		if !x.HasActiveOTP(s.now()) || subtle.ConstantTimeCompare([]byte(x.OTP), []byte(code)) != 1 {
			return domain.ErrInvalidOrExpiredOTP
		}
		x.ClearOTP()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrExpiredOTP) {
			return nil, ports.TokenPair{}, err
		}
		return nil, ports.TokenPair{}, fmt.Errorf("verify otp: %w", err)
	}

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, ports.TokenPair{}, fmt.Errorf("verify otp: issue session: %w", err)
	}

	s.recordEvent(ctx, u, domain.EventOTPVerified)
	s.log.Info().Str("user_id", u.ID).Msg("otp verified, session issued")
	return u, pair, nil
}

// Register creates a new customer identity. The login handle is generated
// from the bank name, never chosen by the user.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, domain.ErrInvalidRegistration
	}
	if !input.SecurityQuestion.Valid() || strings.TrimSpace(input.SecurityAnswer) == "" {
		return nil, domain.ErrInvalidRegistration
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	handle, err := GenerateHandle(s.cfg.BankName)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	u := &domain.User{
		ID:               uuid.NewString(),
		Username:         handle,
		Email:            email,
		PasswordHash:     hash,
		FirstName:        input.FirstName,
		MiddleName:       input.MiddleName,
		LastName:         input.LastName,
		IDNumber:         input.IDNumber,
		SecurityQuestion: input.SecurityQuestion,
		SecurityAnswer:   strings.TrimSpace(input.SecurityAnswer),
		Role:             domain.RoleCustomer,
		AccountStatus:    domain.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.store.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("identity registered")
	return created, nil
}

// UnlockAccount is the explicit administrative unlock: it resets the failure
// counters and reactivates the account regardless of the lockout window.
func (s *AuthService) UnlockAccount(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unlock account: %w", err)
	}
	if u.AccountStatus != domain.StatusLocked && u.FailedLoginAttempts == 0 {
		return u, nil
	}

	u, err = s.update(ctx, u, func(x *domain.User) error {
		s.lockout.RecordSuccess(x)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unlock account: %w", err)
	}

	s.recordEvent(ctx, u, domain.EventAccountUnlocked)
	s.log.Info().Str("user_id", u.ID).Msg("account unlocked by administrator")
	return u, nil
}

// update applies a mutation and saves it, retrying on version conflicts with
// a fresh read so concurrent logins against the same identity never lose
// counter or OTP updates. apply may return a domain error to abort without
// writing.
func (s *AuthService) update(ctx context.Context, u *domain.User, apply func(*domain.User) error) (*domain.User, error) {
	cur := u
	for attempt := 0; attempt < saveAttempts; attempt++ {
		if err := apply(cur); err != nil {
			return nil, err
		}
		cur.UpdatedAt = s.now().UTC()

		err := s.store.Save(ctx, cur)
		if err == nil {
			return cur, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}

		fresh, ferr := s.store.FindByID(ctx, cur.ID)
		if ferr != nil {
			return nil, ferr
		}
		cur = fresh
	}
	return nil, domain.ErrVersionConflict
}

// NormalizeEmail lowercases and trims an address so lookups and uniqueness
// checks are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
