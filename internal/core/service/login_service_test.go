package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
)

// stubStore is an in-memory credential store with the same optimistic
// concurrency semantics as the Mongo implementation.
type stubStore struct {
	users       map[string]*domain.User
	conflictsOn int // number of Save calls to reject with ErrVersionConflict
	saveCalls   int
}

func newStubStore() *stubStore {
	return &stubStore{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.LastFailedLogin != nil {
		t := *u.LastFailedLogin
		clone.LastFailedLogin = &t
	}
	if u.OTPExpiry != nil {
		t := *u.OTPExpiry
		clone.OTPExpiry = &t
	}
	return &clone
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubStore) FindByActiveOTP(_ context.Context, code string, now time.Time) (*domain.User, error) {
	if code == "" {
		return nil, domain.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.OTP == code && u.OTPExpiry != nil && u.OTPExpiry.After(now) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	clone := cloneUser(user)
	clone.Version = 1
	s.users[clone.ID] = cloneUser(clone)
	return clone, nil
}

func (s *stubStore) Save(_ context.Context, user *domain.User) error {
	s.saveCalls++
	if s.conflictsOn > 0 {
		s.conflictsOn--
		return domain.ErrVersionConflict
	}
	stored, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return domain.ErrVersionConflict
	}
	user.Version++
	s.users[user.ID] = cloneUser(user)
	return nil
}

// recordNotifier captures fire-and-forget notifications.
type recordNotifier struct {
	otps   []string
	locked []string
}

func (n *recordNotifier) SendOTP(_ context.Context, _ string, code string, _ time.Time) {
	n.otps = append(n.otps, code)
}

func (n *recordNotifier) SendAccountLocked(_ context.Context, email string, _ int) {
	n.locked = append(n.locked, email)
}

// stubTokens hands out fixed pairs and counts issuances.
type stubTokens struct {
	issued int
}

func (t *stubTokens) Issue(_ context.Context, _ *domain.User) (ports.TokenPair, error) {
	t.issued++
	return ports.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		AccessTTL:    30 * time.Minute,
		RefreshTTL:   24 * time.Hour,
	}, nil
}

func (t *stubTokens) Refresh(_ context.Context, _ string) (ports.TokenPair, error) {
	return ports.TokenPair{}, domain.ErrInvalidRefreshToken
}

// fakeHasher keeps credential tests fast; the real argon2 strategy is
// covered in hasher_test.go.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (fakeHasher) Verify(hash, password string) bool    { return hash == "hashed:"+password }

type fixture struct {
	svc      *AuthService
	store    *stubStore
	notifier *recordNotifier
	tokens   *stubTokens
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newStubStore(),
		notifier: &recordNotifier{},
		tokens:   &stubTokens{},
		now:      time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(f.store, f.tokens, f.notifier, fakeHasher{}, Config{
		BankName:         "Bank Stream",
		MaxLoginAttempts: 5,
		LockoutDuration:  30 * time.Minute,
		OTPLength:        6,
		OTPTTL:           10 * time.Minute,
	}, zerolog.Nop())
	f.svc.WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:            "user-" + email,
		Username:      "BS-TEST000001",
		Email:         email,
		PasswordHash:  "hashed:" + password,
		Role:          domain.RoleCustomer,
		AccountStatus: domain.StatusActive,
	}
	created, err := f.store.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return created
}

func (f *fixture) stored(t *testing.T, id string) *domain.User {
	t.Helper()
	u, ok := f.store.users[id]
	if !ok {
		t.Fatalf("user %s not in store", id)
	}
	return u
}

func TestLogin_UnknownEmail_GenericError(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "ghost@example.com", "pass")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(f.store.users) != 0 {
		t.Fatalf("no identity should be created for unknown emails")
	}
}

func TestLogin_WrongPassword_CountsFailure(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	_, err := f.svc.Login(context.Background(), "alice@example.com", "badpass")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	stored := f.stored(t, u.ID)
	if stored.FailedLoginAttempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", stored.FailedLoginAttempts)
	}
	if stored.LastFailedLogin == nil || !stored.LastFailedLogin.Equal(f.now) {
		t.Fatalf("last_failed_login not stamped")
	}
	if stored.AccountStatus != domain.StatusActive {
		t.Fatalf("account should stay active below the threshold")
	}
}

func TestLogin_ThresholdLocksExactlyAtFive(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(context.Background(), "alice@example.com", "badpass")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
		if f.stored(t, u.ID).AccountStatus == domain.StatusLocked {
			t.Fatalf("locked at %d failures, threshold is 5", i)
		}
	}

	_, err := f.svc.Login(context.Background(), "alice@example.com", "badpass")
	var locked *domain.AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError on 5th failure, got %v", err)
	}
	if locked.RetryAfterMinutes() != 30 {
		t.Fatalf("expected retry after 30 minutes, got %d", locked.RetryAfterMinutes())
	}

	stored := f.stored(t, u.ID)
	if stored.AccountStatus != domain.StatusLocked {
		t.Fatalf("account not locked after 5th failure")
	}
	if len(f.notifier.locked) != 1 {
		t.Fatalf("expected exactly one lockout notification, got %d", len(f.notifier.locked))
	}
}

func TestLogin_FailureWhileLocked_NoSecondNotification(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice@example.com", "goodpass")

	for i := 0; i < 6; i++ {
		_, _ = f.svc.Login(context.Background(), "alice@example.com", "badpass")
	}

	if len(f.notifier.locked) != 1 {
		t.Fatalf("lockout notification must fire only on the crossing call, got %d", len(f.notifier.locked))
	}
}

func TestLogin_LockedAccount_CorrectPasswordRejected(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), "alice@example.com", "badpass")
	}

	_, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass")
	var locked *domain.AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}

	// A correct password against a locked account must not reset counters.
	if got := f.stored(t, u.ID).FailedLoginAttempts; got != 5 {
		t.Fatalf("counters must survive a rejected login, got %d", got)
	}
}

func TestLogin_LockExpires_ImplicitUnlock(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), "alice@example.com", "badpass")
	}

	f.now = f.now.Add(31 * time.Minute)

	ack, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass")
	if err != nil {
		t.Fatalf("login after lockout window: %v", err)
	}
	if ack.Email != "alice@example.com" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	stored := f.stored(t, u.ID)
	if stored.AccountStatus != domain.StatusActive || stored.FailedLoginAttempts != 0 {
		t.Fatalf("implicit unlock did not reset state: %+v", stored)
	}
}

func TestLogin_Success_IssuesOTPWithoutTokens(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	ack, err := f.svc.Login(context.Background(), "Alice@Example.COM", "goodpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if ack.Email != "alice@example.com" {
		t.Fatalf("email not normalized in ack: %s", ack.Email)
	}

	stored := f.stored(t, u.ID)
	if len(stored.OTP) != 6 {
		t.Fatalf("expected 6-digit OTP, got %q", stored.OTP)
	}
	if strings.Trim(stored.OTP, "0123456789") != "" {
		t.Fatalf("OTP is not numeric: %q", stored.OTP)
	}
	want := f.now.Add(10 * time.Minute)
	if stored.OTPExpiry == nil || !stored.OTPExpiry.Equal(want) {
		t.Fatalf("otp expiry mismatch: %v", stored.OTPExpiry)
	}

	if len(f.notifier.otps) != 1 || f.notifier.otps[0] != stored.OTP {
		t.Fatalf("delivered OTP does not match stored one")
	}
	if f.tokens.issued != 0 {
		t.Fatalf("no session may be issued before OTP verification")
	}
}

func TestLogin_NewOTPInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice@example.com", "goodpass")

	if _, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	first := f.notifier.otps[0]

	if _, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	second := f.notifier.otps[1]

	if first != second {
		if _, _, err := f.svc.VerifyOTP(context.Background(), first); !errors.Is(err, domain.ErrInvalidOrExpiredOTP) {
			t.Fatalf("overwritten OTP must not verify, got %v", err)
		}
	}
	if _, _, err := f.svc.VerifyOTP(context.Background(), second); err != nil {
		t.Fatalf("current OTP must verify, got %v", err)
	}
}

func TestVerifyOTP_SuccessClearsCodeAndIssuesSession(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	_, _ = f.svc.Login(context.Background(), "alice@example.com", "goodpass")
	code := f.stored(t, u.ID).OTP

	verified, pair, err := f.svc.VerifyOTP(context.Background(), code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.ID != u.ID {
		t.Fatalf("wrong identity verified: %s", verified.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected a token pair")
	}

	stored := f.stored(t, u.ID)
	if stored.OTP != "" || stored.OTPExpiry != nil {
		t.Fatalf("OTP fields not cleared after verification")
	}
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	_, _ = f.svc.Login(context.Background(), "alice@example.com", "goodpass")
	code := f.stored(t, u.ID).OTP

	if _, _, err := f.svc.VerifyOTP(context.Background(), code); err != nil {
		t.Fatalf("first verification: %v", err)
	}
	if _, _, err := f.svc.VerifyOTP(context.Background(), code); !errors.Is(err, domain.ErrInvalidOrExpiredOTP) {
		t.Fatalf("second verification must fail, got %v", err)
	}
}

func TestVerifyOTP_ExpiredCodeLeftInPlace(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	_, _ = f.svc.Login(context.Background(), "alice@example.com", "goodpass")
	code := f.stored(t, u.ID).OTP

	f.now = f.now.Add(11 * time.Minute)

	if _, _, err := f.svc.VerifyOTP(context.Background(), code); !errors.Is(err, domain.ErrInvalidOrExpiredOTP) {
		t.Fatalf("expired OTP must be rejected, got %v", err)
	}

	// Expired codes stay stored until the next issuance overwrites them.
	stored := f.stored(t, u.ID)
	if stored.OTP != code || stored.OTPExpiry == nil {
		t.Fatalf("failed verification must not mutate OTP state")
	}
}

func TestVerifyOTP_UnknownCode(t *testing.T) {
	f := newFixture(t)

	if _, _, err := f.svc.VerifyOTP(context.Background(), "000000"); !errors.Is(err, domain.ErrInvalidOrExpiredOTP) {
		t.Fatalf("expected ErrInvalidOrExpiredOTP, got %v", err)
	}
	if _, _, err := f.svc.VerifyOTP(context.Background(), ""); !errors.Is(err, domain.ErrInvalidOrExpiredOTP) {
		t.Fatalf("empty OTP must never validate, got %v", err)
	}
}

func TestVerifyOTP_LockedAccountRejected(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	_, _ = f.svc.Login(context.Background(), "alice@example.com", "goodpass")
	code := f.stored(t, u.ID).OTP

	// Lock the account from a parallel device between OTP issuance and
	// verification.
	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), "alice@example.com", "badpass")
	}

	_, _, err := f.svc.VerifyOTP(context.Background(), code)
	var locked *domain.AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}
	if f.tokens.issued != 0 {
		t.Fatalf("no session may be issued for a locked account")
	}
}

func TestLogin_SaveConflictRetried(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")
	f.store.conflictsOn = 1

	_, err := f.svc.Login(context.Background(), "alice@example.com", "badpass")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if f.store.saveCalls != 2 {
		t.Fatalf("expected one retry after conflict, got %d save calls", f.store.saveCalls)
	}
	if got := f.stored(t, u.ID).FailedLoginAttempts; got != 1 {
		t.Fatalf("failure must not be lost or double-counted, got %d", got)
	}
}

func TestRegister_GeneratesHandleAndDefaults(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Email:            "New.User@Example.com",
		Password:         "s3cret-pass",
		FirstName:        "New",
		LastName:         "User",
		IDNumber:         44123,
		SecurityQuestion: domain.QuestionBirthCity,
		SecurityAnswer:   "Lagos",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if user.Email != "new.user@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if !strings.HasPrefix(user.Username, "BS-") || len(user.Username) != 12 {
		t.Fatalf("unexpected handle: %q", user.Username)
	}
	if user.Role != domain.RoleCustomer || user.AccountStatus != domain.StatusActive {
		t.Fatalf("unexpected defaults: %+v", user)
	}
	if user.PasswordHash != "hashed:s3cret-pass" {
		t.Fatalf("password not hashed")
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []ports.RegisterInput{
		{Email: "", Password: "pass", SecurityQuestion: domain.QuestionBirthCity, SecurityAnswer: "x"},
		{Email: "a@b.com", Password: "", SecurityQuestion: domain.QuestionBirthCity, SecurityAnswer: "x"},
		{Email: "a@b.com", Password: "pass", SecurityQuestion: "favorite_team", SecurityAnswer: "x"},
		{Email: "a@b.com", Password: "pass", SecurityQuestion: domain.QuestionBirthCity, SecurityAnswer: "  "},
	}
	for i, input := range cases {
		if _, err := f.svc.Register(context.Background(), input); !errors.Is(err, domain.ErrInvalidRegistration) {
			t.Fatalf("case %d: expected ErrInvalidRegistration, got %v", i, err)
		}
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice@example.com", "pass")

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Email:            "alice@example.com",
		Password:         "otherpass",
		FirstName:        "Alice",
		LastName:         "Again",
		IDNumber:         999,
		SecurityQuestion: domain.QuestionMaidenName,
		SecurityAnswer:   "Smith",
	})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestUnlockAccount_ResetsState(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "goodpass")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), "alice@example.com", "badpass")
	}

	unlocked, err := f.svc.UnlockAccount(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if unlocked.AccountStatus != domain.StatusActive || unlocked.FailedLoginAttempts != 0 {
		t.Fatalf("unlock did not reset state: %+v", unlocked)
	}

	if _, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass"); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
}

func TestUnlockAccount_UnknownUser(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.UnlockAccount(context.Background(), "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

type recordAudit struct {
	events []domain.AuthEventKind
	err    error
}

func (a *recordAudit) Record(_ context.Context, ev *domain.AuthEvent) error {
	a.events = append(a.events, ev.Kind)
	return a.err
}

func (a *recordAudit) ListByUser(_ context.Context, _ string, _ int64) ([]domain.AuthEvent, error) {
	return nil, nil
}

func TestAuditTrail_RecordsLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	audit := &recordAudit{}
	f.svc.WithAudit(audit)
	u := f.addUser(t, "alice@example.com", "goodpass")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), "alice@example.com", "badpass")
	}
	if _, err := f.svc.UnlockAccount(context.Background(), u.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	code := f.stored(t, u.ID).OTP
	if _, _, err := f.svc.VerifyOTP(context.Background(), code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	want := []domain.AuthEventKind{
		domain.EventLoginFailed,
		domain.EventLoginFailed,
		domain.EventLoginFailed,
		domain.EventLoginFailed,
		domain.EventLoginFailed,
		domain.EventAccountLocked,
		domain.EventAccountUnlocked,
		domain.EventOTPIssued,
		domain.EventOTPVerified,
	}
	if len(audit.events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), audit.events)
	}
	for i, kind := range want {
		if audit.events[i] != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, audit.events[i])
		}
	}
}

func TestAuditTrail_FailureDoesNotBreakLogin(t *testing.T) {
	f := newFixture(t)
	f.svc.WithAudit(&recordAudit{err: errors.New("mongo down")})
	f.addUser(t, "alice@example.com", "goodpass")

	if _, err := f.svc.Login(context.Background(), "alice@example.com", "goodpass"); err != nil {
		t.Fatalf("audit failure must not fail the login: %v", err)
	}
}
