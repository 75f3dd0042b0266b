package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bankstream/auth-core/internal/api/metrics"
	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
)

// AuthHandler exposes the authentication state machine over HTTP.
type AuthHandler struct {
	login        ports.LoginService
	tokens       ports.TokenService
	cookieSecure bool
}

func NewAuthHandler(login ports.LoginService, tokens ports.TokenService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{login: login, tokens: tokens, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	FirstName        string `json:"first_name" validate:"required"`
	MiddleName       string `json:"middle_name"`
	LastName         string `json:"last_name" validate:"required"`
	IDNumber         int64  `json:"id_no" validate:"required,gt=0"`
	SecurityQuestion string `json:"security_question" validate:"required,oneof=maiden_name favorite_color birth_city childhood_friend"`
	SecurityAnswer   string `json:"security_answer" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type otpVerifyRequest struct {
	OTP string `json:"otp" validate:"required"`
}

type lockedResponse struct {
	Error             string `json:"error"`
	RetryAfterMinutes int    `json:"retry_after_minutes"`
}

// Register creates a new customer identity.
//
// @Summary      Register a new customer
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, err := h.login.Register(c.Request().Context(), ports.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		MiddleName:       req.MiddleName,
		LastName:         req.LastName,
		IDNumber:         req.IDNumber,
		SecurityQuestion: domain.SecurityQuestion(req.SecurityQuestion),
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserExists):
			return c.JSON(http.StatusConflict, map[string]string{"error": "user already exists"})
		case errors.Is(err, domain.ErrInvalidRegistration):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid registration data"})
		}
		return err
	}

	metrics.RegistrationsTotal.Inc()
	return c.JSON(http.StatusCreated, map[string]any{"user": user})
}

// Login runs primary authentication and triggers OTP delivery. It never
// issues tokens: a 200 only acknowledges that verification is pending.
//
// @Summary      Login with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  lockedResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid credentials"})
	}

	ack, err := h.login.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		var locked *domain.AccountLockedError
		switch {
		case errors.As(err, &locked):
			metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
			return c.JSON(http.StatusForbidden, lockedResponse{
				Error:             "account locked due to multiple failed login attempts",
				RetryAfterMinutes: locked.RetryAfterMinutes(),
			})
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid credentials"})
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("pending_otp").Inc()
	return c.JSON(http.StatusOK, map[string]any{
		"pending": true,
		"message": "OTP sent to your email, verify to complete login",
		"email":   ack.Email,
	})
}

// VerifyOTP completes the second factor and binds the session to cookies.
//
// @Summary      Verify the login OTP
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      otpVerifyRequest  true  "Submitted passcode"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  lockedResponse
// @Router       /auth/otp/verify [post]
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "otp is required"})
	}

	user, pair, err := h.login.VerifyOTP(c.Request().Context(), req.OTP)
	if err != nil {
		var locked *domain.AccountLockedError
		switch {
		case errors.As(err, &locked):
			metrics.OTPVerificationsTotal.WithLabelValues("locked").Inc()
			return c.JSON(http.StatusForbidden, lockedResponse{
				Error:             "account locked due to multiple failed login attempts",
				RetryAfterMinutes: locked.RetryAfterMinutes(),
			})
		case errors.Is(err, domain.ErrInvalidOrExpiredOTP):
			metrics.OTPVerificationsTotal.WithLabelValues("invalid_or_expired").Inc()
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid or expired OTP"})
		}
		metrics.OTPVerificationsTotal.WithLabelValues("error").Inc()
		return err
	}

	setAuthCookies(c, pair, h.cookieSecure)
	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, map[string]string{
		"success": "login complete",
		"email":   user.Email,
	})
}

// Refresh rotates the session pair using the refresh cookie. The presented
// refresh token becomes unusable whether or not the client keeps a copy.
//
// @Summary      Rotate the session token pair
// @Tags         auth
// @Produce      json
// @Success      200   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/token/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(cookieRefresh)
	if err != nil || cookie.Value == "" {
		metrics.TokenRefreshesTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
	}

	pair, err := h.tokens.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) {
			metrics.TokenRefreshesTotal.WithLabelValues("invalid").Inc()
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		}
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return err
	}

	setAuthCookies(c, pair, h.cookieSecure)
	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, map[string]string{"message": "tokens refreshed"})
}

// Logout discards the session cookies. No server-side token state is kept,
// so an unexpired access token remains technically valid until it expires.
//
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	clearAuthCookies(c, h.cookieSecure)
	return c.NoContent(http.StatusNoContent)
}
