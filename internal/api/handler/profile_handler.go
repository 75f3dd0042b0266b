package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
)

// ProfileHandler serves the authenticated identity's own record.
type ProfileHandler struct {
	store ports.CredentialStore
}

func NewProfileHandler(store ports.CredentialStore) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// Me returns the identity behind the presented access token.
//
// @Summary      Get the authenticated identity
// @Tags         auth
// @Produce      json
// @Success      200   {object}  map[string]any
// @Failure      401   {object}  map[string]string
// @Router       /auth/me [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	user, err := h.store.FindByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// The token outlived the identity it was issued for.
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown identity")
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}
