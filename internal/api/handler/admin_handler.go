package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
)

// AdminHandler exposes the administrative account operations. Routes are
// guarded by the auth middleware plus an RBAC check; only branch managers
// reach these handlers.
type AdminHandler struct {
	login ports.LoginService
	audit ports.AuditTrail
}

func NewAdminHandler(login ports.LoginService, audit ports.AuditTrail) *AdminHandler {
	return &AdminHandler{login: login, audit: audit}
}

// Unlock resets a locked account ahead of its lockout window.
//
// @Summary      Unlock a locked account
// @Tags         admin
// @Produce      json
// @Param        id    path      string  true  "Identity ID"
// @Success      200   {object}  map[string]any
// @Failure      404   {object}  map[string]string
// @Router       /admin/users/{id}/unlock [post]
func (h *AdminHandler) Unlock(c echo.Context) error {
	user, err := h.login.UnlockAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// Events lists the most recent authentication events for one identity,
// newest first.
//
// @Summary      List authentication events for an identity
// @Tags         admin
// @Produce      json
// @Param        id     path      string  true   "Identity ID"
// @Param        limit  query     int     false  "Maximum events returned"
// @Success      200    {object}  map[string]any
// @Router       /admin/users/{id}/events [get]
func (h *AdminHandler) Events(c echo.Context) error {
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	events, err := h.audit.ListByUser(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}

	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"kind":      ev.Kind,
			"email":     ev.Email,
			"timestamp": ev.Timestamp,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"events": out})
}
