package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bankstream/auth-core/internal/core/ports"
)

// Cookie names shared with the frontend. Access and refresh tokens are
// httpOnly; logged_in is readable by client-side code as a session-presence
// flag and carries no credential.
const (
	cookieAccess   = "access"
	cookieRefresh  = "refresh"
	cookieLoggedIn = "logged_in"
)

func newAuthCookie(name, value string, maxAge int, httpOnly, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// setAuthCookies binds a freshly issued token pair to the response. Max-age
// mirrors each token's lifetime.
func setAuthCookies(c echo.Context, pair ports.TokenPair, secure bool) {
	c.SetCookie(newAuthCookie(cookieAccess, pair.AccessToken, int(pair.AccessTTL.Seconds()), true, secure))
	c.SetCookie(newAuthCookie(cookieRefresh, pair.RefreshToken, int(pair.RefreshTTL.Seconds()), true, secure))
	c.SetCookie(newAuthCookie(cookieLoggedIn, "true", int(pair.AccessTTL.Seconds()), false, secure))
}

// clearAuthCookies expires the whole session cookie set.
func clearAuthCookies(c echo.Context, secure bool) {
	c.SetCookie(newAuthCookie(cookieAccess, "", -1, true, secure))
	c.SetCookie(newAuthCookie(cookieRefresh, "", -1, true, secure))
	c.SetCookie(newAuthCookie(cookieLoggedIn, "", -1, false, secure))
}
