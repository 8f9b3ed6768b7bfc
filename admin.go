package gallerypress

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const sessionName = "operator_session"

// handleAdminLogin establishes an operator session. Attempts are rate
// limited per IP and the password compare is constant time.
func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many login attempts"})
	}
	var req struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.cfg.AdminPassword)) != 1 {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid password"})
	}
	if err := setOperatorSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearOperatorSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// handleDeliveries returns the most recent delivery log entries.
func (a *App) handleDeliveries(c echo.Context) error {
	if !isOperator(c) {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "login required"})
	}
	deliveries, err := a.store.ListDeliveries(100)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":         true,
		"deliveries": deliveries,
	})
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.CookieSecure,
	}
	return store
}

func isOperator(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setOperatorSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearOperatorSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}
