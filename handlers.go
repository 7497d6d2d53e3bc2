package pubadmin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func handleRootRedirect(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"backend":  a.Backend.Name(),
		"sessions": a.sessions.len(),
	})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound && a.Views.NotFound != nil {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.logger.ErrorContext(c.Request().Context(), "server error", "uri", c.Request().RequestURI, "err", err)
		if a.Views.ServerError != nil {
			_ = RenderStatus(c, code, a.Views.ServerError())
			return
		}
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
