package pubadmin

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

func (a *App) handleAdmin(c echo.Context) error {
	ctrl := a.controller(c)
	if ctrl == nil || !ctrl.Authenticated() {
		msg := ""
		if ctrl != nil {
			msg = ctrl.Snapshot().Message
		}
		return Render(c, a.Views.AdminLogin(msg, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, ctrl)
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	ctrl, err := a.ensureController(c)
	if err != nil {
		return err
	}
	err = ctrl.Authenticate(c.Request().Context(), c.FormValue("credential"))
	if err != nil && !ctrl.Authenticated() {
		if errors.Is(err, ErrAuth) {
			a.loginLimiter.Record(ip)
		}
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(ErrorMessage(err), CsrfToken(c)))
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if err := a.endSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminNew(c echo.Context) error {
	ctrl, ok := a.signedIn(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	ctrl.New()
	return a.renderAdminDashboard(c, ctrl)
}

func (a *App) handleAdminPost(c echo.Context) error {
	ctrl, ok := a.signedIn(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	_ = ctrl.Edit(c.Request().Context(), ctrl.Lookup(keyParam(c)))
	return a.renderAdminDashboard(c, ctrl)
}

// handleAdminDraft applies form edits to the draft. htmx requests get the
// preview fragment back.
func (a *App) handleAdminDraft(c echo.Context) error {
	ctrl, ok := a.signedIn(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := applyDraftForm(c, ctrl); err != nil {
		return err
	}
	if isHTMX(c) {
		snap := ctrl.Snapshot()
		return Render(c, a.Views.AdminPreview(a.previewHTML(c.Request().Context(), ctrl.Store(), snap.Preview)))
	}
	return a.renderAdminDashboard(c, ctrl)
}

func (a *App) handleAdminSave(c echo.Context) error {
	ctrl, ok := a.signedIn(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := applyDraftForm(c, ctrl); err != nil {
		return err
	}
	_ = ctrl.Save(c.Request().Context())
	return a.renderAdminDashboard(c, ctrl)
}

func (a *App) handleAdminDelete(c echo.Context) error {
	ctrl, ok := a.signedIn(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	ref := ctrl.Lookup(keyParam(c))
	if rev := c.FormValue("revision"); rev != "" {
		ref.Revision = rev
	}
	_ = ctrl.Delete(c.Request().Context(), ref, c.FormValue("confirm") == "yes")
	return a.renderAdminDashboard(c, ctrl)
}

func (a *App) renderAdminDashboard(c echo.Context, ctrl *Controller) error {
	snap := ctrl.Snapshot()
	return Render(c, a.Views.AdminDashboard(AdminPage{
		Snapshot:    snap,
		PreviewHTML: a.previewHTML(c.Request().Context(), ctrl.Store(), snap.Preview),
		CSRFToken:   CsrfToken(c),
	}))
}

// signedIn returns the session controller if it holds an accepted credential.
func (a *App) signedIn(c echo.Context) (*Controller, bool) {
	ctrl := a.controller(c)
	if ctrl == nil || !ctrl.Authenticated() {
		return nil, false
	}
	return ctrl, true
}

// applyDraftForm feeds the submitted draft fields through Change. Fields
// missing from the form are left alone.
func applyDraftForm(c echo.Context, ctrl *Controller) error {
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	for _, f := range []Field{FieldTitle, FieldTags, FieldBody} {
		if vals, ok := form[string(f)]; ok && len(vals) > 0 {
			ctrl.Change(f, vals[0])
		}
	}
	return nil
}

func keyParam(c echo.Context) string {
	key := c.Param("key")
	if k, err := url.PathUnescape(key); err == nil {
		return k
	}
	return key
}
