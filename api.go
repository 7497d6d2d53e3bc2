package pubadmin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const apiStoreKey = "pubadmin.store"

// apiDraft is the request body for creating or updating a post.
type apiDraft struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

func (d apiDraft) draft() Draft {
	return Draft{Title: d.Title, Body: d.Body, TagsText: JoinTags(FilterEmpty(d.Tags))}
}

func (a *App) registerAPI(g *echo.Group) {
	g.Use(a.apiAuth)
	g.GET("/posts", a.handleAPIList)
	g.POST("/posts", a.handleAPICreate)
	g.GET("/posts/:key", a.handleAPIRead)
	g.PUT("/posts/:key", a.handleAPIUpdate)
	g.DELETE("/posts/:key", a.handleAPIDelete)
}

// apiAuth connects to the backend with the request's bearer credential.
func (a *App) apiAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		scheme, cred, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(cred) == "" {
			c.Response().Header().Set("WWW-Authenticate", `Bearer realm="pubadmin"`)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "a bearer credential is required"})
		}
		store, _, err := a.Backend.Connect(c.Request().Context(), strings.TrimSpace(cred))
		if err != nil {
			return a.apiError(c, err)
		}
		c.Set(apiStoreKey, store)
		return next(c)
	}
}

func apiStore(c echo.Context) PostStore {
	s, _ := c.Get(apiStoreKey).(PostStore)
	return s
}

func (a *App) handleAPIList(c echo.Context) error {
	refs, err := apiStore(c).List(c.Request().Context())
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, refs)
}

func (a *App) handleAPIRead(c echo.Context) error {
	post, err := apiStore(c).Read(c.Request().Context(), PostRef{Key: keyParam(c)})
	if err != nil {
		return a.apiError(c, err)
	}
	return postJSON(c, http.StatusOK, post)
}

func (a *App) handleAPICreate(c echo.Context) error {
	var in apiDraft
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}
	post, err := apiStore(c).Create(c.Request().Context(), in.draft())
	if err != nil {
		return a.apiError(c, err)
	}
	c.Response().Header().Set(echo.HeaderLocation, BuildURL("/api/posts", post.Key))
	return postJSON(c, http.StatusCreated, post)
}

func (a *App) handleAPIUpdate(c echo.Context) error {
	rev, ok := ifMatch(c)
	if !ok {
		return c.JSON(http.StatusPreconditionRequired, map[string]string{"error": "If-Match is required"})
	}
	var in apiDraft
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}
	post, err := apiStore(c).Update(c.Request().Context(), PostRef{Key: keyParam(c), Revision: rev}, in.draft())
	if err != nil {
		return a.apiError(c, err)
	}
	return postJSON(c, http.StatusOK, post)
}

func (a *App) handleAPIDelete(c echo.Context) error {
	rev, ok := ifMatch(c)
	if !ok {
		return c.JSON(http.StatusPreconditionRequired, map[string]string{"error": "If-Match is required"})
	}
	if err := apiStore(c).Delete(c.Request().Context(), PostRef{Key: keyParam(c), Revision: rev}); err != nil {
		return a.apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func postJSON(c echo.Context, code int, p Post) error {
	c.Response().Header().Set("ETag", `"`+p.Revision+`"`)
	return c.JSON(code, p)
}

// ifMatch returns the revision named by the If-Match header.
func ifMatch(c echo.Context) (string, bool) {
	v := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	return v, v != ""
}

func (a *App) apiError(c echo.Context, err error) error {
	code := apiStatus(err)
	if code >= 500 {
		a.logger.WarnContext(c.Request().Context(), "api request failed", "uri", c.Request().RequestURI, "err", err)
	}
	return c.JSON(code, map[string]string{"error": ErrorMessage(err)})
}

func apiStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrTransport):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
