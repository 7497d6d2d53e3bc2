package pubadmin

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	sessionName  = "admin_session"
	controllerID = "controller_id"
)

// controllerRegistry holds one Controller per browser session. The cookie
// only carries the registry id; credentials stay in process memory.
type controllerRegistry struct {
	mu      sync.Mutex
	byID    map[string]*Controller
	idle    time.Duration
	backend Backend
	logger  *slog.Logger
}

func newControllerRegistry(backend Backend, idle time.Duration, logger *slog.Logger) *controllerRegistry {
	return &controllerRegistry{
		byID:    make(map[string]*Controller),
		idle:    idle,
		backend: backend,
		logger:  logger,
	}
}

// get returns the controller for id, pruning idle ones first.
func (r *controllerRegistry) get(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(time.Now())
	return r.byID[id]
}

func (r *controllerRegistry) create() (string, *Controller) {
	id := uuid.NewString()
	ctrl := NewController(r.backend, r.logger.With("session", id[:8]))
	r.mu.Lock()
	r.byID[id] = ctrl
	r.mu.Unlock()
	return id, ctrl
}

func (r *controllerRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func (r *controllerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// prune must be called with r.mu held.
func (r *controllerRegistry) prune(now time.Time) {
	if r.idle <= 0 {
		return
	}
	for id, ctrl := range r.byID {
		if ctrl.idleFor(now) > r.idle {
			delete(r.byID, id)
		}
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(a.Config.SessionMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// controller returns the controller bound to the request's session, or nil.
func (a *App) controller(c echo.Context) *Controller {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	id, ok := sess.Values[controllerID].(string)
	if !ok || id == "" {
		return nil
	}
	return a.sessions.get(id)
}

// ensureController returns the session's controller, creating one and storing
// its id in the cookie when there is none.
func (a *App) ensureController(c echo.Context) (*Controller, error) {
	if ctrl := a.controller(c); ctrl != nil {
		return ctrl, nil
	}
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil, err
	}
	id, ctrl := a.sessions.create()
	sess.Values[controllerID] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		a.sessions.remove(id)
		return nil, err
	}
	return ctrl, nil
}

// endSession drops the controller and expires the cookie.
func (a *App) endSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	if id, ok := sess.Values[controllerID].(string); ok {
		if ctrl := a.sessions.get(id); ctrl != nil {
			ctrl.Logout()
		}
		a.sessions.remove(id)
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}
