// Package pubadmin is an admin tool for markdown blogs. Posts live in a
// GitHub repository, a local git repository or a SQLite table; admins sign in
// with their own credential and edit posts with a live preview.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// pubadmin handles the handler logic, middleware, sessions and storage.
package pubadmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubadmin/markdown"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages.
type ViewFuncs struct {
	AdminLogin     func(message string, csrfToken string) templ.Component
	AdminDashboard func(page AdminPage) templ.Component
	AdminPreview   func(previewHTML string) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// AdminPage is what the dashboard template renders.
type AdminPage struct {
	Snapshot
	PreviewHTML string
	CSRFToken   string
}

// App is the central pubadmin application. It wires together the backend,
// per-session controllers, handlers, middleware and user-provided templates.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Backend Backend
	Views   ViewFuncs

	logger       *slog.Logger
	renderer     Renderer
	sessions     *controllerRegistry
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	closeBackend func() error

	setupOnce sync.Once
	setupErr  error
}

// New creates a new pubadmin App with the given configuration and view functions.
func New(cfg Config, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
		logger: slog.Default(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.renderer == nil {
		a.renderer = markdown.New(markdown.Options{})
	}
	return a
}

// Handler builds the backend, middleware and routes once and returns the
// HTTP handler.
func (a *App) Handler() (http.Handler, error) {
	a.setupOnce.Do(func() { a.setupErr = a.setup() })
	if a.setupErr != nil {
		return nil, a.setupErr
	}
	return a.Echo, nil
}

func (a *App) setup() error {
	if a.Config.SessionSecret == "" {
		return errors.New("pubadmin: SessionSecret is required")
	}
	if a.Backend == nil {
		if err := a.Config.Validate(); err != nil {
			return err
		}
		b, closeFn, err := NewBackend(a.Config)
		if err != nil {
			return err
		}
		a.Backend = b
		a.closeBackend = closeFn
	}

	a.sessions = newControllerRegistry(a.Backend, a.Config.SessionMaxAge, a.logger)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	h, err := a.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "starting server", "addr", a.Config.Addr, "backend", a.Backend.Name())
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("pubadmin: serve: %w", err)
		}
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("pubadmin: shutdown: %w", err)
		}
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.Config.StaticDir)
	e.GET("/healthz", a.handleHealth)
	e.GET("/", handleRootRedirect)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", a.handleAdminLogout)
	e.POST("/admin/new/", a.handleAdminNew)
	e.GET("/admin/post/:key/", a.handleAdminPost)
	e.POST("/admin/draft/", a.handleAdminDraft)
	e.POST("/admin/save/", a.handleAdminSave)
	e.POST("/admin/delete/:key/", a.handleAdminDelete)
	e.POST("/admin/images/upload/", a.handleImageUpload)

	a.registerAPI(e.Group("/api"))
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.closeBackend != nil {
		return a.closeBackend()
	}
	return nil
}
