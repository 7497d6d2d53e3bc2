package pubadmin

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend.
const (
	BackendGitHub = "github"
	BackendGit    = "git"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all configuration for a pubadmin instance.
type Config struct {
	Addr    string `yaml:"addr"`    // Listen address (default ":3000")
	Backend string `yaml:"backend"` // github, git, sqlite or memory (default "github")

	GitHub       GitHubConfig  `yaml:"github"`
	Git          GitRepoConfig `yaml:"git"`
	DatabasePath string        `yaml:"database_path"` // SQLite path (default "data/blog.db")

	// AdminPassword is the credential for the git, sqlite and memory backends.
	// The github backend authenticates with the admin's own token instead.
	AdminPassword string        `yaml:"admin_password"`
	SessionSecret string        `yaml:"session_secret"` // Required: session encryption secret
	CookieSecure  bool          `yaml:"cookie_secure"`  // Set true for HTTPS
	SessionMaxAge time.Duration `yaml:"session_max_age"`

	ListCacheTTL time.Duration `yaml:"list_cache_ttl"` // Listing cache TTL (default 1m)
	StaticDir    string        `yaml:"static_dir"`     // Local image uploads (default "public")
	LogLevel     string        `yaml:"log_level"`
}

// GitHubConfig locates the posts inside a GitHub repository.
type GitHubConfig struct {
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	Path        string `yaml:"path"`       // Posts directory (default "src/content/blog")
	Branch      string `yaml:"branch"`     // Empty means the default branch
	AssetPath   string `yaml:"asset_path"` // Image directory (default "public/images")
	APIBaseURL  string `yaml:"api_base_url"`
	PreviewMode string `yaml:"preview_mode"` // gfm or markdown (default "gfm")
}

// GitRepoConfig locates the posts inside a local git repository.
type GitRepoConfig struct {
	Dir         string `yaml:"dir"`  // Repository directory (default "data/repo")
	Path        string `yaml:"path"` // Posts directory inside the repo (default "src/content/blog")
	AssetPath   string `yaml:"asset_path"`
	CommitName  string `yaml:"commit_name"`
	CommitEmail string `yaml:"commit_email"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Backend == "" {
		c.Backend = BackendGitHub
	}
	c.GitHub.setDefaults()
	c.Git.setDefaults()
	if c.DatabasePath == "" {
		c.DatabasePath = "data/blog.db"
	}
	if c.SessionMaxAge == 0 {
		c.SessionMaxAge = 12 * time.Hour
	}
	if c.ListCacheTTL == 0 {
		c.ListCacheTTL = time.Minute
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *GitHubConfig) setDefaults() {
	if c.Path == "" {
		c.Path = "src/content/blog"
	}
	if c.AssetPath == "" {
		c.AssetPath = "public/images"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.github.com"
	}
	if c.PreviewMode == "" {
		c.PreviewMode = "gfm"
	}
}

func (c *GitRepoConfig) setDefaults() {
	if c.Dir == "" {
		c.Dir = "data/repo"
	}
	if c.Path == "" {
		c.Path = "src/content/blog"
	}
	if c.AssetPath == "" {
		c.AssetPath = "public/images"
	}
	if c.CommitName == "" {
		c.CommitName = "pubadmin"
	}
	if c.CommitEmail == "" {
		c.CommitEmail = "pubadmin@localhost"
	}
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("pubadmin: SessionSecret is required")
	}
	switch c.Backend {
	case BackendGitHub:
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			return errors.New("pubadmin: github.owner and github.repo are required")
		}
	case BackendGit, BackendSQLite, BackendMemory:
		if c.AdminPassword == "" {
			return fmt.Errorf("pubadmin: AdminPassword is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("pubadmin: unknown backend %q", c.Backend)
	}
	return nil
}

// SlogLevel parses LogLevel, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// LoadConfig reads the YAML file at path (if any), overlays PUBADMIN_*
// environment variables and applies defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("pubadmin: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("pubadmin: parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	c.Addr = EnvOr("PUBADMIN_ADDR", c.Addr)
	c.Backend = EnvOr("PUBADMIN_BACKEND", c.Backend)
	c.GitHub.Owner = EnvOr("PUBADMIN_GITHUB_OWNER", c.GitHub.Owner)
	c.GitHub.Repo = EnvOr("PUBADMIN_GITHUB_REPO", c.GitHub.Repo)
	c.GitHub.Path = EnvOr("PUBADMIN_GITHUB_PATH", c.GitHub.Path)
	c.GitHub.Branch = EnvOr("PUBADMIN_GITHUB_BRANCH", c.GitHub.Branch)
	c.GitHub.APIBaseURL = EnvOr("PUBADMIN_GITHUB_API", c.GitHub.APIBaseURL)
	c.Git.Dir = EnvOr("PUBADMIN_GIT_DIR", c.Git.Dir)
	c.DatabasePath = EnvOr("PUBADMIN_DATABASE_PATH", c.DatabasePath)
	c.AdminPassword = EnvOr("PUBADMIN_ADMIN_PASSWORD", c.AdminPassword)
	c.SessionSecret = EnvOr("PUBADMIN_SESSION_SECRET", c.SessionSecret)
	c.StaticDir = EnvOr("PUBADMIN_STATIC_DIR", c.StaticDir)
	c.LogLevel = EnvOr("PUBADMIN_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("PUBADMIN_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("pubadmin: PUBADMIN_COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	if v := os.Getenv("PUBADMIN_LIST_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("pubadmin: PUBADMIN_LIST_CACHE_TTL: %w", err)
		}
		c.ListCacheTTL = d
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithBackend replaces the backend built from Config.Backend.
func WithBackend(b Backend) Option {
	return func(a *App) {
		a.Backend = b
	}
}

// WithRenderer sets the preview renderer used when the connected store does
// not render markdown itself.
func WithRenderer(r Renderer) Option {
	return func(a *App) {
		a.renderer = r
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
