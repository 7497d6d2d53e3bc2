package pubadmin

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, BackendGitHub, cfg.Backend)
	assert.Equal(t, "src/content/blog", cfg.GitHub.Path)
	assert.Equal(t, "public/images", cfg.GitHub.AssetPath)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	assert.Equal(t, "gfm", cfg.GitHub.PreviewMode)
	assert.Equal(t, "data/repo", cfg.Git.Dir)
	assert.Equal(t, "data/blog.db", cfg.DatabasePath)
	assert.Equal(t, 12*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, time.Minute, cfg.ListCacheTTL)
	assert.Equal(t, "public", cfg.StaticDir)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"no secret", Config{Backend: BackendMemory, AdminPassword: "pw"}, true},
		{"github ok", Config{SessionSecret: "s", Backend: BackendGitHub, GitHub: GitHubConfig{Owner: "o", Repo: "r"}}, false},
		{"github without repo", Config{SessionSecret: "s", Backend: BackendGitHub, GitHub: GitHubConfig{Owner: "o"}}, true},
		{"sqlite without password", Config{SessionSecret: "s", Backend: BackendSQLite}, true},
		{"git ok", Config{SessionSecret: "s", Backend: BackendGit, AdminPassword: "pw"}, false},
		{"unknown backend", Config{SessionSecret: "s", Backend: "ftp", AdminPassword: "pw"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubadmin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: git
session_secret: from-file
admin_password: file-pw
list_cache_ttl: 30s
git:
  dir: /srv/blog
  path: posts
github:
  owner: someone
`), 0o600))

	t.Setenv("PUBADMIN_ADMIN_PASSWORD", "env-pw")
	t.Setenv("PUBADMIN_COOKIE_SECURE", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendGit, cfg.Backend)
	assert.Equal(t, "from-file", cfg.SessionSecret)
	assert.Equal(t, "env-pw", cfg.AdminPassword, "the environment wins over the file")
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 30*time.Second, cfg.ListCacheTTL)
	assert.Equal(t, "/srv/blog", cfg.Git.Dir)
	assert.Equal(t, "posts", cfg.Git.Path)
	assert.Equal(t, "someone", cfg.GitHub.Owner)
	assert.Equal(t, ":3000", cfg.Addr, "defaults fill what is left")
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("backend: [unclosed"), 0o600))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	t.Setenv("PUBADMIN_LIST_CACHE_TTL", "soon")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARN"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "chatty"}).SlogLevel())
}

func TestEnvOr(t *testing.T) {
	t.Setenv("PUBADMIN_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOr("PUBADMIN_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", EnvOr("PUBADMIN_TEST_UNSET", "fallback"))
}
