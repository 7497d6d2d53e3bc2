// Command pubadmin serves the blog admin and manages posts from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/eringen/pubadmin"
	"github.com/eringen/pubadmin/views"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configFile string
	logLevel   string
	token      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pubadmin",
		Short: "Admin tool for markdown blogs",
		Long: `pubadmin edits the posts of a markdown blog.

Posts live in a GitHub repository (one frontmatter file per post), a local git
repository, or a SQLite table. Settings come from a YAML file and PUBADMIN_*
environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Credential for post commands (default $PUBADMIN_TOKEN)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and installs the default logger.
func setup() (pubadmin.Config, *slog.Logger, error) {
	cfg, err := pubadmin.LoadConfig(configFile)
	if err != nil {
		return pubadmin.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := newLogger(cfg.SlogLevel())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level slog.Level) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			switch t := a.Value.Any().(type) {
			case string:
				if t == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if t == 0 {
					return slog.Attr{}
				}
			case nil:
				return slog.Attr{}
			}
			return a
		},
	}))
}

func serveCmd() *cobra.Command {
	var addr, siteName string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin web UI and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := pubadmin.New(cfg, views.Default(views.Site{Name: siteName}), pubadmin.WithLogger(logger))
			defer func() {
				if err := app.Close(); err != nil {
					logger.Warn("close failed", "err", err)
				}
			}()
			return app.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&siteName, "site-name", pubadmin.EnvOr("PUBADMIN_SITE_NAME", ""), "Name shown in the admin header")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pubadmin version",
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if info, ok := debug.ReadBuildInfo(); ok && v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
				v = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pubadmin %s\n", v)
		},
	}
}

// connect opens the configured backend with the CLI credential.
func connect(ctx context.Context) (pubadmin.PostStore, func() error, error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, nil, err
	}
	cred := token
	if cred == "" {
		cred = os.Getenv("PUBADMIN_TOKEN")
	}
	if cred == "" {
		return nil, nil, errors.New("a credential is required (use --token or PUBADMIN_TOKEN)")
	}
	backend, closeFn, err := pubadmin.NewBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, id, err := backend.Connect(ctx, cred)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	slog.Debug("connected", "backend", backend.Name(), "login", id.Login)
	return store, closeFn, nil
}
