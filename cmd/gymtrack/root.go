// ABOUTME: Root Cobra command for gymtrack CLI.
// ABOUTME: Builds config, logger, store, remote client, sync engine and service via PersistentPre/PostRunE.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harperreed/gymtracker/internal/config"
	"github.com/harperreed/gymtracker/internal/logging"
	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/service"
	"github.com/harperreed/gymtracker/internal/storage"
	gymsync "github.com/harperreed/gymtracker/internal/sync"
)

var (
	cfgFile  string
	dataDir  string
	logLevel string
	verbose  bool

	app *appContext
)

// errNotLoggedIn is returned by commands that need an account.
var errNotLoggedIn = errors.New("not logged in, run 'gymtrack login' first")

// appContext holds everything a command may touch. It is built once per
// invocation and torn down in PersistentPostRunE.
type appContext struct {
	cfg       *config.Config
	v         *viper.Viper
	logger    *slog.Logger
	logCloser io.Closer
	creds     *config.Credentials
	store     *storage.DB
	client    *remote.Client
	engine    *gymsync.Engine
	svc       *service.Service
}

// requireUser fails when no account is logged in.
func (a *appContext) requireUser() error {
	if a.creds.UserID() == "" {
		return errNotLoggedIn
	}
	return nil
}

func (a *appContext) close() error {
	var errs []error
	if a.svc != nil {
		a.svc.Flush()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

func newAppContext() (*appContext, error) {
	cfg, v, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		v.Set("data_dir", dataDir)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}

	a := &appContext{cfg: cfg, v: v}
	a.logger, a.logCloser, err = logging.New(logging.Options{Level: level, File: cfg.LogFile, Prefix: "gymtrack"})
	if err != nil {
		return nil, err
	}

	a.creds, err = config.LoadCredentials("")
	if err != nil {
		_ = a.close()
		return nil, err
	}

	a.store, err = cfg.OpenStorage(storage.WithLogger(a.logger))
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a.client = remote.New(cfg.ServerURL, a.creds,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithLogger(a.logger),
		remote.WithLogoutHandler(func() {
			a.logger.Warn("signed out by the server, local data kept", "hint", "run 'gymtrack login'")
		}),
		remote.WithNetworkObserver(func(online bool) {
			if a.engine != nil {
				a.engine.SetOnline(online)
			}
		}),
	)

	a.engine = gymsync.New(a.store, a.client,
		gymsync.WithLogger(a.logger),
		gymsync.WithInterval(cfg.SyncInterval),
		gymsync.WithProbeInterval(cfg.ConnectivityInterval),
		gymsync.WithBackoff(cfg.BackoffFloor, cfg.BackoffCeiling),
	)

	a.svc = service.New(a.store, a.creds.UserID(),
		service.WithRemote(a.client, func() bool {
			return a.creds.LoggedIn() && a.engine.Online()
		}),
		service.WithLogger(a.logger),
	)
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "gymtrack",
	Short: "Offline-first gym tracker",
	Long: `Gymtrack is an offline-first gym tracker.

Workouts, templates and programs live in a local SQLite database and are
pushed to your gym server whenever it is reachable. Nothing you log is lost
while offline: rows stay pending until a sync succeeds.

QUICK START:

  $ gymtrack login you@example.com           # Sign in and download your data
  $ gymtrack template apply push.yaml        # Create a template from a file
  $ gymtrack workout start --template push   # Start a session
  $ gymtrack workout log bench 100 5         # Log a working set
  $ gymtrack workout finish                  # Finish and record weekly maxima

PROGRAMS:

  $ gymtrack program create "Upper/Lower" push pull legs --deload-every 4
  $ gymtrack program activate "Upper/Lower"
  $ gymtrack program today                   # Next routine and deload indicator
  $ gymtrack workout start --program         # Start today's routine

SYNC:

  $ gymtrack sync status    # Pending rows, last error, backoff
  $ gymtrack sync now       # Push pending sessions and sets
  $ gymtrack sync daemon    # Keep syncing in the background

MCP INTEGRATION:

  Run 'gymtrack mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants:

  {
    "mcpServers": {
      "gymtrack": { "command": "gymtrack", "args": ["mcp"] }
    }
  }

CONFIGURATION:

  Settings are read from ~/.config/gymtrack/config.yaml and GYMTRACK_*
  environment variables. Data lives in ~/.local/share/gymtrack/gymtrack.db.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for commands that don't need it
		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}

		var err error
		app, err = newAppContext()
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		err := app.close()
		app = nil
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if app != nil {
		// cobra skips PostRun hooks when RunE fails
		err = errors.Join(err, app.close())
		app = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/gymtrack/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding gymtrack.db")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
