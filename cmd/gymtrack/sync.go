// ABOUTME: CLI commands for syncing with the gym server.
// ABOUTME: Supports now, status and a long-running daemon that watches the config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/config"
	gymsync "github.com/harperreed/gymtracker/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync workouts with the gym server",
	Long: `Sync workouts with the gym server.

Every change is saved locally first and pushed right away when the server is
reachable. Anything that could not be pushed stays pending; sessions and sets
are retried by 'sync now' and by the daemon with exponential backoff.

COMMANDS:

  now         Push pending sessions and sets once
  status      Show connectivity, pending rows and the last error
  daemon      Keep syncing in the foreground until interrupted`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Push pending sessions and sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		if !app.engine.Probe(ctx) {
			color.Yellow("⚠ Server unreachable, pending rows kept")
			return nil
		}

		res, err := app.engine.SyncNow(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if res.Sessions == 0 && res.Sets == 0 {
			color.Green("✓ Nothing to sync")
			return nil
		}
		color.Green("✓ Synced %d/%d sessions, %d/%d sets",
			res.AcceptedSessions, res.Sessions, res.AcceptedSets, res.Sets)
		for _, msg := range res.Errors {
			color.Yellow("⚠ %s", msg)
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show current sync status including:
- Server and account
- Connectivity
- Rows waiting to sync, per table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Println("Server:", app.cfg.ServerURL)
		if !app.creds.LoggedIn() {
			color.Yellow("Not logged in")
			fmt.Println("\nRun 'gymtrack login' to connect.")
			return nil
		}

		app.engine.Probe(ctx)
		printStatus(app.engine.RefreshStatus(ctx))
		return nil
	},
}

func printStatus(st gymsync.Status) {
	faint := color.New(color.Faint)

	if st.Online {
		color.Green("✓ Online")
	} else {
		color.Yellow("⚠ Offline")
	}
	if !st.LastSync.IsZero() {
		fmt.Printf("  Last sync: %s\n", humanize.Time(st.LastSync))
	}

	total := sumCounts(st.PendingByTable)
	if total == 0 {
		fmt.Println("  Pending: none")
	} else {
		fmt.Printf("  Pending: %s rows\n", humanize.Comma(int64(total)))
		for _, table := range slices.Sorted(maps.Keys(st.PendingByTable)) {
			faint.Printf("    %-20s %d\n", table, st.PendingByTable[table])
		}
	}
	if st.LastError != "" {
		color.Red("  Last error: %s (%s)", st.LastError, humanize.Time(st.LastErrorAt))
		fmt.Printf("  Failures: %d, backoff %s\n", st.Failures, st.Backoff)
	}
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep syncing until interrupted",
	Long: `Run the sync engine in the foreground.

The daemon probes the server, pushes pending sessions and sets on every
interval, backs off after failures and syncs as soon as the server comes
back. Changes to the config file are picked up for logging; interval
changes take effect on restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		watchConfig()

		color.Green("✓ Sync daemon running every %s (Ctrl+C to stop)", app.cfg.SyncInterval)
		err := app.engine.Run(ctx)
		if errors.Is(err, context.Canceled) {
			printStatus(app.engine.RefreshStatus(context.Background()))
			return nil
		}
		return err
	},
}

// watchConfig logs config file edits and flags settings that need a restart.
func watchConfig() {
	if app.v.ConfigFileUsed() == "" {
		return
	}
	if _, err := os.Stat(app.v.ConfigFileUsed()); err != nil {
		return
	}
	app.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.FromViper(app.v)
		if err != nil {
			app.logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		app.logger.Info("config reloaded", "file", e.Name)
		if cfg.ServerURL != app.cfg.ServerURL || cfg.SyncInterval != app.cfg.SyncInterval ||
			cfg.ConnectivityInterval != app.cfg.ConnectivityInterval {
			app.logger.Warn("server or interval changed, restart the daemon to apply",
				"server_url", cfg.ServerURL, "sync_interval", cfg.SyncInterval.Round(time.Second))
		}
	})
	app.v.WatchConfig()
}

func init() {
	syncCmd.AddCommand(syncNowCmd, syncStatusCmd, syncDaemonCmd)
	rootCmd.AddCommand(syncCmd)
}
