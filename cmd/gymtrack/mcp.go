// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for Claude integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to log and read your workouts through
a standardized protocol. The server communicates via stdin/stdout, so logs
go to log_file when one is configured.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "gymtrack": {
        "command": "gymtrack",
        "args": ["mcp"]
      }
    }
  }

  On macOS, the config is at:
    ~/Library/Application Support/Claude/claude_desktop_config.json

AVAILABLE TOOLS:

  start_workout    Start a workout from a template or the active program
  log_set          Log a set in the workout in progress
  finish_workout   Finish a workout and record weekly maxima
  workout_plan     Prescriptions, substitutes and progress for a workout
  list_workouts    List recent workouts
  get_workout      Get a workout with all its sets
  list_templates   List templates
  list_exercises   List exercises
  today_routine    The active program's next routine
  sync_status      Connectivity and rows waiting to sync
  sync_now         Push pending sessions and sets

AVAILABLE RESOURCES:

  gym://recent     Last 10 workouts
  gym://today      Workout in progress and next routine
  gym://summary    Latest weekly maxima and sync backlog`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		server, err := mcp.NewServer(app.svc, app.engine)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		// Keep pushing pending sessions while the assistant is connected.
		syncDone := make(chan struct{})
		go func() {
			defer close(syncDone)
			_ = app.engine.Run(ctx)
		}()

		err = server.Serve(ctx)
		cancel()
		<-syncDone
		return err
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
