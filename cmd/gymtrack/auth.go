// ABOUTME: CLI commands for the account: login, register, logout, whoami and profile.
// ABOUTME: Login and register hydrate the local store from the server snapshot.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/hydrate"
	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/service"
)

var (
	authPassword    string
	authDisplayName string
	profileName     string
	profileUnit     string
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and download your data",
	Long: `Sign in to the gym server and replace the local database with your data.

The password is read from --password or, when omitted, from standard input.
Any rows that were never synced are discarded by the download.

Examples:
  gymtrack login you@example.com
  echo "$PASS" | gymtrack login you@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(authPassword)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := app.client.Login(ctx, args[0], password); err != nil {
			return err
		}
		return finishLogin(ctx)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account",
	Long: `Create an account on the gym server and sign in.

Example:
  gymtrack register you@example.com --name "Harper"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(authPassword)
		if err != nil {
			return err
		}
		name := authDisplayName
		if name == "" {
			name, _, _ = strings.Cut(args[0], "@")
		}
		ctx := cmd.Context()
		if _, err := app.client.Register(ctx, args[0], password, name); err != nil {
			return err
		}
		return finishLogin(ctx)
	},
}

// finishLogin records who signed in and loads their snapshot.
func finishLogin(ctx context.Context) error {
	me, err := app.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if err := app.creds.SetLogin(app.cfg.ServerURL, me.ID); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	color.Green("✓ Signed in as %s", me.Email)

	runHydrate(ctx, me.ID)
	return nil
}

// runHydrate loads the server snapshot. Failures are reported, not returned:
// the login itself succeeded and the local store keeps what did load.
func runHydrate(ctx context.Context, userID string) {
	h := hydrate.New(app.store, app.client,
		hydrate.WithLogger(app.logger),
		hydrate.WithErrorHook(func(e *hydrate.Error) {
			color.Yellow("⚠ Download stopped at %s: %v", e.Stage, e.Err)
		}),
	)
	res, err := h.Hydrate(ctx, userID)
	if err != nil {
		fmt.Println("Run 'gymtrack hydrate' to try again.")
		return
	}
	color.Green("✓ Downloaded %d templates, %d programs, %d workouts (%d sets)",
		res.Templates, res.Programs, res.Sessions, res.Sets)
}

func readPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}

var hydrateForce bool

var hydrateCmd = &cobra.Command{
	Use:   "hydrate",
	Short: "Replace local data with the server snapshot",
	Long: `Download everything from the server, replacing the local database.

Refuses to run while rows are waiting to sync unless --force is given,
since those rows would be lost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		pending, err := app.store.PendingCounts(ctx)
		if err != nil {
			return err
		}
		if total := sumCounts(pending); total > 0 && !hydrateForce {
			return fmt.Errorf("%d rows not yet synced, run 'gymtrack sync now' first or pass --force", total)
		}
		runHydrate(ctx, app.creds.UserID())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear local data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if app.client.Authenticated() {
			if err := app.client.Logout(ctx); err != nil {
				app.logger.Warn("server logout failed", "error", err)
			}
		}
		if err := app.creds.ClearTokens(); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		if err := app.store.ClearAll(ctx); err != nil {
			return fmt.Errorf("clear local data: %w", err)
		}
		color.Green("✓ Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		faint := color.New(color.Faint)
		fmt.Printf("User:    %s\n", app.creds.UserID())
		if u, err := app.svc.Profile(cmd.Context()); err == nil {
			fmt.Printf("Email:   %s\n", u.Email)
			fmt.Printf("Name:    %s\n", u.DisplayName)
			fmt.Printf("Unit:    %s\n", u.PreferredUnit)
		} else {
			faint.Println("Profile not downloaded yet.")
		}
		fmt.Printf("Server:  %s\n", app.creds.Server())
		faint.Printf("Device:  %s\n", app.creds.DeviceID())
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change display name or preferred unit",
	Long: `Change the display name or preferred unit. Needs the server.

Examples:
  gymtrack profile set --unit lbs
  gymtrack profile set --name "Harper"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		var upd service.ProfileUpdate
		if cmd.Flags().Changed("name") {
			upd.DisplayName = &profileName
		}
		if cmd.Flags().Changed("unit") {
			unit := models.Unit(profileUnit)
			upd.Unit = &unit
		}
		u, err := app.svc.UpdateProfile(cmd.Context(), upd)
		if err != nil {
			return err
		}
		color.Green("✓ Profile updated: %s (%s)", u.DisplayName, u.PreferredUnit)
		return nil
	},
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func init() {
	loginCmd.Flags().StringVarP(&authPassword, "password", "p", "", "account password")
	registerCmd.Flags().StringVarP(&authPassword, "password", "p", "", "account password")
	registerCmd.Flags().StringVar(&authDisplayName, "name", "", "display name (default: part of the email before @)")
	hydrateCmd.Flags().BoolVar(&hydrateForce, "force", false, "discard rows that are not yet synced")
	profileSetCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileSetCmd.Flags().StringVar(&profileUnit, "unit", "", "preferred unit (kg or lbs)")

	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, hydrateCmd, profileCmd)
}
