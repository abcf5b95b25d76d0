// ABOUTME: Tests for CLI helper functions and command execution.
// ABOUTME: Tests parsing helpers, command wiring, and end-to-end flows against a temp store.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/storage"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"date and time with space", "2026-01-31 08:30", false},
		{"date and time with T", "2026-01-31T08:30", false},
		{"date only", "2026-01-31", false},
		{"RFC3339", "2026-01-31T08:30:00Z", false},
		{"invalid format", "31-01-2026", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTime(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseTime(%q) unexpected error: %v", tt.input, err)
				return
			}
			if result.IsZero() {
				t.Errorf("parseTime(%q) returned zero time", tt.input)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world this is a long string", 10, "hello w..."},
		{"", 10, ""},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q, want %q", got, "ab   ")
	}
	if got := padRight("abcdef", 3); got != "abcdef" {
		t.Errorf("padRight should not cut, got %q", got)
	}
}

func TestShortIDAndWeight(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID of short id = %q", got)
	}
	if got := formatWeight(82.5); got != "82.5" {
		t.Errorf("formatWeight(82.5) = %q", got)
	}
	if got := formatWeight(100); got != "100" {
		t.Errorf("formatWeight(100) = %q", got)
	}
}

func TestParseTemplateFile(t *testing.T) {
	src := `name: Push Day
exercises:
  - exercise: Bench Press
    normal: {working_sets: 3, min_reps: 5, max_reps: 8, last_set_rpe: [9, 9.5]}
    deload: {working_sets: 1}
    substitutes:
      - exercise: Dips
        prescription: {min_reps: 8, max_reps: 12}
  - exercise: ohp
`
	tf, err := parseTemplateFile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseTemplateFile failed: %v", err)
	}

	catalog := map[string]*models.Exercise{
		"bench press": {ID: "bench", Name: "Bench Press"},
		"dips":        {ID: "dips", Name: "Dips"},
		"ohp":         {ID: "ohp", Name: "Overhead Press"},
	}
	resolve := func(_ context.Context, ref string) (*models.Exercise, error) {
		if ex, ok := catalog[strings.ToLower(ref)]; ok {
			return ex, nil
		}
		return nil, storage.ErrNotFound
	}

	draft, err := tf.draft(context.Background(), resolve)
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}
	if err := draft.Validate(); err != nil {
		t.Fatalf("draft should validate: %v", err)
	}
	if len(draft.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(draft.Entries))
	}

	bench := draft.Entries[0]
	if bench.Normal.WorkingSets != 3 || bench.Normal.MinReps != 5 || bench.Normal.LastSetRPEMax != 9.5 {
		t.Errorf("normal prescription not applied: %+v", bench.Normal)
	}
	if bench.Normal.RestPeriod != models.DefaultPrescription().RestPeriod {
		t.Errorf("omitted fields should keep defaults, got rest %q", bench.Normal.RestPeriod)
	}
	if bench.Deload.WorkingSets != 1 || bench.Deload.EarlySetRPEMax != models.DefaultDeloadPrescription().EarlySetRPEMax {
		t.Errorf("deload prescription not applied over deload defaults: %+v", bench.Deload)
	}
	if len(bench.Substitutes) != 1 || bench.Substitutes[0].ExerciseID != "dips" {
		t.Fatalf("Expected dips substitute, got %+v", bench.Substitutes)
	}
	if sub := bench.Substitutes[0].Prescription; sub.WorkingSets != 3 || sub.MinReps != 8 {
		t.Errorf("substitute should start from the slot's normal prescription: %+v", sub)
	}
	if draft.Entries[1].Normal != models.DefaultPrescription() {
		t.Errorf("entry without prescriptions should use defaults")
	}
}

func TestParseTemplateFileErrors(t *testing.T) {
	if _, err := parseTemplateFile(strings.NewReader("name: x\nexercise: []\n")); err == nil {
		t.Error("Expected unknown field to be rejected")
	}

	tf, err := parseTemplateFile(strings.NewReader("name: x\nexercises:\n  - exercise: squat\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = tf.draft(context.Background(), func(context.Context, string) (*models.Exercise, error) {
		return nil, storage.ErrNotFound
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown exercise, got %v", err)
	}

	bad := &prescriptionFile{LastSetRPE: []float64{7, 8, 9}}
	if _, err := bad.apply(models.DefaultPrescription()); err == nil {
		t.Error("Expected error for three-value RPE range")
	}
}

func TestRootCmdFlags(t *testing.T) {
	if rootCmd.Use != "gymtrack" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "gymtrack")
	}
	for _, name := range []string{"config", "data-dir", "log-level", "verbose"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent --%s flag", name)
		}
	}
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		parent *cobra.Command
		want   []string
	}{
		{rootCmd, []string{"login", "register", "logout", "whoami", "hydrate", "profile", "sync", "template", "exercises", "program", "workout", "export", "doctor", "mcp"}},
		{syncCmd, []string{"now", "status", "daemon"}},
		{templateCmd, []string{"list", "show", "apply", "delete"}},
		{programCmd, []string{"list", "show", "create", "activate", "deactivate", "today", "delete"}},
		{workoutCmd, []string{"start", "log", "finish", "plan", "list", "show"}},
		{profileCmd, []string{"set"}},
	}

	for _, tt := range tests {
		got := make(map[string]bool)
		for _, c := range tt.parent.Commands() {
			got[c.Name()] = true
		}
		for _, w := range tt.want {
			if !got[w] {
				t.Errorf("Expected %s subcommand %q not found", tt.parent.Name(), w)
			}
		}
	}
}

func TestCmdAliases(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		alias string
	}{
		{syncCmd, "s"},
		{templateCmd, "t"},
		{programCmd, "p"},
		{workoutCmd, "w"},
		{workoutListCmd, "ls"},
		{templateDeleteCmd, "rm"},
	}
	for _, tt := range tests {
		if !slices.Contains(tt.cmd.Aliases, tt.alias) {
			t.Errorf("Expected %s to have alias %q, got %v", tt.cmd.Name(), tt.alias, tt.cmd.Aliases)
		}
	}
}

func TestCmdFlags(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		flag string
		def  string
	}{
		{workoutStartCmd, "template", ""},
		{workoutStartCmd, "program", "false"},
		{workoutStartCmd, "week", ""},
		{workoutLogCmd, "warmup", "false"},
		{workoutLogCmd, "rpe", "0"},
		{workoutLogCmd, "session", ""},
		{workoutListCmd, "limit", "20"},
		{programCreateCmd, "deload-every", "4"},
		{exportCmd, "output", ""},
		{exportCmd, "weeks", "0"},
		{hydrateCmd, "force", "false"},
		{profileSetCmd, "unit", ""},
	}
	for _, tt := range tests {
		f := tt.cmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("Expected --%s flag on %s", tt.flag, tt.cmd.Name())
			continue
		}
		if f.DefValue != tt.def {
			t.Errorf("--%s on %s defaults to %q, want %q", tt.flag, tt.cmd.Name(), f.DefValue, tt.def)
		}
	}
}

func TestExportCmdValidArgs(t *testing.T) {
	for _, format := range []string{"csv", "json", "yaml", "xlsx"} {
		if !slices.Contains(exportCmd.ValidArgs, format) {
			t.Errorf("Expected %q in export ValidArgs", format)
		}
		if exportWriters[format] == nil {
			t.Errorf("Expected a writer for %q", format)
		}
	}
}

func TestLongDescriptions(t *testing.T) {
	for _, cmd := range []*cobra.Command{rootCmd, syncCmd, templateCmd, programCmd, workoutCmd, exportCmd, mcpCmd, doctorCmd} {
		if cmd.Long == "" {
			t.Errorf("Expected %s to have a Long description", cmd.Name())
		}
	}
	if !strings.Contains(mcpCmd.Long, "log_set") {
		t.Error("Expected mcp help to list the log_set tool")
	}
}

// setupTestCLI points config and data at temp directories, signs in
// user-1 without tokens (so nothing is pushed) and seeds a small catalog.
// It returns the data directory.
func setupTestCLI(t *testing.T) string {
	t.Helper()

	configHome := t.TempDir()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("GYMTRACK_SERVER_URL", "http://127.0.0.1:1/api")

	credsDir := filepath.Join(configHome, "gymtrack")
	if err := os.MkdirAll(credsDir, 0750); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	creds := `{"user_id": "user-1", "device_id": "test-device"}`
	if err := os.WriteFile(filepath.Join(credsDir, "credentials.json"), []byte(creds), 0600); err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}

	db, err := storage.Open(filepath.Join(dir, "gymtrack.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	for _, ex := range []*models.Exercise{
		{ID: "bench", Name: "Bench Press", MuscleGroup: "chest", SyncStatus: models.StatusSynced},
		{ID: "ohp", Name: "Overhead Press", MuscleGroup: "shoulders", SyncStatus: models.StatusSynced},
	} {
		if err := storage.Put(context.Background(), db, storage.Exercises, ex); err != nil {
			t.Fatalf("seed exercise: %v", err)
		}
	}
	return dir
}

// run executes the CLI with fresh flag state.
func run(t *testing.T, dir string, args ...string) error {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	return Execute()
}

func resetFlags() {
	workoutTemplate, workoutFromProgram, workoutWeek, workoutNotes = "", false, "", ""
	workoutLimit, workoutSince = 20, ""
	setWarmup, setRPE, setNotes, setSession = false, 0, "", ""
	programDeloadEvery, programReplace = 4, ""
	exportOutput, exportWeeks = "", 0
	hydrateForce = false
	for _, c := range []*cobra.Command{workoutLogCmd, workoutStartCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}

func openTestDB(t *testing.T, dir string) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(dir, "gymtrack.db"))
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeTemplate(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	src := "name: " + name + "\nexercises:\n  - exercise: Bench Press\n    normal: {working_sets: 2}\n  - exercise: ohp\n"
	if err := os.WriteFile(path, []byte(src), 0600); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	return path
}

func TestWorkoutFlowWithDB(t *testing.T) {
	dir := setupTestCLI(t)
	ctx := context.Background()

	if err := run(t, dir, "template", "apply", writeTemplate(t, "Push Day")); err != nil {
		t.Fatalf("template apply failed: %v", err)
	}
	if err := run(t, dir, "workout", "start", "--template", "push day"); err != nil {
		t.Fatalf("workout start failed: %v", err)
	}
	if err := run(t, dir, "workout", "start"); err == nil {
		t.Error("Expected second start to fail while a workout is in progress")
	}
	if err := run(t, dir, "workout", "log", "bench", "60", "10", "--warmup"); err != nil {
		t.Fatalf("warmup log failed: %v", err)
	}
	for _, w := range []string{"90", "95"} {
		if err := run(t, dir, "workout", "log", "Bench Press", w, "5"); err != nil {
			t.Fatalf("log failed: %v", err)
		}
	}
	if err := run(t, dir, "workout", "log", "bench", "heavy", "5"); err == nil {
		t.Error("Expected invalid weight to fail")
	}
	if err := run(t, dir, "workout", "plan"); err != nil {
		t.Fatalf("workout plan failed: %v", err)
	}
	if err := run(t, dir, "workout", "finish"); err != nil {
		t.Fatalf("workout finish failed: %v", err)
	}
	if err := run(t, dir, "workout", "log", "bench", "100", "5"); err == nil {
		t.Error("Expected logging without a workout in progress to fail")
	}

	db := openTestDB(t, dir)
	sessions, err := storage.Collect(ctx, db, storage.Sessions)
	if err != nil {
		t.Fatalf("Collect sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].FinishedAt == nil {
		t.Fatalf("Expected one finished session, got %+v", sessions)
	}
	if sessions[0].SyncStatus != models.StatusPending {
		t.Error("Expected the offline session to stay pending")
	}
	sets, err := storage.Collect(ctx, db, storage.Sets, storage.OrderBy("created_at", false))
	if err != nil {
		t.Fatalf("Collect sets failed: %v", err)
	}
	if len(sets) != 3 || sets[0].SetType != models.SetWarmup || sets[2].SetNumber != 2 {
		t.Errorf("Unexpected sets: %d", len(sets))
	}
	progress, err := storage.First(ctx, db, storage.Progress, storage.Eq("exercise_id", "bench"))
	if err != nil {
		t.Fatalf("Expected progress row: %v", err)
	}
	if progress.MaxWeight != 95 {
		t.Errorf("Expected max 95, got %v", progress.MaxWeight)
	}
}

func TestProgramFlowWithDB(t *testing.T) {
	dir := setupTestCLI(t)
	ctx := context.Background()

	if err := run(t, dir, "template", "apply", writeTemplate(t, "Push")); err != nil {
		t.Fatalf("template apply failed: %v", err)
	}
	if err := run(t, dir, "template", "apply", writeTemplate(t, "Pull")); err != nil {
		t.Fatalf("template apply failed: %v", err)
	}
	if err := run(t, dir, "program", "create", "PP", "push", "pull", "--deload-every", "2"); err != nil {
		t.Fatalf("program create failed: %v", err)
	}
	if err := run(t, dir, "workout", "start", "--program"); err == nil {
		t.Error("Expected start --program to fail without an active program")
	}
	if err := run(t, dir, "program", "activate", "pp"); err != nil {
		t.Fatalf("program activate failed: %v", err)
	}
	if err := run(t, dir, "program", "today"); err != nil {
		t.Fatalf("program today failed: %v", err)
	}
	if err := run(t, dir, "template", "delete", "push"); err == nil {
		t.Error("Expected deleting a template used by a program to fail")
	}

	for i := 0; i < 2; i++ {
		if err := run(t, dir, "workout", "start", "--program"); err != nil {
			t.Fatalf("workout start --program failed: %v", err)
		}
		if err := run(t, dir, "workout", "finish"); err != nil {
			t.Fatalf("workout finish failed: %v", err)
		}
	}

	db := openTestDB(t, dir)
	prog, err := storage.First(ctx, db, storage.Programs, storage.Eq("name", "PP"))
	if err != nil {
		t.Fatalf("program not found: %v", err)
	}
	if prog.CurrentRoutineIndex != 0 || prog.WeeksCompleted != 1 {
		t.Errorf("Expected rotation to wrap once, got index %d weeks %d", prog.CurrentRoutineIndex, prog.WeeksCompleted)
	}
	if !prog.IsActive || prog.StartedAt == nil {
		t.Error("Expected active program with a start time")
	}
	// With a deload every 2 weeks, week 2 is the deload week.
	if err := run(t, dir, "workout", "start", "--program"); err != nil {
		t.Fatalf("workout start failed: %v", err)
	}
	active, err := storage.First(ctx, db, storage.Sessions, storage.IsNull("finished_at"))
	if err != nil {
		t.Fatalf("active session not found: %v", err)
	}
	if active.WeekType != models.WeekDeload {
		t.Errorf("Expected deload week, got %s", active.WeekType)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	dir := setupTestCLI(t)
	creds := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "gymtrack", "credentials.json")
	if err := os.WriteFile(creds, []byte(`{"device_id": "d"}`), 0600); err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}

	for _, args := range [][]string{
		{"workout", "list"},
		{"template", "list"},
		{"program", "today"},
		{"sync", "now"},
	} {
		if err := run(t, dir, args...); !errors.Is(err, errNotLoggedIn) {
			t.Errorf("%v: expected errNotLoggedIn, got %v", args, err)
		}
	}
}

func TestExportToFile(t *testing.T) {
	dir := setupTestCLI(t)

	if err := run(t, dir, "workout", "start", "--notes", "freestyle"); err != nil {
		t.Fatalf("workout start failed: %v", err)
	}
	if err := run(t, dir, "workout", "log", "ohp", "50", "8"); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := run(t, dir, "workout", "finish"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "history.csv")
	if err := run(t, dir, "export", "csv", "-o", out, "--weeks", "4"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Failed to open export: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected header and one set, got %d rows", len(records))
	}
	if records[1][3] != "Overhead Press" {
		t.Errorf("Expected exercise name in CSV, got %v", records[1])
	}

	if err := run(t, dir, "export", "xlsx"); err == nil {
		t.Error("Expected xlsx to stdout to be rejected")
	}
	if err := run(t, dir, "export", "pdf"); err == nil {
		t.Error("Expected unknown format to fail")
	}
}

func TestDoctorCmdWithDB(t *testing.T) {
	dir := setupTestCLI(t)
	if err := run(t, dir, "template", "apply", writeTemplate(t, "Push Day")); err != nil {
		t.Fatalf("template apply failed: %v", err)
	}
	if err := run(t, dir, "doctor"); err != nil {
		t.Errorf("doctor failed: %v", err)
	}
}

func TestHydrateRefusesPendingRows(t *testing.T) {
	dir := setupTestCLI(t)
	if err := run(t, dir, "workout", "start"); err != nil {
		t.Fatalf("workout start failed: %v", err)
	}
	err := run(t, dir, "hydrate")
	if err == nil || !strings.Contains(err.Error(), "not yet synced") {
		t.Errorf("Expected hydrate to refuse while rows are pending, got %v", err)
	}
}

func TestSessionStartedRecently(t *testing.T) {
	dir := setupTestCLI(t)
	if err := run(t, dir, "workout", "start", "--week", "deload"); err != nil {
		t.Fatalf("workout start failed: %v", err)
	}
	if err := run(t, dir, "workout", "list", "--since", time.Now().Add(-time.Hour).Format("2006-01-02 15:04")); err != nil {
		t.Errorf("workout list failed: %v", err)
	}
	if err := run(t, dir, "workout", "start", "--week", "heavy"); err == nil {
		t.Error("Expected unknown week type to fail")
	}
}
