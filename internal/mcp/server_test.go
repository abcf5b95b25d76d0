// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Drives tool handlers against a temp store with a fake sync engine.
package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/service"
	"github.com/harperreed/gymtracker/internal/storage"
	gymsync "github.com/harperreed/gymtracker/internal/sync"
)

type fakeSyncer struct {
	calls int
}

func (f *fakeSyncer) SyncNow(context.Context) (*gymsync.Result, error) {
	f.calls++
	return &gymsync.Result{Sessions: 1, Sets: 3, AcceptedSessions: 1, AcceptedSets: 3}, nil
}

func (f *fakeSyncer) RefreshStatus(context.Context) gymsync.Status {
	return gymsync.Status{Online: true, PendingByTable: map[string]int{}, Backoff: time.Second}
}

// setupTestService creates a service over a temp store seeded with a small catalog.
func setupTestService(t *testing.T) *service.Service {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "gymtrack.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, ex := range []*models.Exercise{
		{ID: "bench", Name: "Bench Press", MuscleGroup: "chest", SyncStatus: models.StatusSynced},
		{ID: "ohp", Name: "Overhead Press", MuscleGroup: "shoulders", SyncStatus: models.StatusSynced},
	} {
		if err := storage.Put(context.Background(), db, storage.Exercises, ex); err != nil {
			t.Fatalf("seed exercise: %v", err)
		}
	}
	return service.New(db, "user-1")
}

func pushDay(t *testing.T, svc *service.Service) *models.WorkoutTemplate {
	t.Helper()
	tmpl, err := svc.SaveTemplate(context.Background(), &models.TemplateDraft{
		Name: "Push Day",
		Entries: []models.TemplateEntry{{
			ExerciseID: "bench",
			Normal:     models.DefaultPrescription(),
			Deload:     models.DefaultDeloadPrescription(),
		}},
	})
	if err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}
	return tmpl
}

func TestNewServer(t *testing.T) {
	svc := setupTestService(t)

	server, err := NewServer(svc, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if server == nil {
		t.Fatal("Expected non-nil server")
	}
	if server.mcpServer == nil {
		t.Error("Expected non-nil mcpServer")
	}
	if server.svc == nil {
		t.Error("Expected non-nil service")
	}
}

func TestWorkoutLifecycle(t *testing.T) {
	svc := setupTestService(t)
	server, _ := NewServer(svc, nil)
	ctx := context.Background()
	pushDay(t, svc)

	_, started, err := server.handleStartWorkout(ctx, &mcp.CallToolRequest{}, startWorkoutInput{Template: "push day"})
	if err != nil {
		t.Fatalf("start_workout failed: %v", err)
	}
	if started.WeekType != "normal" {
		t.Errorf("Expected normal week, got %s", started.WeekType)
	}
	if !strings.Contains(started.Message, "Push Day") {
		t.Errorf("Expected template name in message, got %q", started.Message)
	}

	for _, w := range []float64{80, 82.5, 85} {
		_, out, err := server.handleLogSet(ctx, &mcp.CallToolRequest{}, logSetInput{Exercise: "Bench Press", Weight: w, Reps: 6})
		if err != nil {
			t.Fatalf("log_set failed: %v", err)
		}
		if out.Exercise != "Bench Press" {
			t.Errorf("Expected Bench Press, got %s", out.Exercise)
		}
	}

	_, plan, err := server.handleWorkoutPlan(ctx, &mcp.CallToolRequest{}, sessionRefInput{})
	if err != nil {
		t.Fatalf("workout_plan failed: %v", err)
	}
	if len(plan.Items) != 1 || plan.Items[0].SetsLogged != 3 {
		t.Errorf("Expected one plan item with 3 sets logged, got %+v", plan.Items)
	}

	_, finished, err := server.handleFinishWorkout(ctx, &mcp.CallToolRequest{}, sessionRefInput{})
	if err != nil {
		t.Fatalf("finish_workout failed: %v", err)
	}
	if finished.NewMaxima["Bench Press"] != 85 {
		t.Errorf("Expected new max 85, got %v", finished.NewMaxima)
	}

	_, _, err = server.handleLogSet(ctx, &mcp.CallToolRequest{}, logSetInput{Exercise: "bench", Weight: 60, Reps: 5})
	if err == nil {
		t.Error("Expected error logging without an active workout")
	}
}

func TestHandleStartWorkoutErrors(t *testing.T) {
	svc := setupTestService(t)
	server, _ := NewServer(svc, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     startWorkoutInput
		errSubstr string
	}{
		{"unknown template", startWorkoutInput{Template: "leg day"}, "template not found"},
		{"bad week type", startWorkoutInput{WeekType: "heavy"}, "unknown week type"},
		{"no active program", startWorkoutInput{FromProgram: true}, "no active program"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleStartWorkout(ctx, &mcp.CallToolRequest{}, tt.input)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("Expected error containing %q, got %q", tt.errSubstr, err.Error())
			}
		})
	}
}

func TestHandleListWorkoutsEmpty(t *testing.T) {
	svc := setupTestService(t)
	server, _ := NewServer(svc, nil)

	_, output, err := server.handleListWorkouts(context.Background(), &mcp.CallToolRequest{}, listInput{})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	msg, ok := output.(map[string]any)
	if !ok || msg["message"] != "No workouts found." {
		t.Errorf("Expected empty message, got %v", output)
	}
}

func TestHandleTodayRoutine(t *testing.T) {
	svc := setupTestService(t)
	server, _ := NewServer(svc, nil)
	ctx := context.Background()

	tmpl := pushDay(t, svc)
	prog, err := svc.SaveProgram(ctx, &models.ProgramDraft{Name: "Upper", DeloadEveryNWeeks: 1, TemplateIDs: []string{tmpl.ID}})
	if err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}
	if _, err := svc.SetProgramActive(ctx, prog.ID, true); err != nil {
		t.Fatalf("SetProgramActive failed: %v", err)
	}

	_, output, err := server.handleTodayRoutine(ctx, &mcp.CallToolRequest{}, emptyInput{})
	if err != nil {
		t.Fatalf("today_routine failed: %v", err)
	}
	today := output.(map[string]any)
	if today["template"] != "Push Day" {
		t.Errorf("Expected Push Day, got %v", today["template"])
	}
	if today["week_type"] != "deload" {
		t.Errorf("Expected a deload week when deloading every week, got %v", today["week_type"])
	}
}

func TestHandleSync(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	unconfigured, _ := NewServer(svc, nil)
	if _, _, err := unconfigured.handleSyncNow(ctx, &mcp.CallToolRequest{}, emptyInput{}); err == nil {
		t.Error("Expected error without a sync engine")
	}
	_, status, err := unconfigured.handleSyncStatus(ctx, &mcp.CallToolRequest{}, emptyInput{})
	if err != nil {
		t.Fatalf("sync_status failed: %v", err)
	}
	if status.(map[string]any)["configured"] != false {
		t.Error("Expected configured=false")
	}

	fs := &fakeSyncer{}
	server, _ := NewServer(svc, fs)
	_, out, err := server.handleSyncNow(ctx, &mcp.CallToolRequest{}, emptyInput{})
	if err != nil {
		t.Fatalf("sync_now failed: %v", err)
	}
	if fs.calls != 1 {
		t.Errorf("Expected 1 sync call, got %d", fs.calls)
	}
	if !strings.Contains(out.Message, "3/3 sets") {
		t.Errorf("Unexpected message %q", out.Message)
	}
}

func TestResources(t *testing.T) {
	svc := setupTestService(t)
	server, _ := NewServer(svc, nil)
	ctx := context.Background()
	pushDay(t, svc)

	if _, _, err := server.handleStartWorkout(ctx, &mcp.CallToolRequest{}, startWorkoutInput{Template: "Push Day"}); err != nil {
		t.Fatalf("start_workout failed: %v", err)
	}
	if _, _, err := server.handleLogSet(ctx, &mcp.CallToolRequest{}, logSetInput{Exercise: "bench", Weight: 100, Reps: 5}); err != nil {
		t.Fatalf("log_set failed: %v", err)
	}

	today, err := server.handleTodayResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("today resource failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(today.Contents[0].Text), &doc); err != nil {
		t.Fatalf("today resource is not JSON: %v", err)
	}
	if doc["active_workout"] == nil {
		t.Error("Expected the active workout in today's resource")
	}

	if _, _, err := server.handleFinishWorkout(ctx, &mcp.CallToolRequest{}, sessionRefInput{}); err != nil {
		t.Fatalf("finish_workout failed: %v", err)
	}

	summary, err := server.handleSummaryResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("summary resource failed: %v", err)
	}
	if !strings.Contains(summary.Contents[0].Text, "Bench Press") {
		t.Error("Expected Bench Press maximum in summary")
	}

	recent, err := server.handleRecentResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("recent resource failed: %v", err)
	}
	if recent.Contents[0].URI != "gym://recent" {
		t.Errorf("Unexpected URI %s", recent.Contents[0].URI)
	}
}

func TestResourcesEmpty(t *testing.T) {
	svc := setupTestService(t)
	server, _ := NewServer(svc, nil)
	ctx := context.Background()

	for name, handler := range map[string]func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error){
		"recent":  server.handleRecentResource,
		"today":   server.handleTodayResource,
		"summary": server.handleSummaryResource,
	} {
		result, err := handler(ctx, &mcp.ReadResourceRequest{})
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if len(result.Contents) == 0 {
			t.Errorf("%s: expected non-empty contents", name)
		}
	}
}
