// ABOUTME: MCP tool implementations for the gym tracker.
// ABOUTME: Workout logging, plan and history reads, template and program lookups, and sync control.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/service"
	"github.com/harperreed/gymtracker/internal/storage"
)

func (s *Server) registerTools() {
	// start_workout
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_workout",
		Description: "Start a workout, either freestyle, from a template, or from the active program's next routine",
	}, s.handleStartWorkout)

	// log_set
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "log_set",
		Description: "Log a set against the active workout",
	}, s.handleLogSet)

	// finish_workout
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "finish_workout",
		Description: "Finish the active workout, updating weekly maxima and advancing the program",
	}, s.handleFinishWorkout)

	// workout_plan
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "workout_plan",
		Description: "Show prescriptions, substitutes and last max weights for a workout",
	}, s.handleWorkoutPlan)

	// list_workouts
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_workouts",
		Description: "List recent workouts, newest first",
	}, s.handleListWorkouts)

	// get_workout
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_workout",
		Description: "Get a workout with all its sets",
	}, s.handleGetWorkout)

	// list_templates
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_templates",
		Description: "List workout templates",
	}, s.handleListTemplates)

	// list_exercises
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_exercises",
		Description: "List the exercise catalog and custom exercises",
	}, s.handleListExercises)

	// today_routine
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "today_routine",
		Description: "Show which routine the active program schedules next and whether it is a deload week",
	}, s.handleTodayRoutine)

	// sync_status
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report connectivity, pending row counts and the last sync outcome",
	}, s.handleSyncStatus)

	// sync_now
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sync_now",
		Description: "Push pending workouts and sets to the server immediately",
	}, s.handleSyncNow)
}

// Tool input/output types

type startWorkoutInput struct {
	Template    string `json:"template,omitempty" jsonschema:"description=Template ID, prefix or name"`
	FromProgram bool   `json:"from_program,omitempty" jsonschema:"description=Start the active program's next routine"`
	WeekType    string `json:"week_type,omitempty" jsonschema:"description=normal or deload (default normal)"`
	Notes       string `json:"notes,omitempty" jsonschema:"description=Workout notes"`
}

type workoutOutput struct {
	ID       string `json:"id"`
	WeekType string `json:"week_type"`
	Message  string `json:"message"`
}

type logSetInput struct {
	Exercise string   `json:"exercise" jsonschema:"description=Exercise ID, prefix or name,required"`
	Weight   float64  `json:"weight" jsonschema:"description=Weight lifted,required"`
	Reps     int      `json:"reps" jsonschema:"description=Repetitions,required"`
	SetType  string   `json:"set_type,omitempty" jsonschema:"description=working or warmup (default working)"`
	RPE      *float64 `json:"rpe,omitempty" jsonschema:"description=Rate of perceived exertion 1-10"`
	Notes    string   `json:"notes,omitempty" jsonschema:"description=Set notes"`
}

type setOutput struct {
	ID        string  `json:"id"`
	Exercise  string  `json:"exercise"`
	SetNumber int     `json:"set_number"`
	Weight    float64 `json:"weight"`
	Reps      int     `json:"reps"`
	Message   string  `json:"message"`
}

type sessionRefInput struct {
	ID string `json:"id,omitempty" jsonschema:"description=Workout ID or prefix (default: the active workout)"`
}

type finishOutput struct {
	ID         string             `json:"id"`
	FinishedAt time.Time          `json:"finished_at"`
	NewMaxima  map[string]float64 `json:"new_maxima"`
	Message    string             `json:"message"`
}

type listInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Max results (default 20)"`
}

type emptyInput struct{}

type planItemOutput struct {
	Exercise      string              `json:"exercise"`
	ExerciseID    string              `json:"exercise_id"`
	Prescription  models.Prescription `json:"prescription"`
	Substitutes   []string            `json:"substitutes"`
	LastMaxWeight *float64            `json:"last_max_weight"`
	SetsLogged    int                 `json:"sets_logged"`
}

type planOutput struct {
	SessionID string           `json:"session_id"`
	Template  string           `json:"template"`
	WeekType  string           `json:"week_type"`
	Strategy  string           `json:"substitute_source"`
	Items     []planItemOutput `json:"items"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleStartWorkout(ctx context.Context, req *mcp.CallToolRequest, input startWorkoutInput) (*mcp.CallToolResult, workoutOutput, error) {
	var ws *models.WorkoutSession
	var label string
	switch {
	case input.FromProgram:
		started, today, err := s.svc.StartFromProgram(ctx, input.Notes)
		if err != nil {
			return nil, workoutOutput{}, fmt.Errorf("failed to start workout: %w", err)
		}
		ws, label = started, fmt.Sprintf("%s (%s, %s)", today.Template.Name, today.Program.Name, today.Week)
	default:
		opts := service.StartOptions{Notes: input.Notes}
		if input.WeekType != "" {
			wt, err := models.ParseWeekType(input.WeekType)
			if err != nil {
				return nil, workoutOutput{}, err
			}
			opts.WeekType = wt
		}
		label = "freestyle workout"
		if input.Template != "" {
			tmpl, err := s.svc.ResolveTemplate(ctx, input.Template)
			if err != nil {
				return nil, workoutOutput{}, fmt.Errorf("template not found: %s", input.Template)
			}
			opts.TemplateID, label = tmpl.ID, tmpl.Name
		}
		started, err := s.svc.StartSession(ctx, opts)
		if err != nil {
			return nil, workoutOutput{}, fmt.Errorf("failed to start workout: %w", err)
		}
		ws = started
	}

	return nil, workoutOutput{
		ID:       ws.ID[:8],
		WeekType: string(ws.WeekType),
		Message:  fmt.Sprintf("Started %s (ID: %s)", label, ws.ID[:8]),
	}, nil
}

func (s *Server) handleLogSet(ctx context.Context, req *mcp.CallToolRequest, input logSetInput) (*mcp.CallToolResult, setOutput, error) {
	ws, err := s.svc.ActiveSession(ctx)
	if err != nil {
		return nil, setOutput{}, errors.New("no workout in progress")
	}
	ex, err := s.svc.ResolveExercise(ctx, input.Exercise)
	if err != nil {
		return nil, setOutput{}, fmt.Errorf("exercise not found: %s", input.Exercise)
	}

	setType := models.SetWorking
	if input.SetType != "" {
		if setType, err = models.ParseSetType(input.SetType); err != nil {
			return nil, setOutput{}, err
		}
	}

	set, err := s.svc.LogSet(ctx, service.SetInput{
		SessionID:  ws.ID,
		ExerciseID: ex.ID,
		SetType:    setType,
		Reps:       input.Reps,
		Weight:     input.Weight,
		RPE:        input.RPE,
		Notes:      input.Notes,
	})
	if err != nil {
		return nil, setOutput{}, fmt.Errorf("failed to log set: %w", err)
	}

	return nil, setOutput{
		ID:        set.ID[:8],
		Exercise:  ex.Name,
		SetNumber: set.SetNumber,
		Weight:    set.Weight,
		Reps:      set.Reps,
		Message:   fmt.Sprintf("Logged %s set %d: %g x %d", ex.Name, set.SetNumber, set.Weight, set.Reps),
	}, nil
}

func (s *Server) handleFinishWorkout(ctx context.Context, req *mcp.CallToolRequest, input sessionRefInput) (*mcp.CallToolResult, finishOutput, error) {
	ws, err := s.svc.ResolveSession(ctx, input.ID)
	if err != nil {
		return nil, finishOutput{}, fmt.Errorf("workout not found: %s", input.ID)
	}
	res, err := s.svc.FinishSession(ctx, ws.ID)
	if err != nil {
		return nil, finishOutput{}, fmt.Errorf("failed to finish workout: %w", err)
	}

	maxima := make(map[string]float64, len(res.Progress))
	for _, p := range res.Progress {
		name := p.ExerciseID
		if ex, err := s.svc.ResolveExercise(ctx, p.ExerciseID); err == nil {
			name = ex.Name
		}
		maxima[name] = p.MaxWeight
	}
	msg := fmt.Sprintf("Finished workout %s", ws.ID[:8])
	if res.Program != nil {
		msg += fmt.Sprintf("; %s moves to routine %d", res.Program.Name, res.Program.CurrentRoutineIndex+1)
	}

	return nil, finishOutput{
		ID:         ws.ID[:8],
		FinishedAt: *res.Session.FinishedAt,
		NewMaxima:  maxima,
		Message:    msg,
	}, nil
}

func (s *Server) handleWorkoutPlan(ctx context.Context, req *mcp.CallToolRequest, input sessionRefInput) (*mcp.CallToolResult, planOutput, error) {
	ws, err := s.svc.ResolveSession(ctx, input.ID)
	if err != nil {
		return nil, planOutput{}, errors.New("no workout in progress")
	}
	plan, err := s.svc.LoadPlan(ctx, ws.ID)
	if err != nil {
		return nil, planOutput{}, fmt.Errorf("failed to load plan: %w", err)
	}

	out := planOutput{SessionID: ws.ID[:8], WeekType: string(ws.WeekType), Items: []planItemOutput{}}
	if plan.Template != nil {
		out.Template = plan.Template.Name
		out.Strategy = plan.Strategy.Kind()
	}
	for _, item := range plan.Items {
		po := planItemOutput{
			Exercise:      item.Exercise.Name,
			ExerciseID:    item.Exercise.ID,
			Prescription:  item.Prescription.Prescription,
			Substitutes:   []string{},
			LastMaxWeight: item.LastMaxWeight,
			SetsLogged:    len(item.Logged),
		}
		for _, sub := range item.Substitutes {
			po.Substitutes = append(po.Substitutes, sub.Exercise.Name)
		}
		out.Items = append(out.Items, po)
	}
	return nil, out, nil
}

func (s *Server) handleListWorkouts(ctx context.Context, req *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	sessions, err := s.svc.RecentSessions(ctx, input.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list workouts: %w", err)
	}

	if len(sessions) == 0 {
		return nil, map[string]any{"message": "No workouts found."}, nil
	}

	return nil, sessions, nil
}

func (s *Server) handleGetWorkout(ctx context.Context, req *mcp.CallToolRequest, input sessionRefInput) (*mcp.CallToolResult, any, error) {
	ws, err := s.svc.ResolveSession(ctx, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("workout not found: %s", input.ID)
	}
	detail, err := s.svc.Session(ctx, ws.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load workout: %w", err)
	}
	return nil, detail, nil
}

func (s *Server) handleListTemplates(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	templates, err := s.svc.Templates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, map[string]any{"message": "No templates found."}, nil
	}
	return nil, templates, nil
}

func (s *Server) handleListExercises(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	exercises, err := s.svc.Exercises(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	return nil, exercises, nil
}

func (s *Server) handleTodayRoutine(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	today, err := s.svc.TodayRoutine(ctx)
	if errors.Is(err, service.ErrNoActiveProgram) {
		return nil, map[string]any{"message": "No active program."}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve routine: %w", err)
	}
	return nil, map[string]any{
		"program":   today.Program.Name,
		"template":  today.Template.Name,
		"routine":   fmt.Sprintf("%d of %d", today.Position, today.Count),
		"week":      today.Week.String(),
		"week_type": string(today.Week.WeekType()),
	}, nil
}

func (s *Server) handleSyncStatus(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	if s.syncer == nil {
		counts, err := s.svc.Store().PendingCounts(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count pending rows: %w", err)
		}
		return nil, map[string]any{"configured": false, "pending": counts}, nil
	}
	st := s.syncer.RefreshStatus(ctx)
	return nil, map[string]any{
		"configured": true,
		"online":     st.Online,
		"syncing":    st.Syncing,
		"pending":    st.PendingByTable,
		"last_error": st.LastError,
		"last_sync":  st.LastSync,
		"backoff":    st.Backoff.String(),
	}, nil
}

func (s *Server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, simpleOutput, error) {
	if s.syncer == nil {
		return nil, simpleOutput{}, errors.New("sync is not configured; log in first")
	}
	res, err := s.syncer.SyncNow(ctx)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("sync failed: %w", err)
	}
	if res.Sessions == 0 && res.Sets == 0 {
		return nil, simpleOutput{Message: "Nothing to sync."}, nil
	}
	return nil, simpleOutput{
		Message: fmt.Sprintf("Synced %d/%d workouts and %d/%d sets", res.AcceptedSessions, res.Sessions, res.AcceptedSets, res.Sets),
	}, nil
}

// isNotFound keeps resource handlers quiet about empty stores.
func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
