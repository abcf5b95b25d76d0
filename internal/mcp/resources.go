// ABOUTME: MCP resource implementations for the gym tracker.
// ABOUTME: Provides gym://recent, gym://today, and gym://summary resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/storage"
)

func (s *Server) registerResources() {
	// gym://recent - Last 10 workouts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "gym://recent",
		Name:        "Recent Workouts",
		Description: "Last 10 workouts with their sets",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	// gym://today - Active workout and the program's next routine
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "gym://today",
		Name:        "Today's Training",
		Description: "The workout in progress and the routine the active program schedules next",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	// gym://summary - Weekly maxima and sync backlog
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "gym://summary",
		Name:        "Training Summary",
		Description: "Latest weekly max weight per exercise plus rows waiting to sync",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sessions, err := s.svc.RecentSessions(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}

	workouts := make([]any, 0, len(sessions))
	for _, ws := range sessions {
		detail, err := s.svc.Session(ctx, ws.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workout: %w", err)
		}
		workouts = append(workouts, detail)
	}

	return jsonResource("gym://recent", map[string]any{"workouts": workouts})
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	result := map[string]any{
		"date":           time.Now().Format("2006-01-02"),
		"active_workout": nil,
		"next_routine":   nil,
	}

	ws, err := s.svc.ActiveSession(ctx)
	switch {
	case err == nil:
		detail, err := s.svc.Session(ctx, ws.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workout: %w", err)
		}
		result["active_workout"] = detail
	case !isNotFound(err):
		return nil, fmt.Errorf("failed to find active workout: %w", err)
	}

	if today, err := s.svc.TodayRoutine(ctx); err == nil {
		result["next_routine"] = map[string]any{
			"program":  today.Program.Name,
			"template": today.Template.Name,
			"position": today.Position,
			"count":    today.Count,
			"week":     today.Week.String(),
		}
	}

	return jsonResource("gym://today", result)
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	exercises, err := s.svc.Exercises(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}

	latest := make(map[string]any)
	for _, ex := range exercises {
		row, err := storage.First(ctx, s.svc.Store(), storage.Progress,
			storage.Eq("user_id", s.svc.UserID()), storage.Eq("exercise_id", ex.ID), storage.OrderBy("year_week", true))
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read progress: %w", err)
		}
		latest[ex.Name] = map[string]any{
			"max_weight": row.MaxWeight,
			"year_week":  row.YearWeek,
		}
	}

	pending, err := s.svc.Store().PendingCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending rows: %w", err)
	}

	return jsonResource("gym://summary", map[string]any{
		"generated_at":   time.Now().Format(time.RFC3339),
		"current_week":   models.YearWeek(time.Now()),
		"latest_maxima":  latest,
		"pending_sync":   pending,
		"exercise_count": len(exercises),
	})
}
