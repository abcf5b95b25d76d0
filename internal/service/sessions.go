// ABOUTME: Workout session writes: start, log set and finish, plus session reads.
// ABOUTME: Finishing derives weekly progress maxima and advances the program from persisted state.
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/storage"
)

// StartOptions selects what a new session runs.
type StartOptions struct {
	TemplateID string // optional
	ProgramID  string // optional
	WeekType   models.WeekType
	Notes      string
}

// StartSession creates the user's active session. It fails with
// ErrActiveSessionExists while another session is unfinished.
func (s *Service) StartSession(ctx context.Context, opts StartOptions) (*models.WorkoutSession, error) {
	if opts.WeekType == "" {
		opts.WeekType = models.WeekNormal
	}
	if _, err := models.ParseWeekType(string(opts.WeekType)); err != nil {
		return nil, err
	}

	ws := models.NewWorkoutSession(s.userID, opts.WeekType, s.clock().In(s.loc))
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		active, err := storage.Count(ctx, tx, storage.Sessions, storage.Eq("user_id", s.userID), storage.IsNull("finished_at"))
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveSessionExists
		}
		if opts.TemplateID != "" {
			if _, err := storage.Get(ctx, tx, storage.Templates, opts.TemplateID); err != nil {
				return err
			}
			ws.TemplateID = &opts.TemplateID
		}
		if opts.ProgramID != "" {
			if _, err := storage.Get(ctx, tx, storage.Programs, opts.ProgramID); err != nil {
				return err
			}
			ws.ProgramID = &opts.ProgramID
		}
		if notes := strings.TrimSpace(opts.Notes); notes != "" {
			ws.Notes = &notes
		}
		return storage.Add(ctx, tx, storage.Sessions, ws)
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	s.pushSession(ctx, ws.ID)
	return ws, nil
}

// StartFromProgram starts a session on the active program's current routine
// with the week type its deload cycle calls for.
func (s *Service) StartFromProgram(ctx context.Context, notes string) (*models.WorkoutSession, *Today, error) {
	today, err := s.TodayRoutine(ctx)
	if err != nil {
		return nil, nil, err
	}
	ws, err := s.StartSession(ctx, StartOptions{
		TemplateID: today.Template.ID,
		ProgramID:  today.Program.ID,
		WeekType:   today.Week.WeekType(),
		Notes:      notes,
	})
	return ws, today, err
}

// SetInput is one set as the user logged it.
type SetInput struct {
	SessionID  string
	ExerciseID string
	SetType    models.SetType
	Reps       int
	Weight     float64
	RPE        *float64
	Notes      string
}

// LogSet appends a set to an active session. The set number continues the
// count for that exercise and set type within the session.
func (s *Service) LogSet(ctx context.Context, in SetInput) (*models.WorkoutSet, error) {
	if in.SetType == "" {
		in.SetType = models.SetWorking
	}
	if _, err := models.ParseSetType(string(in.SetType)); err != nil {
		return nil, err
	}

	var set *models.WorkoutSet
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		ws, err := storage.Get(ctx, tx, storage.Sessions, in.SessionID)
		if err != nil {
			return err
		}
		if !ws.IsActive() {
			return ErrSessionFinished
		}
		if _, err := storage.Get(ctx, tx, storage.Exercises, in.ExerciseID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &models.ValidationError{Field: "exercise_id", Message: "unknown exercise " + in.ExerciseID}
			}
			return err
		}
		n, err := storage.Count(ctx, tx, storage.Sets,
			storage.Eq("session_id", ws.ID), storage.Eq("exercise_id", in.ExerciseID), storage.Eq("set_type", in.SetType))
		if err != nil {
			return err
		}

		set = models.NewWorkoutSet(ws.ID, in.ExerciseID, in.SetType, n+1, in.Reps, in.Weight)
		set.CreatedAt = s.clock()
		if in.RPE != nil {
			set.WithRPE(*in.RPE)
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			set.WithNotes(notes)
		}
		if err := set.Validate(); err != nil {
			return err
		}
		return storage.Add(ctx, tx, storage.Sets, set)
	})
	if err != nil {
		return nil, fmt.Errorf("log set: %w", err)
	}

	s.pushSession(ctx, set.SessionID)
	return set, nil
}

// FinishResult reports what finishing a session derived.
type FinishResult struct {
	Session  *models.WorkoutSession
	Progress []*models.ExerciseProgress // rows written this call
	Program  *models.Program            // advanced program, nil when none moved
}

// FinishSession stamps finished_at, folds the session's working sets into the
// weekly progress maxima and advances the session's program. Finishing again
// keeps the first finished_at, cannot raise a maximum past the true one and
// leaves the program where the first finish put it.
func (s *Service) FinishSession(ctx context.Context, sessionID string) (*FinishResult, error) {
	res := &FinishResult{}
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		ws, err := storage.Get(ctx, tx, storage.Sessions, sessionID)
		if err != nil {
			return err
		}
		now := s.clock()
		first := ws.FinishedAt == nil
		if first {
			ws.FinishedAt = &now
			ws.SyncStatus = models.StatusPending
			if err := storage.Put(ctx, tx, storage.Sessions, ws); err != nil {
				return err
			}
		}
		res.Session = ws

		if res.Progress, err = s.foldProgress(ctx, tx, ws, now); err != nil {
			return err
		}
		if first && ws.ProgramID != nil {
			res.Program, err = advanceProgram(ctx, tx, *ws.ProgramID, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}

	s.pushSession(ctx, sessionID)
	if res.Program != nil {
		id := res.Program.ID
		s.push(ctx, "program advance", func(ctx context.Context) error {
			snap, err := storage.Get(ctx, s.store, storage.Programs, id)
			if err != nil {
				return err
			}
			if _, err := s.remote.AdvanceProgram(ctx, id); err != nil {
				return err
			}
			return s.store.Update(ctx, func(tx *storage.Tx) error {
				_, err := storage.MarkSynced(ctx, tx, storage.Programs, []*models.Program{snap}, []string{id})
				return err
			})
		})
	}
	return res, nil
}

// foldProgress upserts max(existing, session max) for every exercise with a
// working set in ws, bucketed by the session's year-week.
func (s *Service) foldProgress(ctx context.Context, tx *storage.Tx, ws *models.WorkoutSession, now time.Time) ([]*models.ExerciseProgress, error) {
	sets, err := storage.Collect(ctx, tx, storage.Sets,
		storage.Eq("session_id", ws.ID), storage.Eq("set_type", models.SetWorking))
	if err != nil {
		return nil, err
	}
	maxes := make(map[string]float64)
	for _, set := range sets {
		if w, ok := maxes[set.ExerciseID]; !ok || set.Weight > w {
			maxes[set.ExerciseID] = set.Weight
		}
	}

	yearWeek := s.yearWeek(now)
	if ws.YearWeek != nil && *ws.YearWeek != "" {
		yearWeek = *ws.YearWeek
	}

	var written []*models.ExerciseProgress
	exerciseIDs := slices.Sorted(maps.Keys(maxes))
	for _, exID := range exerciseIDs {
		weight := maxes[exID]
		row, err := storage.First(ctx, tx, storage.Progress,
			storage.Eq("user_id", ws.UserID), storage.Eq("exercise_id", exID), storage.Eq("year_week", yearWeek))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			row = &models.ExerciseProgress{
				ID:         uuid.NewString(),
				UserID:     ws.UserID,
				ExerciseID: exID,
				YearWeek:   yearWeek,
				CreatedAt:  now,
			}
		case err != nil:
			return nil, err
		case weight <= row.MaxWeight:
			continue
		}
		row.MaxWeight = weight
		row.SyncStatus = models.StatusPending
		if err := storage.Put(ctx, tx, storage.Progress, row); err != nil {
			return nil, err
		}
		written = append(written, row)
	}
	return written, nil
}

// yearWeek buckets t by the user's calendar date, not the UTC one.
func (s *Service) yearWeek(t time.Time) string {
	return models.YearWeek(t.In(s.loc))
}

// advanceProgram moves the program one routine along its rotation using the
// routine count as it is now, not as it was when the session started.
func advanceProgram(ctx context.Context, tx *storage.Tx, programID string, now time.Time) (*models.Program, error) {
	prog, err := storage.Get(ctx, tx, storage.Programs, programID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	count, err := storage.Count(ctx, tx, storage.ProgramRoutines, storage.Eq("program_id", programID))
	if err != nil || count == 0 {
		return nil, err
	}

	next, wrapped := models.AdvanceRoutine(prog.CurrentRoutineIndex, count)
	prog.CurrentRoutineIndex = next
	if wrapped {
		prog.WeeksCompleted++
	}
	prog.LastWorkoutAt = &now
	prog.SyncStatus = models.StatusPending
	if err := storage.Put(ctx, tx, storage.Programs, prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// pushSession sends the session and its pending sets through the batch
// endpoint and flips whatever the server accepted.
func (s *Service) pushSession(ctx context.Context, sessionID string) {
	s.push(ctx, "session", func(ctx context.Context) error {
		var sessions []*models.WorkoutSession
		var sets []*models.WorkoutSet
		err := s.store.View(ctx, func(tx *storage.Tx) error {
			ws, err := storage.Get(ctx, tx, storage.Sessions, sessionID)
			if err != nil {
				return err
			}
			if ws.SyncStatus == models.StatusPending {
				sessions = append(sessions, ws)
			}
			sets, err = storage.Collect(ctx, tx, storage.Sets,
				storage.Eq("session_id", sessionID), storage.Eq("sync_status", models.StatusPending))
			return err
		})
		if err != nil || (len(sessions) == 0 && len(sets) == 0) {
			return err
		}

		req := remote.SyncRequest{Sessions: []remote.SyncSession{}, Sets: make([]remote.SyncSet, 0, len(sets))}
		for _, ws := range sessions {
			req.Sessions = append(req.Sessions, remote.SyncSessionFrom(ws))
		}
		for _, set := range sets {
			req.Sets = append(req.Sets, remote.SyncSetFrom(set))
		}
		resp, err := s.remote.Sync(ctx, req)
		if err != nil {
			return err
		}
		return s.store.Update(ctx, func(tx *storage.Tx) error {
			if _, err := storage.MarkSynced(ctx, tx, storage.Sessions, sessions, resp.SyncedSessions); err != nil {
				return err
			}
			_, err := storage.MarkSynced(ctx, tx, storage.Sets, sets, resp.SyncedSets)
			return err
		})
	})
}

// ActiveSession returns the user's unfinished session, or storage.ErrNotFound.
func (s *Service) ActiveSession(ctx context.Context) (*models.WorkoutSession, error) {
	return storage.First(ctx, s.store, storage.Sessions, storage.Eq("user_id", s.userID), storage.IsNull("finished_at"))
}

// RecentSessions lists the newest sessions first.
func (s *Service) RecentSessions(ctx context.Context, limit int) ([]*models.WorkoutSession, error) {
	return storage.Collect(ctx, s.store, storage.Sessions,
		storage.Eq("user_id", s.userID), storage.OrderBy("started_at", true), storage.Limit(limit))
}

// SessionDetail is a session with its sets in logging order.
type SessionDetail struct {
	Session *models.WorkoutSession
	Sets    []*models.WorkoutSet
}

// Session loads one session and its sets.
func (s *Service) Session(ctx context.Context, id string) (*SessionDetail, error) {
	var out SessionDetail
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		if out.Session, err = storage.Get(ctx, tx, storage.Sessions, id); err != nil {
			return err
		}
		out.Sets, err = storage.Collect(ctx, tx, storage.Sets, storage.Eq("session_id", id), storage.OrderBy("created_at", false))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Exercises lists the global catalog plus the user's custom exercises by name.
func (s *Service) Exercises(ctx context.Context) ([]*models.Exercise, error) {
	var out []*models.Exercise
	for ex, err := range storage.Query(ctx, s.store, storage.Exercises, storage.OrderBy("name", false)) {
		if err != nil {
			return nil, err
		}
		if ex.IsGlobal() || *ex.UserID == s.userID {
			out = append(out, ex)
		}
	}
	return out, nil
}
