// ABOUTME: Program builder writes, activation and the today's-routine read.
// ABOUTME: Only one program may be active; activation deactivates the rest in the same transaction.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/storage"
)

// SaveProgram creates draft.ID (or a new program when empty) or replaces its
// name, deload cadence and routine list. Rotation state is preserved and the
// routine index is clamped into the new routine count.
func (s *Service) SaveProgram(ctx context.Context, draft *models.ProgramDraft) (*models.Program, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	id := draft.ID
	if id == "" {
		id = uuid.NewString()
	}

	var prog *models.Program
	created := false
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		for _, tid := range draft.TemplateIDs {
			if _, err := storage.Get(ctx, tx, storage.Templates, tid); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return &models.ValidationError{Field: "routines", Message: "unknown template " + tid}
				}
				return err
			}
		}

		existing, err := storage.Get(ctx, tx, storage.Programs, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			created = true
			prog = &models.Program{ID: id, UserID: s.userID, CreatedAt: s.clock()}
		case err != nil:
			return err
		default:
			prog = existing
		}
		prog.Name = draft.Name
		prog.DeloadEveryNWeeks = draft.DeloadEveryNWeeks
		if prog.CurrentRoutineIndex >= len(draft.TemplateIDs) {
			prog.CurrentRoutineIndex = 0
		}
		prog.SyncStatus = models.StatusPending

		if _, err := storage.DeleteWhere(ctx, tx, storage.ProgramRoutines, storage.Eq("program_id", id)); err != nil {
			return err
		}
		for i, tid := range draft.TemplateIDs {
			r := &models.ProgramRoutine{
				ID:         uuid.NewString(),
				ProgramID:  id,
				TemplateID: tid,
				Order:      i,
				SyncStatus: models.StatusPending,
			}
			if err := storage.Add(ctx, tx, storage.ProgramRoutines, r); err != nil {
				return err
			}
		}
		return storage.Put(ctx, tx, storage.Programs, prog)
	})
	if err != nil {
		return nil, fmt.Errorf("save program: %w", err)
	}

	s.push(ctx, "program", func(ctx context.Context) error {
		return s.pushProgram(ctx, id, created)
	})
	return prog, nil
}

func (s *Service) pushProgram(ctx context.Context, id string, created bool) error {
	detail, err := s.Program(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	in := remote.ProgramInput{
		ID:                detail.Program.ID,
		Name:              detail.Program.Name,
		DeloadEveryNWeeks: detail.Program.DeloadEveryNWeeks,
		Routines:          make([]remote.RoutineDTO, 0, len(detail.Routines)),
	}
	for _, r := range detail.Routines {
		in.Routines = append(in.Routines, remote.RoutineDTO{ID: r.ID, TemplateID: r.TemplateID, Order: r.Order})
	}

	if created {
		_, err = s.remote.CreateProgram(ctx, in)
	} else {
		_, err = s.remote.UpdateProgram(ctx, id, in)
		if remote.StatusOf(err) == 404 {
			_, err = s.remote.CreateProgram(ctx, in)
		}
	}
	if err != nil {
		return err
	}

	routineIDs := make([]string, 0, len(detail.Routines))
	for _, r := range detail.Routines {
		routineIDs = append(routineIDs, r.ID)
	}
	return s.store.Update(ctx, func(tx *storage.Tx) error {
		if _, err := storage.MarkSynced(ctx, tx, storage.Programs, []*models.Program{detail.Program}, []string{id}); err != nil {
			return err
		}
		_, err := storage.MarkSynced(ctx, tx, storage.ProgramRoutines, detail.Routines, routineIDs)
		return err
	})
}

// DeleteProgram removes a program and its routines. Sessions run under it
// keep their history with the program reference cleared.
func (s *Service) DeleteProgram(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		if _, err := storage.Get(ctx, tx, storage.Programs, id); err != nil {
			return err
		}
		if _, err := storage.DeleteWhere(ctx, tx, storage.ProgramRoutines, storage.Eq("program_id", id)); err != nil {
			return err
		}
		if err := storage.Delete(ctx, tx, storage.Programs, id); err != nil {
			return err
		}
		return detachSessions(ctx, tx, "program_id", id, func(ws *models.WorkoutSession) { ws.ProgramID = nil })
	})
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}

	s.push(ctx, "program delete", func(ctx context.Context) error {
		err := s.remote.DeleteProgram(ctx, id)
		if remote.StatusOf(err) == 404 {
			return nil
		}
		return err
	})
	return nil
}

// SetProgramActive activates or deactivates a program. Activating one
// deactivates every other program of the user first. A program activated
// for the first time gets its started_at stamped.
func (s *Service) SetProgramActive(ctx context.Context, id string, active bool) (*models.Program, error) {
	var prog *models.Program
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		var err error
		if prog, err = storage.Get(ctx, tx, storage.Programs, id); err != nil {
			return err
		}
		if active {
			others, err := storage.Collect(ctx, tx, storage.Programs,
				storage.Eq("user_id", s.userID), storage.Eq("is_active", true))
			if err != nil {
				return err
			}
			for _, o := range others {
				if o.ID == id {
					continue
				}
				o.IsActive = false
				o.SyncStatus = models.StatusPending
				if err := storage.Put(ctx, tx, storage.Programs, o); err != nil {
					return err
				}
			}
			if prog.StartedAt == nil {
				now := s.clock()
				prog.StartedAt = &now
			}
		}
		prog.IsActive = active
		prog.SyncStatus = models.StatusPending
		return storage.Put(ctx, tx, storage.Programs, prog)
	})
	if err != nil {
		return nil, fmt.Errorf("set program active: %w", err)
	}

	s.push(ctx, "program activation", func(ctx context.Context) error {
		snap, err := storage.Get(ctx, s.store, storage.Programs, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		call := s.remote.DeactivateProgram
		if active {
			call = s.remote.ActivateProgram
		}
		if _, err := call(ctx, id); err != nil {
			return err
		}
		// The server deactivates the others itself.
		return s.store.Update(ctx, func(tx *storage.Tx) error {
			_, err := storage.MarkSynced(ctx, tx, storage.Programs, []*models.Program{snap}, []string{id})
			return err
		})
	})
	return prog, nil
}

// ProgramDetail is a program with its routines in rotation order.
type ProgramDetail struct {
	Program  *models.Program
	Routines []*models.ProgramRoutine
}

// Programs lists the user's programs by name.
func (s *Service) Programs(ctx context.Context) ([]*models.Program, error) {
	return storage.Collect(ctx, s.store, storage.Programs, storage.Eq("user_id", s.userID), storage.OrderBy("name", false))
}

// Program loads one program and its routines.
func (s *Service) Program(ctx context.Context, id string) (*ProgramDetail, error) {
	var out ProgramDetail
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		if out.Program, err = storage.Get(ctx, tx, storage.Programs, id); err != nil {
			return err
		}
		out.Routines, err = storage.Collect(ctx, tx, storage.ProgramRoutines,
			storage.Eq("program_id", id), storage.OrderBy("sort_order", false))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Today is the routine the active program schedules next.
type Today struct {
	Program  *models.Program
	Routine  *models.ProgramRoutine
	Template *models.WorkoutTemplate
	Week     models.WeekInfo
	Position int // 1-based
	Count    int
}

// TodayRoutine resolves the active program's routine at its current index.
func (s *Service) TodayRoutine(ctx context.Context) (*Today, error) {
	var out Today
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		prog, err := storage.First(ctx, tx, storage.Programs, storage.Eq("user_id", s.userID), storage.Eq("is_active", true))
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoActiveProgram
		}
		if err != nil {
			return err
		}
		routines, err := storage.Collect(ctx, tx, storage.ProgramRoutines,
			storage.Eq("program_id", prog.ID), storage.OrderBy("sort_order", false))
		if err != nil {
			return err
		}
		if len(routines) == 0 {
			return fmt.Errorf("program %s has no routines: %w", prog.Name, storage.ErrNotFound)
		}
		idx := prog.CurrentRoutineIndex
		if idx < 0 || idx >= len(routines) {
			idx = 0
		}
		tmpl, err := storage.Get(ctx, tx, storage.Templates, routines[idx].TemplateID)
		if err != nil {
			return err
		}
		out = Today{
			Program:  prog,
			Routine:  routines[idx],
			Template: tmpl,
			Week:     models.WeekIndicator(prog.WeeksCompleted, prog.DeloadEveryNWeeks),
			Position: idx + 1,
			Count:    len(routines),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
