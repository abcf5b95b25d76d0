// ABOUTME: Template builder writes: full replace of a template and its prescriptions, and delete.
// ABOUTME: Children are deleted and reinserted in the same transaction as the parent upsert.
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

// SaveTemplate creates draft.ID (or a new template when empty) or replaces it
// wholesale. Every referenced exercise must already be in the store.
func (s *Service) SaveTemplate(ctx context.Context, draft *models.TemplateDraft) (*models.WorkoutTemplate, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	id := draft.ID
	if id == "" {
		id = uuid.NewString()
	}

	var tmpl *models.WorkoutTemplate
	var rows []*models.TemplateExercise
	created := false
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		rows = draft.Rows(id)
		if err := requireExercises(ctx, tx, rows); err != nil {
			return err
		}

		createdAt := s.clock()
		existing, err := storage.Get(ctx, tx, storage.Templates, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			created = true
		case err != nil:
			return err
		default:
			createdAt = existing.CreatedAt
		}

		tmpl = &models.WorkoutTemplate{
			ID:         id,
			UserID:     s.userID,
			Name:       draft.Name,
			CreatedAt:  createdAt,
			SyncStatus: models.StatusPending,
		}
		if _, err := storage.DeleteWhere(ctx, tx, storage.TemplateExercises, storage.Eq("template_id", id)); err != nil {
			return err
		}
		for _, row := range rows {
			if err := storage.Add(ctx, tx, storage.TemplateExercises, row); err != nil {
				return err
			}
		}
		return storage.Put(ctx, tx, storage.Templates, tmpl)
	})
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}

	s.push(ctx, "template", func(ctx context.Context) error {
		return s.pushTemplate(ctx, id, created)
	})
	return tmpl, nil
}

func requireExercises(ctx context.Context, q storage.Querier, rows []*models.TemplateExercise) error {
	ids := make(map[string]bool)
	for _, r := range rows {
		ids[r.ExerciseID] = true
	}
	for id := range ids {
		if _, err := storage.Get(ctx, q, storage.Exercises, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &models.ValidationError{Field: "exercise_id", Message: "unknown exercise " + id}
			}
			return err
		}
	}
	return nil
}

// pushTemplate submits the template as persisted. A template the server has
// never seen is created; an update that 404s falls back to create.
func (s *Service) pushTemplate(ctx context.Context, id string, created bool) error {
	detail, err := s.Template(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tmpl, rows := detail.Template, detail.Exercises

	in := remote.TemplateInput{ID: tmpl.ID, Name: tmpl.Name, TemplateExercises: make([]remote.TemplateExerciseDTO, 0, len(rows))}
	for _, r := range rows {
		in.TemplateExercises = append(in.TemplateExercises, remote.TemplateExerciseFrom(r))
	}

	if created {
		_, err = s.remote.CreateTemplate(ctx, in)
	} else {
		_, err = s.remote.UpdateTemplate(ctx, tmpl.ID, in)
		if remote.StatusOf(err) == 404 {
			_, err = s.remote.CreateTemplate(ctx, in)
		}
	}
	if err != nil {
		return err
	}

	return s.store.Update(ctx, func(tx *storage.Tx) error {
		if _, err := storage.MarkSynced(ctx, tx, storage.Templates, []*models.WorkoutTemplate{tmpl}, []string{tmpl.ID}); err != nil {
			return err
		}
		_, err := storage.MarkSynced(ctx, tx, storage.TemplateExercises, rows, rowIDs(rows))
		return err
	})
}

// DeleteTemplate removes a template and its prescriptions. Sessions that ran
// it keep their history with the template reference cleared.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		if _, err := storage.Get(ctx, tx, storage.Templates, id); err != nil {
			return err
		}
		n, err := storage.Count(ctx, tx, storage.ProgramRoutines, storage.Eq("template_id", id))
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrTemplateInUse
		}
		if _, err := storage.DeleteWhere(ctx, tx, storage.TemplateExercises, storage.Eq("template_id", id)); err != nil {
			return err
		}
		if err := storage.Delete(ctx, tx, storage.Templates, id); err != nil {
			return err
		}
		return detachSessions(ctx, tx, "template_id", id, func(ws *models.WorkoutSession) { ws.TemplateID = nil })
	})
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	s.push(ctx, "template delete", func(ctx context.Context) error {
		err := s.remote.DeleteTemplate(ctx, id)
		if remote.StatusOf(err) == 404 {
			return nil
		}
		return err
	})
	return nil
}

// detachSessions clears a dangling reference on every session that holds it
// and marks them pending so the cleared field reaches the server.
func detachSessions(ctx context.Context, tx *storage.Tx, col, id string, clear func(*models.WorkoutSession)) error {
	sessions, err := storage.Collect(ctx, tx, storage.Sessions, storage.Eq(col, id))
	if err != nil {
		return err
	}
	for _, ws := range sessions {
		clear(ws)
		ws.SyncStatus = models.StatusPending
		if err := storage.Put(ctx, tx, storage.Sessions, ws); err != nil {
			return err
		}
	}
	return nil
}

func rowIDs(rows []*models.TemplateExercise) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

// TemplateDetail is a template with its prescriptions in display order.
type TemplateDetail struct {
	Template  *models.WorkoutTemplate
	Exercises []*models.TemplateExercise
}

// Templates lists the user's templates by name.
func (s *Service) Templates(ctx context.Context) ([]*models.WorkoutTemplate, error) {
	return storage.Collect(ctx, s.store, storage.Templates, storage.Eq("user_id", s.userID), storage.OrderBy("name", false))
}

// Template loads one template and its prescriptions.
func (s *Service) Template(ctx context.Context, id string) (*TemplateDetail, error) {
	var out TemplateDetail
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		if out.Template, err = storage.Get(ctx, tx, storage.Templates, id); err != nil {
			return err
		}
		out.Exercises, err = storage.Collect(ctx, tx, storage.TemplateExercises,
			storage.Eq("template_id", id), storage.OrderBy("sort_order", false), storage.OrderBy("week_type", true))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
