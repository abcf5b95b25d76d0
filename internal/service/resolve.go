// ABOUTME: Reference resolution for user input: full id, id prefix or case-insensitive name.
// ABOUTME: Shared by the CLI and MCP tools so both accept the same references.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/storage"
)

func resolve[T any](ctx context.Context, q storage.Querier, t *storage.Table[T], ref string, candidates []*T, name func(*T) string) (*T, error) {
	ref = strings.TrimSpace(ref)
	if id, err := storage.ResolveID(ctx, q, t, ref); err == nil {
		return storage.Get(ctx, q, t, id)
	}
	for _, c := range candidates {
		if strings.EqualFold(name(c), ref) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", t.Name, ref, storage.ErrNotFound)
}

// ResolveExercise finds an exercise by id, id prefix or name.
func (s *Service) ResolveExercise(ctx context.Context, ref string) (*models.Exercise, error) {
	all, err := s.Exercises(ctx)
	if err != nil {
		return nil, err
	}
	return resolve(ctx, s.store, storage.Exercises, ref, all, func(e *models.Exercise) string { return e.Name })
}

// ResolveTemplate finds a template by id, id prefix or name.
func (s *Service) ResolveTemplate(ctx context.Context, ref string) (*models.WorkoutTemplate, error) {
	all, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	return resolve(ctx, s.store, storage.Templates, ref, all, func(t *models.WorkoutTemplate) string { return t.Name })
}

// ResolveProgram finds a program by id, id prefix or name.
func (s *Service) ResolveProgram(ctx context.Context, ref string) (*models.Program, error) {
	all, err := s.Programs(ctx)
	if err != nil {
		return nil, err
	}
	return resolve(ctx, s.store, storage.Programs, ref, all, func(p *models.Program) string { return p.Name })
}

// ResolveSession finds a session by id or id prefix. An empty reference
// means the active session.
func (s *Service) ResolveSession(ctx context.Context, ref string) (*models.WorkoutSession, error) {
	if strings.TrimSpace(ref) == "" {
		return s.ActiveSession(ctx)
	}
	return resolve(ctx, s.store, storage.Sessions, ref, nil, func(*models.WorkoutSession) string { return "" })
}
