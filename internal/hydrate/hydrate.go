// ABOUTME: Hydrator replaces the local store with a full snapshot from the server after login.
// ABOUTME: Collections load in dependency order; any failure aborts quietly and is reported to a hook.
package hydrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/storage"
)

// Source is the slice of the remote API hydration reads from.
type Source interface {
	Me(ctx context.Context) (*remote.UserDTO, error)
	ListExercises(ctx context.Context) ([]remote.ExerciseDTO, error)
	ListTemplates(ctx context.Context) ([]remote.TemplateDTO, error)
	GetTemplate(ctx context.Context, id string) (*remote.TemplateDetailDTO, error)
	ListPrograms(ctx context.Context) ([]remote.ProgramDTO, error)
	GetProgram(ctx context.Context, id string) (*remote.ProgramDetailDTO, error)
	ListSessions(ctx context.Context) ([]remote.SessionDTO, error)
	GetSession(ctx context.Context, id string) (*remote.SessionDetailDTO, error)
	ListProgress(ctx context.Context) ([]remote.ProgressDTO, error)
}

// Stage names the collection a hydration step was loading.
type Stage string

const (
	StageClear     Stage = "clear"
	StageUser      Stage = "user"
	StageExercises Stage = "exercises"
	StageTemplates Stage = "templates"
	StagePrograms  Stage = "programs"
	StageSessions  Stage = "sessions"
	StageProgress  Stage = "progress"
)

// Error reports which stage aborted hydration.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result counts the rows written per table.
type Result struct {
	UserID            string
	Exercises         int
	Substitutions     int
	Templates         int
	TemplateExercises int
	Programs          int
	Routines          int
	Sessions          int
	Sets              int
	Progress          int
}

// Hydrator loads a server snapshot into the store.
type Hydrator struct {
	store   *storage.DB
	src     Source
	logger  *slog.Logger
	onError func(*Error)
	fanout  int
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithLogger sets the logger used for progress and failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hydrator) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithErrorHook registers fn to observe the failure that aborted a run.
func WithErrorHook(fn func(*Error)) Option {
	return func(h *Hydrator) { h.onError = fn }
}

// WithFanout bounds how many per-parent detail fetches run at once.
func WithFanout(n int) Option {
	return func(h *Hydrator) {
		if n > 0 {
			h.fanout = n
		}
	}
}

// New creates a Hydrator.
func New(store *storage.DB, src Source, opts ...Option) *Hydrator {
	h := &Hydrator{
		store:  store,
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		fanout: 4,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hydrate wipes the store and reloads it. userID owns the loaded rows; when
// empty the id reported by the server is used. A failed run leaves whatever
// collections completed before the failure and returns an *Error, which has
// already been logged and passed to the error hook.
func (h *Hydrator) Hydrate(ctx context.Context, userID string) (*Result, error) {
	res := &Result{}
	err := h.run(ctx, userID, res)
	if err != nil {
		herr := err.(*Error)
		h.logger.Warn("hydration aborted", "stage", herr.Stage, "error", herr.Err)
		if h.onError != nil {
			h.onError(herr)
		}
		return res, herr
	}
	h.logger.Info("hydration complete",
		"exercises", res.Exercises, "templates", res.Templates, "programs", res.Programs,
		"sessions", res.Sessions, "sets", res.Sets, "progress", res.Progress)
	return res, nil
}

func (h *Hydrator) run(ctx context.Context, userID string, res *Result) error {
	if err := h.store.ClearAll(ctx); err != nil {
		return &Error{Stage: StageClear, Err: err}
	}

	me, err := h.src.Me(ctx)
	if err != nil {
		return &Error{Stage: StageUser, Err: err}
	}
	if userID == "" {
		userID = me.ID
	}
	user := me.Model()
	user.ID = userID
	if err := storage.Put(ctx, h.store, storage.Users, user); err != nil {
		return &Error{Stage: StageUser, Err: err}
	}
	res.UserID = userID

	steps := []struct {
		stage Stage
		fn    func(context.Context, string, *Result) error
	}{
		{StageExercises, h.exercises},
		{StageTemplates, h.templates},
		{StagePrograms, h.programs},
		{StageSessions, h.sessions},
		{StageProgress, h.progress},
	}
	for _, step := range steps {
		if err := step.fn(ctx, userID, res); err != nil {
			return &Error{Stage: step.stage, Err: err}
		}
	}
	return nil
}

func (h *Hydrator) exercises(ctx context.Context, userID string, res *Result) error {
	dtos, err := h.src.ListExercises(ctx)
	if err != nil {
		return err
	}
	rows := make([]*models.Exercise, 0, len(dtos))
	var subs []*models.ExerciseSubstitution
	for _, d := range dtos {
		rows = append(rows, d.Model(userID))
		subs = append(subs, d.SubstitutionModels()...)
	}
	if err := storage.BulkPut(ctx, h.store, storage.Exercises, rows); err != nil {
		return err
	}
	if err := storage.BulkPut(ctx, h.store, storage.Substitutions, subs); err != nil {
		return err
	}
	res.Exercises, res.Substitutions = len(rows), len(subs)
	return nil
}

func (h *Hydrator) templates(ctx context.Context, userID string, res *Result) error {
	dtos, err := h.src.ListTemplates(ctx)
	if err != nil {
		return err
	}
	rows := make([]*models.WorkoutTemplate, 0, len(dtos))
	ids := make([]string, 0, len(dtos))
	for _, d := range dtos {
		rows = append(rows, d.Model(userID))
		ids = append(ids, d.ID)
	}
	if err := storage.BulkPut(ctx, h.store, storage.Templates, rows); err != nil {
		return err
	}

	children, err := fetchChildren(ctx, h.fanout, ids, func(ctx context.Context, id string) ([]*models.TemplateExercise, error) {
		detail, err := h.src.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		out := make([]*models.TemplateExercise, 0, len(detail.TemplateExercises))
		for _, te := range detail.TemplateExercises {
			out = append(out, te.Model(id))
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	if err := storage.BulkPut(ctx, h.store, storage.TemplateExercises, children); err != nil {
		return err
	}
	res.Templates, res.TemplateExercises = len(rows), len(children)
	return nil
}

func (h *Hydrator) programs(ctx context.Context, userID string, res *Result) error {
	dtos, err := h.src.ListPrograms(ctx)
	if err != nil {
		return err
	}
	rows := make([]*models.Program, 0, len(dtos))
	ids := make([]string, 0, len(dtos))
	for _, d := range dtos {
		rows = append(rows, d.Model(userID))
		ids = append(ids, d.ID)
	}
	if err := storage.BulkPut(ctx, h.store, storage.Programs, rows); err != nil {
		return err
	}

	children, err := fetchChildren(ctx, h.fanout, ids, func(ctx context.Context, id string) ([]*models.ProgramRoutine, error) {
		detail, err := h.src.GetProgram(ctx, id)
		if err != nil {
			return nil, err
		}
		return detail.RoutineModels(), nil
	})
	if err != nil {
		return err
	}
	if err := storage.BulkPut(ctx, h.store, storage.ProgramRoutines, children); err != nil {
		return err
	}
	res.Programs, res.Routines = len(rows), len(children)
	return nil
}

func (h *Hydrator) sessions(ctx context.Context, userID string, res *Result) error {
	dtos, err := h.src.ListSessions(ctx)
	if err != nil {
		return err
	}
	rows := make([]*models.WorkoutSession, 0, len(dtos))
	ids := make([]string, 0, len(dtos))
	for _, d := range dtos {
		rows = append(rows, d.Model(userID))
		ids = append(ids, d.ID)
	}
	if err := storage.BulkPut(ctx, h.store, storage.Sessions, rows); err != nil {
		return err
	}

	children, err := fetchChildren(ctx, h.fanout, ids, func(ctx context.Context, id string) ([]*models.WorkoutSet, error) {
		detail, err := h.src.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		return detail.SetModels(), nil
	})
	if err != nil {
		return err
	}
	if err := storage.BulkPut(ctx, h.store, storage.Sets, children); err != nil {
		return err
	}
	res.Sessions, res.Sets = len(rows), len(children)
	return nil
}

func (h *Hydrator) progress(ctx context.Context, userID string, res *Result) error {
	dtos, err := h.src.ListProgress(ctx)
	if err != nil {
		return err
	}
	rows := make([]*models.ExerciseProgress, 0, len(dtos))
	for _, d := range dtos {
		rows = append(rows, d.Model(userID))
	}
	if err := storage.BulkPut(ctx, h.store, storage.Progress, rows); err != nil {
		return err
	}
	res.Progress = len(rows)
	return nil
}

// fetchChildren runs fetch for every parent id with at most limit in flight
// and returns the children in parent order. The first error cancels the rest.
func fetchChildren[T any](ctx context.Context, limit int, ids []string, fetch func(context.Context, string) ([]*T, error)) ([]*T, error) {
	results := make([][]*T, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			rows, err := fetch(gctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*T
	for _, rows := range results {
		out = append(out, rows...)
	}
	return out, nil
}
