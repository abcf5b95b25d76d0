// ABOUTME: Local-first write path: every change commits to the store before any network attempt.
// ABOUTME: Inline pushes run in the background when online and flip rows to synced on success.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/storage"
)

var (
	// ErrActiveSessionExists is returned when a workout is started while another is unfinished.
	ErrActiveSessionExists = errors.New("a workout is already in progress")
	// ErrSessionFinished is returned when a set is logged against a finished workout.
	ErrSessionFinished = errors.New("workout already finished")
	// ErrNoActiveProgram is returned when today's routine is asked for without an active program.
	ErrNoActiveProgram = errors.New("no active program")
	// ErrTemplateInUse is returned when deleting a template a program still schedules.
	ErrTemplateInUse = errors.New("template is used by a program")
	// ErrRemoteUnavailable is returned by operations that need the server while offline.
	ErrRemoteUnavailable = errors.New("server unavailable")
)

// Remote is the slice of the API the write path pushes through.
type Remote interface {
	CreateTemplate(ctx context.Context, in remote.TemplateInput) (*remote.TemplateDetailDTO, error)
	UpdateTemplate(ctx context.Context, id string, in remote.TemplateInput) (*remote.TemplateDetailDTO, error)
	DeleteTemplate(ctx context.Context, id string) error
	CreateProgram(ctx context.Context, in remote.ProgramInput) (*remote.ProgramDetailDTO, error)
	UpdateProgram(ctx context.Context, id string, in remote.ProgramInput) (*remote.ProgramDetailDTO, error)
	DeleteProgram(ctx context.Context, id string) error
	ActivateProgram(ctx context.Context, id string) (*remote.ProgramDTO, error)
	DeactivateProgram(ctx context.Context, id string) (*remote.ProgramDTO, error)
	AdvanceProgram(ctx context.Context, id string) (*remote.ProgramDTO, error)
	Sync(ctx context.Context, req remote.SyncRequest) (*remote.SyncResponse, error)
	UpdateMe(ctx context.Context, upd remote.UserUpdate) (*remote.UserDTO, error)
}

// Service applies user changes for one user.
type Service struct {
	store  *storage.DB
	userID string
	remote Remote
	online func() bool
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location

	pushes sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithRemote enables inline pushes. online gates each attempt; nil means always try.
func WithRemote(r Remote, online func() bool) Option {
	return func(s *Service) {
		s.remote = r
		if online != nil {
			s.online = online
		}
	}
}

// WithLogger sets the logger for push failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone whose calendar decides a session's year-week.
// The default is the machine's local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a Service writing on behalf of userID.
func New(store *storage.DB, userID string, opts ...Option) *Service {
	s := &Service{
		store:  store,
		userID: userID,
		online: func() bool { return true },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID is the user the service writes for.
func (s *Service) UserID() string {
	return s.userID
}

// Store exposes the underlying record store for read paths.
func (s *Service) Store() *storage.DB {
	return s.store
}

// Flush waits for in-flight inline pushes.
func (s *Service) Flush() {
	s.pushes.Wait()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) canPush() bool {
	return s.remote != nil && s.online()
}

// push runs fn in the background when online. Failures are logged and the
// rows stay pending. The caller's cancellation does not abandon the push.
func (s *Service) push(ctx context.Context, what string, fn func(ctx context.Context) error) {
	if !s.canPush() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()
		if err := fn(ctx); err != nil {
			s.logger.Warn("inline push failed, left pending", "entity", what, "error", err)
			return
		}
		s.logger.Debug("inline push ok", "entity", what)
	}()
}
