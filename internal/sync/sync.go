// ABOUTME: Sync engine pushing pending sessions and sets to the server in one batch per cycle.
// ABOUTME: Single-flight cycles, backoff-gated ticks, connectivity tracking and cron-driven scheduling.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/storage"
)

var (
	// ErrSyncInProgress is returned when a cycle is requested while one is running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrOffline is returned when a cycle is requested while the server is unreachable.
	ErrOffline = errors.New("offline")
)

// Pusher is the slice of the remote API the engine drives.
type Pusher interface {
	Sync(ctx context.Context, req remote.SyncRequest) (*remote.SyncResponse, error)
	Ping(ctx context.Context) error
}

// Result describes one completed cycle.
type Result struct {
	Sessions         int
	Sets             int
	AcceptedSessions int
	AcceptedSets     int
	Errors           []string
}

// Status is a point-in-time view of the engine for status displays.
type Status struct {
	Online         bool
	Syncing        bool
	Pending        int
	PendingByTable map[string]int
	LastError      string
	LastErrorAt    time.Time
	LastSync       time.Time
	NextAttempt    time.Time
	Backoff        time.Duration
	Failures       int
}

// Engine reconciles pending local rows with the server.
type Engine struct {
	store  *storage.DB
	client Pusher
	logger *slog.Logger
	now    func() time.Time

	interval      time.Duration
	probeInterval time.Duration

	running atomic.Bool
	kick    chan struct{}

	mu          gosync.Mutex
	backoff     *Backoff
	online      bool
	pending     map[string]int
	lastErr     string
	lastErrAt   time.Time
	lastSync    time.Time
	nextAttempt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for cycle outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithInterval sets the fixed tick interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithProbeInterval sets how often connectivity is re-checked against the health route.
func WithProbeInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.probeInterval = d
		}
	}
}

// WithBackoff sets the retry delay bounds.
func WithBackoff(floor, ceiling time.Duration) Option {
	return func(e *Engine) { e.backoff = NewBackoff(floor, ceiling) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. It assumes the server is reachable until told otherwise.
func New(store *storage.DB, client Pusher, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		client:        client,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
		interval:      30 * time.Second,
		probeInterval: 30 * time.Second,
		kick:          make(chan struct{}, 1),
		backoff:       NewBackoff(time.Second, time.Minute),
		online:        true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncNow runs one cycle immediately, ignoring backoff.
func (e *Engine) SyncNow(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.running.Store(false)
	defer e.refreshPending(ctx)

	if !e.Online() {
		return nil, ErrOffline
	}

	var sessions []*models.WorkoutSession
	var sets []*models.WorkoutSet
	err := e.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		pending := storage.Eq("sync_status", models.StatusPending)
		if sessions, err = storage.Collect(ctx, tx, storage.Sessions, pending, storage.OrderBy("started_at", false)); err != nil {
			return err
		}
		sets, err = storage.Collect(ctx, tx, storage.Sets, pending, storage.OrderBy("created_at", false))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read pending rows: %w", err)
	}

	res := &Result{Sessions: len(sessions), Sets: len(sets)}
	if len(sessions) == 0 && len(sets) == 0 {
		return res, nil
	}

	req := remote.SyncRequest{
		Sessions: make([]remote.SyncSession, 0, len(sessions)),
		Sets:     make([]remote.SyncSet, 0, len(sets)),
	}
	for _, s := range sessions {
		req.Sessions = append(req.Sessions, remote.SyncSessionFrom(s))
	}
	for _, s := range sets {
		req.Sets = append(req.Sets, remote.SyncSetFrom(s))
	}

	resp, err := e.client.Sync(ctx, req)
	if err != nil {
		e.recordFailure(err)
		return nil, fmt.Errorf("push batch: %w", err)
	}

	err = e.store.Update(ctx, func(tx *storage.Tx) error {
		n, err := storage.MarkSynced(ctx, tx, storage.Sessions, sessions, resp.SyncedSessions)
		if err != nil {
			return err
		}
		res.AcceptedSessions = n
		n, err = storage.MarkSynced(ctx, tx, storage.Sets, sets, resp.SyncedSets)
		res.AcceptedSets = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mark synced: %w", err)
	}
	res.Errors = resp.Errors

	e.recordSuccess()
	for _, msg := range resp.Errors {
		e.logger.Warn("server rejected row", "detail", msg)
	}
	e.logger.Info("sync cycle complete",
		"sessions", fmt.Sprintf("%d/%d", res.AcceptedSessions, res.Sessions),
		"sets", fmt.Sprintf("%d/%d", res.AcceptedSets, res.Sets))
	return res, nil
}

// Tick is the periodic trigger. It skips the cycle while offline or inside
// the backoff window after a failure.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	online, wait := e.online, e.nextAttempt
	e.mu.Unlock()

	if !online {
		e.refreshPending(ctx)
		return
	}
	if now := e.now(); now.Before(wait) {
		e.logger.Debug("sync tick skipped", "retry_in", wait.Sub(now).Round(time.Second))
		e.refreshPending(ctx)
		return
	}
	e.runCycle(ctx)
}

func (e *Engine) runCycle(ctx context.Context) {
	_, err := e.SyncNow(ctx)
	switch {
	case err == nil, errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrOffline):
	default:
		e.logger.Warn("sync cycle failed", "error", err)
	}
}

// SetOnline records a connectivity signal. Coming back online clears the
// backoff window and requests an immediate cycle from Run.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	was := e.online
	e.online = online
	if online && !was {
		e.nextAttempt = time.Time{}
	}
	e.mu.Unlock()

	if online == was {
		return
	}
	e.logger.Info("connectivity changed", "online", online)
	if online {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	}
}

// Online reports the last known connectivity.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Probe checks the health route and records the outcome.
func (e *Engine) Probe(ctx context.Context) bool {
	ok := e.client.Ping(ctx) == nil
	e.SetOnline(ok)
	return ok
}

// Run drives the engine until ctx is done: one probe and cycle up front,
// then cron-scheduled ticks and probes, plus a cycle on every return to online.
func (e *Engine) Run(ctx context.Context) error {
	c := cron.New()
	if err := c.AddFunc(every(e.interval), func() { e.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	if err := c.AddFunc(every(e.probeInterval), func() { e.Probe(ctx) }); err != nil {
		return fmt.Errorf("schedule probe: %w", err)
	}

	e.Probe(ctx)
	e.Tick(ctx)
	// The probe may have queued a kick; the cycle above already covered it.
	select {
	case <-e.kick:
	default:
	}

	c.Start()
	defer c.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.kick:
			e.runCycle(ctx)
		}
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// Status returns the current engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	byTable := make(map[string]int, len(e.pending))
	for k, v := range e.pending {
		byTable[k] = v
	}
	return Status{
		Online:         e.online,
		Syncing:        e.running.Load(),
		Pending:        byTable[storage.Sessions.Name] + byTable[storage.Sets.Name],
		PendingByTable: byTable,
		LastError:      e.lastErr,
		LastErrorAt:    e.lastErrAt,
		LastSync:       e.lastSync,
		NextAttempt:    e.nextAttempt,
		Backoff:        e.backoff.Current(),
		Failures:       e.backoff.Failures(),
	}
}

// RefreshStatus re-reads pending counts and returns the current state.
func (e *Engine) RefreshStatus(ctx context.Context) Status {
	e.refreshPending(ctx)
	return e.Status()
}

func (e *Engine) refreshPending(ctx context.Context) {
	counts, err := e.store.PendingCounts(ctx)
	if err != nil {
		e.logger.Warn("count pending rows", "error", err)
		return
	}
	e.mu.Lock()
	e.pending = counts
	e.mu.Unlock()
}

func (e *Engine) recordFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	delay := e.backoff.Fail()
	e.lastErr = err.Error()
	e.lastErrAt = now
	e.nextAttempt = now.Add(delay)
	e.logger.Warn("sync failed", "error", err, "retry_in", delay)
}

func (e *Engine) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backoff.Reset()
	e.lastErr = ""
	e.lastSync = e.now()
	e.nextAttempt = time.Time{}
}
