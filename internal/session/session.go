// Package session wires a host field to the state store, the transform
// pipeline and the reconciler.
//
// A Session owns a task loop that plays the role of the host's UI thread:
// host interaction submitted through Do and every reconciliation run on
// that one goroutine, so the store, the guard and the host are never
// touched concurrently. The pipeline worker is the only other goroutine
// and talks to the loop through tasks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"fieldsync/internal/metrics"
	"fieldsync/internal/pipeline"
	"fieldsync/internal/reconcile"
	"fieldsync/internal/textfield"
)

var (
	// ErrRunning is returned by Run when the session loop is already running.
	ErrRunning = errors.New("session already running")

	// ErrTaskPanicked is returned by Do when the task panicked.
	ErrTaskPanicked = errors.New("session task panicked")
)

// Host is a text widget that can be reconciled and reports its changes.
type Host interface {
	reconcile.Host
	reconcile.Notifier
}

// Options configures a Session.
type Options struct {
	// Pipeline configures the transform stage. A nil Chain selects
	// pipeline.DefaultConfig(); a non-nil empty Chain passes states through.
	Pipeline pipeline.Config
	Logger   *slog.Logger

	// Metrics receives session metrics. A private set is used when nil.
	Metrics *metrics.Session
}

// Stats aggregates the counters of a session and its components.
type Stats struct {
	// UserEdits counts content-changing user edits submitted to the pipeline.
	UserEdits uint64
	// NoopSuppressed counts user edits equal in content to the current state.
	NoopSuppressed uint64
	// FeedbackIgnored counts change notifications caused by reconciliation.
	FeedbackIgnored uint64

	Transformed uint64
	Conflated   uint64
	Depth       int

	Applied uint64
	Stale   uint64
	Failed  uint64
	Panics  uint64
}

// Settled reports whether every submitted state was transformed or
// conflated and every transformed state was reconciled.
func (st Stats) Settled() bool {
	return st.Depth == 0 &&
		st.UserEdits == st.Transformed+st.Conflated &&
		st.Transformed == st.Applied+st.Stale+st.Failed
}

type task struct {
	fn   func()
	done chan error
}

// Session keeps one host field and its asynchronous rewrite coherent.
type Session struct {
	host   Host
	store  *textfield.Store
	guard  *reconcile.Guard
	rec    *reconcile.Reconciler
	pipe   *pipeline.Pipeline
	logger *slog.Logger
	m      *metrics.Session

	tasks   chan task
	running atomic.Bool
	remove  func()

	userEdits atomic.Uint64
	noop      atomic.Uint64
	feedback  atomic.Uint64
	panics    atomic.Uint64
}

// New creates a session for h and subscribes to its change notifications.
// The store starts from textfield.New(), as a freshly created field does.
func New(h Host, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewSession(nil)
	}

	s := &Session{
		host:   h,
		store:  textfield.NewStore(),
		guard:  &reconcile.Guard{},
		logger: logger.With("component", "session"),
		m:      m,
		tasks:  make(chan task),
	}
	s.rec = reconcile.New(s.store, h, s.guard, logger)
	pcfg := opts.Pipeline
	if pcfg.Chain == nil {
		pcfg = pipeline.DefaultConfig()
	}
	s.pipe = pipeline.New(pcfg, s.deliver, logger)
	s.remove = h.OnChange(s.handleTextChanged)
	return s
}

// Run executes the task loop and the pipeline worker until ctx is done or
// the pipeline fails. A transform failure is returned as is.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	pipeErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeErr <- s.pipe.Run(ctx)
	}()

	s.logger.Info("session started",
		"mode", s.pipe.Mode().String(),
		"delay", s.pipe.Delay(),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-pipeErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("pipeline stopped", "error", err)
			return err
		case t := <-s.tasks:
			s.runTask(t)
		}
	}
}

// Do runs fn on the session loop and waits for it to finish. Host input
// must go through Do so that it is ordered with reconciliation.
func (s *Session) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case s.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the adopted state, read on the session loop.
func (s *Session) Current(ctx context.Context) (textfield.State, error) {
	var st textfield.State
	err := s.Do(ctx, func() { st = s.store.Current() })
	return st, err
}

// SetDelay changes the pipeline's quiet period.
func (s *Session) SetDelay(d time.Duration) {
	s.pipe.SetDelay(d)
	s.logger.Info("debounce delay changed", "delay", d)
}

// Stats returns a snapshot of all counters.
func (s *Session) Stats() Stats {
	ps := s.pipe.Stats()
	rs := s.rec.Stats()
	return Stats{
		UserEdits:       s.userEdits.Load(),
		NoopSuppressed:  s.noop.Load(),
		FeedbackIgnored: s.feedback.Load(),
		Transformed:     ps.Transformed,
		Conflated:       ps.Conflated,
		Depth:           ps.Depth,
		Applied:         rs.Applied,
		Stale:           rs.Stale,
		Failed:          rs.Failed,
		Panics:          s.panics.Load(),
	}
}

// Metrics returns the session's metrics.
func (s *Session) Metrics() *metrics.Session {
	return s.m
}

// Close unsubscribes from the host. It does not stop Run.
func (s *Session) Close() {
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
}

// handleTextChanged is the host change listener. Notifications caused by
// the reconciler's own host mutation are dropped before any candidate
// state is built.
func (s *Session) handleTextChanged() {
	if s.guard.Reconciling() {
		s.feedback.Add(1)
		s.m.FeedbackIgnoredTotal.Inc()
		return
	}

	start, end := s.host.Selection()
	candidate := s.store.UserEdit(s.host.Text(), start, end)
	if s.store.Current().ContentEquals(candidate) {
		s.noop.Add(1)
		s.m.NoopEditsTotal.Inc()
		return
	}

	s.store.Adopt(candidate)
	s.userEdits.Add(1)
	s.m.EditsTotal.Inc()
	s.pipe.Submit(candidate)
	s.m.QueueDepth.Set(int64(s.pipe.Depth()))
}

// deliver is the pipeline sink. It hands the result to the loop without
// waiting for the reconciliation.
func (s *Session) deliver(ctx context.Context, st textfield.State) {
	s.m.TransformedTotal.Inc()
	s.m.QueueDepth.Set(int64(s.pipe.Depth()))
	t := task{fn: func() { s.reconcile(st) }}
	select {
	case s.tasks <- t:
	case <-ctx.Done():
	}
}

func (s *Session) reconcile(st textfield.State) {
	start := time.Now()
	applied, err := s.rec.Apply(st)
	s.m.ReconcileSeconds.Since(start)

	switch {
	case err != nil:
		s.m.FailedTotal.Inc()
		s.logger.Error("reconciliation failed", "state", st.String(), "error", err)
	case applied:
		s.m.AppliedTotal.Inc()
		s.logger.Debug("reconciled", "state", st.String())
	default:
		s.m.StaleTotal.Inc()
	}
}

// runTask runs one task. A panic fails the task, is logged with its stack
// and leaves the loop running.
func (s *Session) runTask(t task) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.panics.Add(1)
				s.m.PanicsTotal.Inc()
				s.logger.Error("session task panicked",
					"panic", fmt.Sprint(r),
					"phase", s.guard.Phase().String(),
					"stack", string(debug.Stack()),
				)
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		t.fn()
	}()
	if t.done != nil {
		t.done <- err
	}
}
