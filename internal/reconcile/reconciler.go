// Package reconcile pushes transformed states back into the host widget.
//
// The Reconciler rejects results whose edit generation has been superseded,
// holds the Guard while it mutates the host so that the change handler can
// drop the notifications it causes, and carries the host's composing region
// across the full-text replacement.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"fieldsync/internal/textfield"
)

// Stats is a snapshot of reconciler counters.
type Stats struct {
	Applied uint64
	Stale   uint64
	Failed  uint64
}

// Reconciler applies transformed states to a Host.
//
// Apply must be called from the goroutine that owns the store and host.
type Reconciler struct {
	store  *textfield.Store
	host   Host
	guard  *Guard
	logger *slog.Logger

	applied atomic.Uint64
	stale   atomic.Uint64
	failed  atomic.Uint64
}

// New creates a reconciler writing into host and adopting into store.
// The guard is shared with the change handler.
func New(store *textfield.Store, host Host, guard *Guard, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if guard == nil {
		guard = &Guard{}
	}
	return &Reconciler{
		store:  store,
		host:   host,
		guard:  guard,
		logger: logger.With("component", "reconciler"),
	}
}

// Guard returns the guard held during host mutation.
func (r *Reconciler) Guard() *Guard {
	return r.guard
}

// Apply reconciles the host with incoming. It returns false without error
// when incoming belongs to an edit generation older than the current
// state. The current state is adopted only after the host mutation
// succeeded. A failure after ReplaceAll leaves the host ahead of the
// store until the next user edit, which is built from the host and
// resynchronizes both.
func (r *Reconciler) Apply(incoming textfield.State) (bool, error) {
	current := r.store.Current()
	if incoming.UserEditCount < current.UserEditCount {
		r.stale.Add(1)
		r.logger.Debug("discarding stale result",
			"result_count", incoming.UserEditCount,
			"current_count", current.UserEditCount,
		)
		return false, nil
	}

	release := r.guard.Enter("reconcile.Apply")
	defer release()

	if err := r.replace(incoming); err != nil {
		r.failed.Add(1)
		return false, fmt.Errorf("reconcile %s: %w", incoming, err)
	}

	r.store.Adopt(incoming)
	r.applied.Add(1)
	return true, nil
}

// replace swaps the host text for incoming.Text, re-marks the composing
// region at the same offsets and restores the selection.
func (r *Reconciler) replace(incoming textfield.State) error {
	if err := incoming.Validate(); err != nil {
		return err
	}

	region := r.host.ComposingRegion()
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logger.Debug("span before", "span", FormatComposing(r.host.Text(), region))
	}

	r.host.ReplaceAll(incoming.Text)

	if region.Present() {
		runes := []rune(incoming.Text)
		region = region.Clamp(len(runes))
		if err := r.host.SetComposingRegion(region.Start, region.End); err != nil {
			return fmt.Errorf("set composing region [%d,%d): %w", region.Start, region.End, err)
		}
		if err := r.host.MarkComposingText(string(runes[region.Start:region.End]), region.End); err != nil {
			return fmt.Errorf("mark composing text: %w", err)
		}
	}

	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logger.Debug("span after", "span", FormatComposing(r.host.Text(), r.host.ComposingRegion()))
	}

	if err := r.host.SetSelection(incoming.SelectionStart, incoming.SelectionEnd); err != nil {
		return fmt.Errorf("set selection [%d,%d]: %w", incoming.SelectionStart, incoming.SelectionEnd, err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (r *Reconciler) Stats() Stats {
	return Stats{
		Applied: r.applied.Load(),
		Stale:   r.stale.Load(),
		Failed:  r.failed.Load(),
	}
}
