// Package pipeline runs the asynchronous, debounced transform stage.
//
// States submitted by the session enter an unbounded FIFO. A single worker
// dequeues them in order, waits the debounce delay, applies the transform
// chain and hands the result to the sink. Submit never blocks, so a burst
// of edits faster than the delay grows the queue without bound; results
// for superseded inputs are still produced and it is the reconciler's
// staleness check that discards them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fieldsync/internal/textfield"
	"fieldsync/internal/transform"
)

// DefaultDelay is the quiet period applied to each item.
const DefaultDelay = 50 * time.Millisecond

// Sink receives transformed states, in submission order.
type Sink func(ctx context.Context, s textfield.State)

// Config configures a Pipeline.
type Config struct {
	// Delay is the quiet period waited before transforming each item.
	Delay time.Duration

	// Mode selects per-item delays or latest-only conflation.
	Mode Mode

	// Chain is applied to every item that survives the delay.
	Chain transform.Chain

	// BacklogWarn logs a warning when the queue depth reaches this value.
	// Zero disables the warning.
	BacklogWarn int
}

// DefaultConfig returns the shipped configuration: 50ms per-item delay
// and the uppercase transform.
func DefaultConfig() Config {
	return Config{
		Delay: DefaultDelay,
		Mode:  ModePerItem,
		Chain: transform.Chain{transform.Uppercase},
	}
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Submitted   uint64
	Transformed uint64
	Conflated   uint64
	Depth       int
}

// Pipeline is the debounced transform stage. Submit and Depth are safe for
// concurrent use; Run must be called once.
type Pipeline struct {
	mode        Mode
	chain       transform.Chain
	sink        Sink
	backlogWarn int
	logger      *slog.Logger

	delay atomic.Int64

	mu      sync.Mutex
	queue   []textfield.State
	warned  bool
	pending chan struct{}

	submitted   atomic.Uint64
	transformed atomic.Uint64
	conflated   atomic.Uint64
}

// New creates a pipeline that delivers results to sink.
func New(cfg Config, sink Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		mode:        cfg.Mode,
		chain:       cfg.Chain,
		sink:        sink,
		backlogWarn: cfg.BacklogWarn,
		logger:      logger.With("component", "pipeline"),
		pending:     make(chan struct{}, 1),
	}
	p.delay.Store(int64(max(cfg.Delay, 0)))
	return p
}

// Submit enqueues a state. It never blocks.
func (p *Pipeline) Submit(s textfield.State) {
	p.mu.Lock()
	switch p.mode {
	case ModeLatest:
		if len(p.queue) > 0 {
			p.conflated.Add(uint64(len(p.queue)))
		}
		p.queue = append(p.queue[:0], s)
	default:
		p.queue = append(p.queue, s)
	}
	depth := len(p.queue)
	warn := p.backlogWarn > 0 && depth >= p.backlogWarn && !p.warned
	if warn {
		p.warned = true
	}
	p.mu.Unlock()

	p.submitted.Add(1)
	if warn {
		p.logger.Warn("pipeline backlog growing", "depth", depth, "threshold", p.backlogWarn)
	}

	select {
	case p.pending <- struct{}{}:
	default:
	}
}

// SetDelay changes the quiet period for items dequeued from now on.
func (p *Pipeline) SetDelay(d time.Duration) {
	p.delay.Store(int64(max(d, 0)))
}

// Delay returns the current quiet period.
func (p *Pipeline) Delay() time.Duration {
	return time.Duration(p.delay.Load())
}

// Mode returns the debounce mode.
func (p *Pipeline) Mode() Mode {
	return p.mode
}

// Depth returns the number of queued items not yet dequeued.
func (p *Pipeline) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted:   p.submitted.Load(),
		Transformed: p.transformed.Load(),
		Conflated:   p.conflated.Load(),
		Depth:       p.Depth(),
	}
}

// Run processes the queue until ctx is done or a transform fails. A
// failing transform stops the pipeline; its error is returned wrapped.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Debug("pipeline started",
		"mode", p.mode.String(),
		"delay", p.Delay(),
		"chain", p.chain.Names(),
	)

	for {
		item, err := p.next(ctx)
		if err != nil {
			return err
		}

		if p.mode == ModeLatest {
			item, err = p.waitLatest(ctx, item)
		} else {
			err = p.wait(ctx)
		}
		if err != nil {
			return err
		}

		out, err := p.chain.Apply(item)
		if err != nil {
			p.logger.Error("transform chain failed",
				"user_edit_count", item.UserEditCount,
				"error", err,
			)
			return fmt.Errorf("pipeline: %w", err)
		}
		p.transformed.Add(1)

		p.sink(ctx, out)
	}
}

// next blocks until an item is available and dequeues it.
func (p *Pipeline) next(ctx context.Context) (textfield.State, error) {
	for {
		if item, ok := p.dequeue(); ok {
			return item, nil
		}

		select {
		case <-ctx.Done():
			return textfield.State{}, ctx.Err()
		case <-p.pending:
		}
	}
}

// dequeue pops the head of the queue, if any.
func (p *Pipeline) dequeue() (textfield.State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return textfield.State{}, false
	}
	item := p.queue[0]
	p.queue[0] = textfield.State{}
	p.queue = p.queue[1:]
	if p.warned && len(p.queue) < p.backlogWarn {
		p.warned = false
	}
	return item, true
}

// waitLatest suspends for the current delay, restarting it whenever a
// newer state arrives. It returns the state that survived a full quiet
// period.
func (p *Pipeline) waitLatest(ctx context.Context, item textfield.State) (textfield.State, error) {
	timer := time.NewTimer(max(p.Delay(), 0))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return item, ctx.Err()
		case <-timer.C:
			return item, nil
		case <-p.pending:
			newer, ok := p.dequeue()
			if !ok {
				continue
			}
			p.conflated.Add(1)
			p.logger.Debug("conflated superseded state", "user_edit_count", item.UserEditCount)
			item = newer
			timer.Reset(max(p.Delay(), 0))
		}
	}
}

// wait suspends for the current delay.
func (p *Pipeline) wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
