package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/goliatone/go-restaurant-sync/remote"
)

// DefaultMaxAttempts is the number of rejected replays after which an entry is marked failed.
const DefaultMaxAttempts = 5

// ErrSkipped is returned by a Queue when an entry from the drain's snapshot is no longer
// queued in that form: it was delivered, superseded or is being delivered by another caller.
var ErrSkipped = errors.New("connectivity: mutation no longer pending")

// State is the connectivity state.
type State int

// Connectivity states.
const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Event is a signal produced by the host runtime.
type Event int

// Host runtime events.
const (
	EventOnline Event = iota + 1
	EventOffline
	EventBackgroundSync
)

func (e Event) String() string {
	switch e {
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	case EventBackgroundSync:
		return "background-sync"
	default:
		return "unknown"
	}
}

// Status is the shared connectivity signal. The write engine reads it to choose between
// write-through and queue-behind; the Coordinator is the only writer.
type Status struct {
	online atomic.Bool
}

// NewStatus returns a Status starting in the given state.
func NewStatus(online bool) *Status {
	s := &Status{}
	s.online.Store(online)
	return s
}

// Online reports whether the last signal was online.
func (s *Status) Online() bool {
	return s.online.Load()
}

func (s *Status) swap(online bool) bool {
	return s.online.Swap(online)
}

// Queue is the replay surface of the write engine. Replay and RecordFailure return an error
// wrapping ErrSkipped for entries that changed after Pending returned them.
type Queue interface {
	Pending(ctx context.Context) ([]model.PendingMutation, error)
	Replay(ctx context.Context, m model.PendingMutation) error
	RecordFailure(ctx context.Context, m model.PendingMutation, cause error, maxAttempts int) (model.PendingMutation, error)
}

// Report summarizes one drain.
type Report struct {
	// Replayed counts mutations confirmed by the remote service and removed from the queue.
	Replayed int
	// Failed counts mutations that reached the attempt limit during this drain.
	Failed int
	// Remaining counts mutations still pending when the drain ended.
	Remaining int
	// Skipped counts entries already handled elsewhere by the time the drain reached them.
	Skipped int
	// Interrupted is the transport or server error that stopped the drain early, if any.
	Interrupted error
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxAttempts sets the attempt limit for rejected replays. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Coordinator tracks connectivity and drains the pending queue when it returns.
type Coordinator struct {
	status      *Status
	queue       Queue
	logger      *slog.Logger
	maxAttempts int

	mu        sync.Mutex
	listeners []func(from, to State)

	drainMu sync.Mutex
}

// New creates a Coordinator that writes transitions to status and replays through queue.
func New(status *Status, queue Queue, opts ...Option) *Coordinator {
	if status == nil {
		status = NewStatus(true)
	}
	c := &Coordinator{
		status:      status,
		queue:       queue,
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the signal shared with the write engine.
func (c *Coordinator) Status() *Status {
	return c.status
}

// State returns the current state.
func (c *Coordinator) State() State {
	if c.status.Online() {
		return Online
	}
	return Offline
}

// Online reports whether the current state is Online.
func (c *Coordinator) Online() bool {
	return c.status.Online()
}

// OnTransition registers fn to be called after every state change.
func (c *Coordinator) OnTransition(fn func(from, to State)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetOnline records a connectivity signal. The Offline to Online transition drains the
// queue and returns its report; every other transition only records the state.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) (Report, error) {
	from, to, changed := c.transition(online)
	if !changed {
		return Report{}, nil
	}

	c.logger.Info("connectivity changed", "from", from, "to", to)
	if to != Online {
		return Report{}, nil
	}
	return c.drain(ctx)
}

// BackgroundSync handles a one-off background replay trigger. It has the same effect as an
// online transition: the state becomes Online and the queue is drained.
func (c *Coordinator) BackgroundSync(ctx context.Context) (Report, error) {
	if from, to, changed := c.transition(true); changed {
		c.logger.Info("connectivity changed", "from", from, "to", to, "trigger", EventBackgroundSync)
	}
	return c.drain(ctx)
}

// Watch consumes host runtime events until ctx is done or events is closed. Drain errors
// are logged and do not stop the loop.
func (c *Coordinator) Watch(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev Event) {
	var (
		report Report
		err    error
	)
	switch ev {
	case EventOnline:
		report, err = c.SetOnline(ctx, true)
	case EventOffline:
		_, err = c.SetOnline(ctx, false)
	case EventBackgroundSync:
		report, err = c.BackgroundSync(ctx)
	default:
		c.logger.Debug("ignoring unknown connectivity event", "event", int(ev))
		return
	}

	if err != nil {
		c.logger.Error("replay drain failed", "event", ev, "error", err)
		return
	}
	if report.Replayed > 0 || report.Failed > 0 || report.Interrupted != nil {
		c.logger.Info("replay drain finished",
			"event", ev,
			"replayed", report.Replayed,
			"failed", report.Failed,
			"remaining", report.Remaining,
			"skipped", report.Skipped,
		)
	}
}

func (c *Coordinator) transition(online bool) (from, to State, changed bool) {
	was := c.status.swap(online)
	from, to = stateOf(was), stateOf(online)
	if was == online {
		return from, to, false
	}

	c.mu.Lock()
	listeners := append([]func(from, to State){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return from, to, true
}

func stateOf(online bool) State {
	if online {
		return Online
	}
	return Offline
}

// drain replays pending mutations in insertion order, one at a time. A retryable error
// stops the drain and leaves the rest queued in order; any other rejection counts against
// the entry's attempt limit and the drain moves on.
func (c *Coordinator) drain(ctx context.Context) (Report, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	pending, err := c.queue.Pending(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for i, m := range pending {
		if err := ctx.Err(); err != nil {
			report.Remaining += len(pending) - i
			return report, err
		}

		err := c.queue.Replay(ctx, m)
		if err == nil {
			report.Replayed++
			c.logger.Debug("mutation replayed", "kind", m.Kind, "hash", m.Hash, "seq", m.Seq)
			continue
		}
		if errors.Is(err, ErrSkipped) {
			report.Skipped++
			c.logger.Debug("mutation skipped", "kind", m.Kind, "hash", m.Hash, "reason", err)
			continue
		}

		if remote.IsRetryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Interrupted = err
			report.Remaining += len(pending) - i
			c.logger.Warn("replay drain interrupted", "hash", m.Hash, "remaining", report.Remaining, "error", err)
			return report, nil
		}

		updated, ferr := c.queue.RecordFailure(ctx, m, err, c.maxAttempts)
		if errors.Is(ferr, ErrSkipped) {
			report.Skipped++
			continue
		}
		if ferr != nil {
			return report, errors.Join(err, ferr)
		}
		if updated.Status == model.StatusFailed {
			report.Failed++
		} else {
			report.Remaining++
		}
	}
	return report, nil
}
