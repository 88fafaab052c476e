// Package coordinator assembles the tracking core for one configuration
// generation: it fetches configurations once, builds a tracker per valid
// configuration behind the dispatcher, aggregates tracker statuses into a
// copy-on-write snapshot, and forwards each terminal interaction to the
// configured sink exactly once.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/dispatch"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/tracker"
)

// Options configures a Coordinator.
type Options struct {
	// Source supplies the configuration set; required
	Source ports.ConfigSource

	// Sink receives terminal interactions; optional
	Sink ports.InteractionSink

	Logger *slog.Logger

	// Clock and NewID are passed through to trackers
	Clock func() time.Time
	NewID func() string

	// AfterFunc is passed through to trackers for timeout scheduling
	AfterFunc func(time.Duration, func()) *time.Timer
}

// Coordinator owns the tracker set and the aggregated status snapshot.
type Coordinator struct {
	logger *slog.Logger
	source ports.ConfigSource
	sink   ports.InteractionSink

	clock     func() time.Time
	newID     func() string
	afterFunc func(time.Duration, func()) *time.Timer

	dispatcher *dispatch.Dispatcher
	trackers   []*tracker.Tracker

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool

	// recomputeMu serializes snapshot recomputation and subscriber
	// notification so the deduped stream stays ordered.
	recomputeMu sync.Mutex

	snapMu   sync.RWMutex
	snapshot domain.StatusSnapshot

	subMu       sync.Mutex
	subscribers []func(domain.StatusSnapshot)
}

// New builds an idle coordinator. Events may be added right away; until
// Start has built trackers they are delivered to no one.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		logger:    opts.Logger,
		source:    opts.Source,
		sink:      opts.Sink,
		clock:     opts.Clock,
		newID:     opts.NewID,
		afterFunc: opts.AfterFunc,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.dispatcher = dispatch.New(c.logger)
	return c
}

// Start fetches the configuration set once and builds the tracker fleet. A
// fetch failure or an empty set is not an error: the coordinator logs it and
// stays a no-op pass-through. Invalid configurations are skipped
// individually.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("coordinator already started")
	}
	if c.source == nil {
		return fmt.Errorf("coordinator requires a config source")
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.Background())

	configs, err := c.source.Fetch(ctx)
	if err != nil {
		c.logger.Warn("config fetch failed, interaction tracking disabled",
			"error", fmt.Errorf("%w: %w", domain.ErrConfigFetch, err))
		return nil
	}
	if len(configs) == 0 {
		c.logger.Warn("config source returned no configurations, interaction tracking disabled")
		return nil
	}

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			c.logger.Warn("skipping invalid interaction config",
				"config_id", cfg.ID,
				"interaction", cfg.Name,
				"error", err)
			continue
		}
		lane := c.dispatcher.NewLane()
		tr, err := tracker.New(cfg, tracker.Options{
			Logger:     c.logger,
			Clock:      c.clock,
			NewID:      c.newID,
			AfterFunc:  c.afterFunc,
			Schedule:   func(fn func()) { lane.Post(fn) },
			OnStatus:   func(domain.RunningStatus) { c.recompute() },
			OnTerminal: c.forward,
		})
		if err != nil {
			lane.Close()
			continue
		}
		c.trackers = append(c.trackers, tr)
		c.dispatcher.Bind(lane, tr)
	}

	snap := make(domain.StatusSnapshot, len(c.trackers))
	for i, tr := range c.trackers {
		snap[i] = tr.Status()
	}
	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	c.logger.Info("interaction tracking started",
		"configured", len(configs),
		"trackers", len(c.trackers))
	return nil
}

// AddEvent hands an application event to every tracker. Non-blocking; safe
// from any goroutine.
func (c *Coordinator) AddEvent(ev domain.LocalEvent) {
	c.dispatcher.Publish(ev)
}

// AddMarker hands a marker event to every tracker. Non-blocking; safe from
// any goroutine.
func (c *Coordinator) AddMarker(ev domain.LocalEvent) {
	c.dispatcher.PublishMarker(ev)
}

// CurrentStates returns the latest status snapshot. The returned slice is
// immutable; callers must not modify it.
func (c *Coordinator) CurrentStates() domain.StatusSnapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

// Subscribe registers a callback for deduplicated snapshot changes.
// Callbacks run serially on tracker lanes and must not block for long.
func (c *Coordinator) Subscribe(fn func(domain.StatusSnapshot)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Close tears tracking down: the dispatcher drains whatever was enqueued,
// then every tracker's timer is cancelled. In-flight matches are discarded
// without producing a terminal record.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.dispatcher.Close()
	for _, tr := range c.trackers {
		tr.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

// recompute rebuilds the snapshot from every tracker's current status and
// notifies subscribers when it changed by value.
func (c *Coordinator) recompute() {
	c.recomputeMu.Lock()
	defer c.recomputeMu.Unlock()

	snap := make(domain.StatusSnapshot, len(c.trackers))
	for i, tr := range c.trackers {
		snap[i] = tr.Status()
	}

	c.snapMu.RLock()
	prev := c.snapshot
	c.snapMu.RUnlock()
	if snap.Equal(prev) {
		return
	}

	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	c.subMu.Lock()
	subs := make([]func(domain.StatusSnapshot), len(c.subscribers))
	copy(subs, c.subscribers)
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// forward hands a terminal interaction to the sink. Each record passes
// through exactly once.
func (c *Coordinator) forward(interaction *domain.Interaction) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Emit(c.ctx, interaction); err != nil {
		c.logger.Error("emitting interaction failed",
			"interaction_id", interaction.ID,
			"interaction", interaction.Name,
			"error", err)
	}
}
