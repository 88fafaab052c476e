// Package runtime provides the core Engine struct and lifecycle management
// for the interaction tracking engine. Engine can be embedded in larger
// applications or run standalone behind the bundled HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/sink/archive"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/sink/logger"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/sink/multi"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/auth"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/coordinator"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/server"
)

// Engine ties the tracking core to its adapters: a configuration source,
// terminal-interaction sinks, an optional archive store, and an optional
// HTTP server. A configuration change tears down the tracker fleet and
// rebuilds it from a fresh fetch; events keep flowing throughout.
type Engine struct {
	// Dependencies (injected via options)
	source ports.ConfigSource
	sink   ports.InteractionSink
	store  ports.InteractionStore

	logger        *slog.Logger
	clock         func() time.Time
	sinkSet       bool
	serverEnabled bool
	serverPort    int
	serverTimeout time.Duration
	authenticator *auth.Authenticator

	srv *server.Server

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	coord   *coordinator.Coordinator
	started bool
	closed  bool

	subMu       sync.Mutex
	subscribers []func(domain.StatusSnapshot)
}

// New creates an Engine with the given options. A configuration source is
// required; everything else has a default: terminal interactions go to the
// structured log, there is no archive, and no HTTP server is started.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:        slog.Default(),
		serverTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if e.source == nil {
		return nil, fmt.Errorf("config source required (use WithConfigs, WithFileSource or WithRemoteSource)")
	}

	if !e.sinkSet {
		e.logger.Info("no interaction sink specified, using log sink")
		e.sink = logger.New(e.logger)
	}

	// Archiving is an additional sink on top of whatever was configured.
	if e.store != nil {
		archiveSink, err := archive.New(e.store)
		if err != nil {
			return nil, fmt.Errorf("create archive sink: %w", err)
		}
		if e.sink != nil {
			e.sink = multi.New(e.logger, e.sink, archiveSink)
		} else {
			e.sink = archiveSink
		}
	}

	return e, nil
}

// Start fetches configurations, builds the tracker fleet, begins watching
// the source for changes, and starts the HTTP server when one is enabled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(context.Background())

	coord := e.newCoordinator()
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	e.coord = coord

	if e.serverEnabled {
		e.srv = server.New(server.Options{
			Port:    e.serverPort,
			Timeout: e.serverTimeout,
			Tracker: e,
			Store:   e.store,
			Auth:    e.authenticator,
			Logger:  e.logger,
			Clock:   e.clock,
		})
		go func() {
			if err := e.srv.Start(); err != nil {
				e.logger.Error("server error", slog.String("error", err.Error()))
			}
		}()
	}

	// Sources without change detection return immediately and never call
	// back; a watch failure costs hot reload, not tracking.
	if err := e.source.Watch(e.ctx, e.onConfigChange); err != nil {
		e.logger.Warn("config watching unavailable", slog.String("error", err.Error()))
	}

	e.logger.Info("engine started",
		slog.Bool("server", e.serverEnabled),
		slog.Bool("archive", e.store != nil))
	return nil
}

// Shutdown stops the HTTP server, drains the tracker fleet, and closes the
// sink, store, and source. Pending terminal interactions are forwarded
// before the sink closes.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.closed {
		return nil
	}
	e.closed = true

	e.logger.Info("shutting down engine")

	if e.cancel != nil {
		e.cancel()
	}

	var errs []error

	if e.srv != nil {
		if err := e.srv.Shutdown(ctx); err != nil {
			e.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if e.coord != nil {
		e.coord.Close()
	}

	if e.sink != nil {
		if err := e.sink.Close(); err != nil {
			e.logger.Error("failed to close sink", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("failed to close store", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := e.source.Close(); err != nil {
		e.logger.Error("failed to close config source", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	e.logger.Info("engine shutdown complete")
	return errors.Join(errs...)
}

// TrackEvent hands an application event to every tracker. Non-blocking;
// safe from any goroutine.
func (e *Engine) TrackEvent(ev domain.LocalEvent) {
	e.mu.RLock()
	coord := e.coord
	e.mu.RUnlock()
	if coord != nil {
		coord.AddEvent(ev)
	}
}

// TrackMarker attaches a contextual event to ongoing matches without
// advancing or breaking them.
func (e *Engine) TrackMarker(ev domain.LocalEvent) {
	e.mu.RLock()
	coord := e.coord
	e.mu.RUnlock()
	if coord != nil {
		coord.AddMarker(ev)
	}
}

// CurrentStates returns the live status snapshot, one entry per tracked
// configuration.
func (e *Engine) CurrentStates() domain.StatusSnapshot {
	e.mu.RLock()
	coord := e.coord
	e.mu.RUnlock()
	if coord == nil {
		return domain.StatusSnapshot{}
	}
	return coord.CurrentStates()
}

// Subscribe registers a callback for deduplicated status snapshots. The
// subscription survives configuration reloads.
func (e *Engine) Subscribe(fn func(domain.StatusSnapshot)) {
	e.subMu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.subMu.Unlock()
}

func (e *Engine) newCoordinator() *coordinator.Coordinator {
	coord := coordinator.New(coordinator.Options{
		Source: e.source,
		Sink:   e.sink,
		Logger: e.logger,
		Clock:  e.clock,
	})
	coord.Subscribe(e.fanout)
	return coord
}

func (e *Engine) fanout(snap domain.StatusSnapshot) {
	e.subMu.Lock()
	subs := make([]func(domain.StatusSnapshot), len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// onConfigChange replaces the tracker fleet. The new coordinator re-fetches
// from the source, so it starts from the set that triggered the change or
// newer. If it fails to start, the previous fleet keeps running.
func (e *Engine) onConfigChange(configs []domain.InteractionConfig) {
	e.logger.Info("configuration changed, restarting trackers",
		slog.Int("configs", len(configs)))

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	coord := e.newCoordinator()
	if err := coord.Start(e.ctx); err != nil {
		e.logger.Error("failed to restart trackers, keeping previous fleet",
			slog.String("error", err.Error()))
		return
	}

	// The fresh fetch can trail the change notification. If the source
	// reported configurations but none produced a tracker, the previous
	// fleet is better than an empty one.
	if len(configs) > 0 && len(coord.CurrentStates()) == 0 {
		e.logger.Error("new configuration produced no trackers, keeping previous fleet")
		coord.Close()
		return
	}

	old := e.coord
	e.coord = coord
	if old != nil {
		old.Close()
	}
}
