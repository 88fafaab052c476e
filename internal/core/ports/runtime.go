package ports

import (
	"context"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// ConfigSource supplies the set of interaction configurations.
// Implementations: static list (default), YAML file, remote HTTP API.
type ConfigSource interface {
	// Fetch returns the current configuration set. The coordinator calls it
	// once at start; there is no retry on failure.
	Fetch(ctx context.Context) ([]domain.InteractionConfig, error)

	// Watch registers a callback invoked with the full new configuration set
	// whenever the source detects a change. Sources without change detection
	// return nil without ever invoking the callback.
	Watch(ctx context.Context, onChange func([]domain.InteractionConfig)) error

	Close() error
}

// InteractionSink consumes terminal interaction records.
// Implementations: structured log (default), OTel spans, persistent store,
// fan-out over several sinks.
type InteractionSink interface {
	Emit(ctx context.Context, interaction *domain.Interaction) error
	Close() error
}

// StatusReader exposes the live status snapshot to read-only consumers.
type StatusReader interface {
	CurrentStates() domain.StatusSnapshot
}
