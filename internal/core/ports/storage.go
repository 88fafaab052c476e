package ports

import (
	"context"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// InteractionStore defines the interface for the interaction archive.
// Implementations: SQLite (default), in-memory.
type InteractionStore interface {
	// SaveInteraction persists a terminal interaction record
	SaveInteraction(ctx context.Context, interaction *domain.Interaction) error

	// GetInteraction retrieves an interaction by its walk id; unknown ids
	// return an error matching domain.ErrNotFound
	GetInteraction(ctx context.Context, id string) (*domain.Interaction, error)

	// ListInteractions lists interactions, newest first, with filtering
	ListInteractions(ctx context.Context, opts ListOptions) ([]*domain.Interaction, error)

	// Close closes the storage connection
	Close() error
}

// ListOptions controls archive queries.
type ListOptions struct {
	// Name filters by interaction (configuration) name when non-empty
	Name string

	// Errored filters by terminal state when non-nil
	Errored *bool

	// SinceNanos excludes interactions completed before this timestamp
	SinceNanos int64

	// Limit caps the result size; implementations default it when zero
	Limit int
}
