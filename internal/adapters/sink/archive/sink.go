// Package archive provides an interaction sink that persists terminal
// records to the interaction store.
package archive

import (
	"context"
	"fmt"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

// Sink writes each terminal interaction to storage.
type Sink struct {
	store ports.InteractionStore
}

var _ ports.InteractionSink = (*Sink)(nil)

// New creates an archiving sink over the given store.
func New(store ports.InteractionStore) (*Sink, error) {
	if store == nil {
		return nil, fmt.Errorf("interaction store required")
	}
	return &Sink{store: store}, nil
}

// Emit persists the record.
func (s *Sink) Emit(ctx context.Context, interaction *domain.Interaction) error {
	if err := s.store.SaveInteraction(ctx, interaction); err != nil {
		return fmt.Errorf("failed to archive interaction: %w", err)
	}
	return nil
}

// Close is a no-op; the store's lifecycle is owned by whoever opened it.
func (s *Sink) Close() error {
	return nil
}
