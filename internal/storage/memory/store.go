// Package memory provides an in-memory interaction archive, used when no
// database is configured and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

const defaultListLimit = 100

// Store is an in-memory implementation of the interaction archive.
type Store struct {
	mu           sync.RWMutex
	interactions map[string]*domain.Interaction
}

var _ ports.InteractionStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		interactions: make(map[string]*domain.Interaction),
	}
}

// SaveInteraction stores one terminal record, overwriting any previous
// record with the same walk id.
func (s *Store) SaveInteraction(ctx context.Context, interaction *domain.Interaction) error {
	if interaction == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interactions[interaction.ID] = interaction
	return nil
}

// GetInteraction retrieves one record by walk id.
func (s *Store) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interaction, exists := s.interactions[id]
	if !exists {
		return nil, fmt.Errorf("interaction %s: %w", id, domain.ErrNotFound)
	}

	return interaction, nil
}

// ListInteractions returns records newest first, filtered per opts.
func (s *Store) ListInteractions(ctx context.Context, opts ports.ListOptions) ([]*domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Interaction
	for _, interaction := range s.interactions {
		if opts.Name != "" && interaction.Name != opts.Name {
			continue
		}
		if opts.Errored != nil && interaction.IsErrored != *opts.Errored {
			continue
		}
		if opts.SinceNanos > 0 && interaction.CompletionTimeNanos < opts.SinceNanos {
			continue
		}
		result = append(result, interaction)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CompletionTimeNanos > result[j].CompletionTimeNanos
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
