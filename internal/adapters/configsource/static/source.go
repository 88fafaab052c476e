// Package static provides a fixed, in-memory configuration source, used by
// embedders that assemble configs in code and by tests.
package static

import (
	"context"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// Source serves a fixed configuration list.
type Source struct {
	configs []domain.InteractionConfig
}

// New builds a source over the given configurations.
func New(configs ...domain.InteractionConfig) *Source {
	return &Source{configs: configs}
}

// Fetch returns the configured list.
func (s *Source) Fetch(ctx context.Context) ([]domain.InteractionConfig, error) {
	out := make([]domain.InteractionConfig, len(s.configs))
	copy(out, s.configs)
	return out, nil
}

// Watch is a no-op; a static source never changes.
func (s *Source) Watch(ctx context.Context, onChange func([]domain.InteractionConfig)) error {
	return nil
}

// Close is a no-op.
func (s *Source) Close() error { return nil }
