// Package multi provides an interaction sink that fans each record out to
// an ordered list of sinks.
package multi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

// Sink delivers each record to every child sink in order. A child failure
// is logged and the remaining children still receive the record.
type Sink struct {
	logger *slog.Logger
	sinks  []ports.InteractionSink
}

var _ ports.InteractionSink = (*Sink)(nil)

// New creates a fan-out sink over the given children.
func New(logger *slog.Logger, sinks ...ports.InteractionSink) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger, sinks: sinks}
}

// Emit delivers the record to every child.
func (s *Sink) Emit(ctx context.Context, interaction *domain.Interaction) error {
	for _, sink := range s.sinks {
		if err := sink.Emit(ctx, interaction); err != nil {
			s.logger.Error("interaction sink failed",
				"interaction_id", interaction.ID, "error", err)
		}
	}
	return nil
}

// Close closes every child, returning the joined errors.
func (s *Sink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
