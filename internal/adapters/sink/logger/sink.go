// Package logger provides the default interaction sink: terminal records
// are written to the structured log and nowhere else.
package logger

import (
	"context"
	"log/slog"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

// Sink logs each terminal interaction.
type Sink struct {
	logger *slog.Logger
}

var _ ports.InteractionSink = (*Sink)(nil)

// New creates a logging sink. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

// Emit writes one log line per record: Info for completions, Warn for
// broken or timed-out interactions.
func (s *Sink) Emit(ctx context.Context, interaction *domain.Interaction) error {
	if interaction == nil {
		return nil
	}

	attrs := []any{
		"interaction_id", interaction.ID,
		"name", interaction.Name,
		"config_id", interaction.ConfigID,
		"elapsed_ms", interaction.ElapsedMs(),
		"events", len(interaction.Events),
	}
	if interaction.ApdexScore != nil {
		attrs = append(attrs,
			"apdex_score", *interaction.ApdexScore,
			"user_category", string(interaction.UserCategory))
	}
	if len(interaction.MarkerEvents) > 0 {
		attrs = append(attrs, "markers", len(interaction.MarkerEvents))
	}

	if interaction.IsErrored {
		s.logger.WarnContext(ctx, "interaction failed", attrs...)
	} else {
		s.logger.InfoContext(ctx, "interaction completed", attrs...)
	}
	return nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}
