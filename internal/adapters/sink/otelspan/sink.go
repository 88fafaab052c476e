// Package otelspan provides an interaction sink that renders each terminal
// record as an OpenTelemetry span covering the interaction's event window.
package otelspan

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

const tracerName = "pulse-interaction-engine/interaction"

// Sink converts terminal interactions into spans.
type Sink struct {
	tracer trace.Tracer
}

var _ ports.InteractionSink = (*Sink)(nil)

// Options configures the sink.
type Options struct {
	// TracerProvider overrides the global provider. Optional.
	TracerProvider trace.TracerProvider
}

// New creates a span sink against the given provider, or the global one.
func New(opts Options) *Sink {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Sink{tracer: tp.Tracer(tracerName)}
}

// Emit records one span named after the interaction. The span start and end
// are back-dated to the first and last matched event, every matched event
// and marker becomes a span event, and broken or timed-out interactions
// carry an error status.
func (s *Sink) Emit(ctx context.Context, interaction *domain.Interaction) error {
	if interaction == nil {
		return nil
	}

	start := interaction.StartTime()
	end := interaction.EndTime()
	if interaction.FirstEventTimeNanos == 0 {
		// A record with no matched events still gets a zero-width span.
		start = time.Unix(0, interaction.CompletionTimeNanos)
		end = start
	}

	attrs := []attribute.KeyValue{
		attribute.String("pulse.interaction.id", interaction.ID),
		attribute.String("pulse.interaction.name", interaction.Name),
		attribute.Int64("pulse.interaction.config_id", interaction.ConfigID),
		attribute.Int64("pulse.interaction.elapsed_ms", interaction.ElapsedMs()),
		attribute.Bool("pulse.interaction.errored", interaction.IsErrored),
	}
	if interaction.ApdexScore != nil {
		attrs = append(attrs,
			attribute.Float64("pulse.interaction.apdex_score", *interaction.ApdexScore),
			attribute.String("pulse.interaction.user_category", string(interaction.UserCategory)))
	}

	_, span := s.tracer.Start(ctx, interaction.Name,
		trace.WithTimestamp(start),
		trace.WithAttributes(attrs...))

	for _, event := range interaction.Events {
		span.AddEvent(event.Name, trace.WithTimestamp(event.Time()),
			trace.WithAttributes(propAttrs(event)...))
	}
	for _, marker := range interaction.MarkerEvents {
		markerAttrs := append(propAttrs(marker), attribute.Bool("pulse.marker", true))
		span.AddEvent(marker.Name, trace.WithTimestamp(marker.Time()),
			trace.WithAttributes(markerAttrs...))
	}

	if interaction.IsErrored {
		span.SetStatus(codes.Error, "interaction broken or timed out")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(end))
	return nil
}

func propAttrs(event domain.LocalEvent) []attribute.KeyValue {
	if len(event.Props) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(event.Props))
	for k, v := range event.Props {
		attrs = append(attrs, attribute.String("pulse.event.props."+k, v))
	}
	return attrs
}

// Close is a no-op; provider shutdown flushes spans.
func (s *Sink) Close() error {
	return nil
}
