// Package matcher implements the pure sequence-matching walk at the heart of
// interaction tracking. A walk takes a configuration and the complete pending
// event list, sorted by timestamp, and decides whether the sequence is
// progressing, completed, broken, reset, or unaffected. The walk holds no
// state and performs no I/O; trackers own the pending list and re-run the
// walk whenever a relevant event arrives.
package matcher

import (
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// Outcome discriminates the result of one walk.
type Outcome string

const (
	// OutcomeNoChange means the walk found nothing conclusive; the caller's
	// previous status is retained and the pending list stays as-is.
	OutcomeNoChange Outcome = "no_change"

	// OutcomeProgress means a match is advancing but not yet complete.
	OutcomeProgress Outcome = "progress"

	// OutcomeCompleted means the sequence completed; Interaction carries the
	// successful record and the pending list is consumed.
	OutcomeCompleted Outcome = "completed"

	// OutcomeBroken means an in-progress match was invalidated by a wrong
	// event or a global-blacklist hit; Interaction carries the failed record.
	// Remainder holds the breaking event when it must seed a fresh walk, and
	// is empty for blacklist hits.
	OutcomeBroken Outcome = "broken"

	// OutcomeReset means the event satisfied a blacklisted sequence step; the
	// match is discarded without producing a record.
	OutcomeReset Outcome = "reset"
)

// Input carries the walk context a tracker supplies: the id minted for the
// current walk, marker events to attach to a terminal record, and the
// construction timestamp.
type Input struct {
	InteractionID string
	Markers       []domain.LocalEvent
	NowNanos      int64
}

// Result is the outcome of one walk over the pending event list.
type Result struct {
	Outcome Outcome

	// Index is the sequence position reached by the walk
	Index int

	// Matched holds the step-wise matched events of an in-progress walk;
	// trackers keep it for timeout synthesis
	Matched []domain.LocalEvent

	// Interaction is the terminal record for Completed and Broken outcomes
	Interaction *domain.Interaction

	// Remainder holds the pending events a terminal outcome leaves behind
	Remainder []domain.LocalEvent
}

// Walk evaluates the pending events, in timestamp order, against the
// configuration. The walk restarts from sequence position zero each time;
// matched events stay in the pending list until a terminal outcome consumes
// them, so re-walking reproduces the in-progress state deterministically.
func Walk(cfg domain.InteractionConfig, events []domain.LocalEvent, in Input) Result {
	n := len(cfg.Sequence)
	if n == 0 {
		return Result{Outcome: OutcomeNoChange}
	}

	var (
		idx        int
		matched    []domain.LocalEvent
		inProgress bool
	)

	for pos := 0; pos < len(events); pos++ {
		ev := events[pos]

		// A global-blacklist hit invalidates the match in flight. The
		// blacklisted event is discarded along with everything pending.
		if inProgress && cfg.MatchesBlacklist(ev) {
			return Result{
				Outcome:     OutcomeBroken,
				Index:       idx,
				Interaction: NewFailedInteraction(cfg, matched, in.Markers, in.InteractionID, in.NowNanos),
			}
		}

		// Blacklisted sequence steps are placeholders that skip noise: when
		// the event does not satisfy one, it consumes the step, not the event.
		for idx < n && cfg.Sequence[idx].IsBlacklisted && !cfg.Sequence[idx].Matches(ev) {
			idx++
		}
		if idx >= n {
			// Unreachable for validated configs; a trailing blacklisted step
			// would leave the sequence unsatisfiable.
			return Result{Outcome: OutcomeNoChange}
		}

		spec := cfg.Sequence[idx]
		switch {
		case spec.Matches(ev):
			if spec.IsBlacklisted {
				return Result{Outcome: OutcomeReset}
			}
			matched = append(matched, ev)
			idx++
			inProgress = true
			if idx == n {
				return Result{
					Outcome:     OutcomeCompleted,
					Index:       idx,
					Interaction: NewCompletedInteraction(cfg, matched, in.Markers, in.InteractionID, in.NowNanos),
				}
			}
		case inProgress:
			// Wrong event while matching: the walk dies here and the breaking
			// event seeds the next walk.
			return Result{
				Outcome:     OutcomeBroken,
				Index:       idx,
				Interaction: NewFailedInteraction(cfg, matched, in.Markers, in.InteractionID, in.NowNanos),
				Remainder:   []domain.LocalEvent{ev},
			}
		default:
			// No match in progress; skip until something starts one.
		}
	}

	if inProgress {
		return Result{Outcome: OutcomeProgress, Index: idx, Matched: matched}
	}
	return Result{Outcome: OutcomeNoChange}
}

// InsertByTime inserts ev into events, which is sorted by TimeNanos
// ascending, keeping the sort stable: among equal timestamps, earlier
// arrivals stay first.
func InsertByTime(events []domain.LocalEvent, ev domain.LocalEvent) []domain.LocalEvent {
	pos := len(events)
	for pos > 0 && events[pos-1].TimeNanos > ev.TimeNanos {
		pos--
	}
	events = append(events, domain.LocalEvent{})
	copy(events[pos+1:], events[pos:])
	events[pos] = ev
	return events
}

// NewCompletedInteraction builds the successful record for a fully matched
// sequence, scoring its latency against the configuration's APDEX bands.
func NewCompletedInteraction(cfg domain.InteractionConfig, matched, markers []domain.LocalEvent, id string, nowNanos int64) *domain.Interaction {
	interaction := newInteraction(cfg, matched, markers, id, nowNanos)
	score, category := cfg.ApdexScore(interaction.ElapsedMs())
	interaction.ApdexScore = &score
	interaction.UserCategory = category
	return interaction
}

// NewFailedInteraction builds the errored record for a walk terminated by a
// sequence break, a blacklist hit, or a timeout. Failed records carry no
// score or category.
func NewFailedInteraction(cfg domain.InteractionConfig, matched, markers []domain.LocalEvent, id string, nowNanos int64) *domain.Interaction {
	interaction := newInteraction(cfg, matched, markers, id, nowNanos)
	interaction.IsErrored = true
	return interaction
}

func newInteraction(cfg domain.InteractionConfig, matched, markers []domain.LocalEvent, id string, nowNanos int64) *domain.Interaction {
	interaction := &domain.Interaction{
		ID:                  id,
		Name:                cfg.Name,
		ConfigID:            cfg.ID,
		Events:              append([]domain.LocalEvent(nil), matched...),
		CompletionTimeNanos: nowNanos,
	}
	if len(markers) > 0 {
		interaction.MarkerEvents = append([]domain.LocalEvent(nil), markers...)
	}
	if len(matched) > 0 {
		interaction.FirstEventTimeNanos = matched[0].TimeNanos
		interaction.LastEventTimeNanos = matched[len(matched)-1].TimeNanos
	}
	return interaction
}
