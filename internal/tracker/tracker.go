// Package tracker owns the per-configuration match state machine: the sorted
// pending-event list, the walk id, the timeout timer, and marker attachment.
// A tracker is not internally synchronized for event delivery; the dispatcher
// guarantees that HandleEvent, HandleMarker, Stop, and scheduled timeout
// callbacks never run concurrently for one tracker. Status is safe to read
// from any goroutine.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/matcher"
)

// timeoutSlack pads the configured timeout so a completion landing in the
// same millisecond as the deadline does not race the timer.
const timeoutSlack = 10 * time.Millisecond

// Options configures a Tracker. Zero-value fields get sane defaults except
// Schedule, which defaults to invoking callbacks inline; callers that run
// trackers behind a serialized executor must route timer callbacks through
// the same executor.
type Options struct {
	Logger *slog.Logger

	// Clock stamps terminal records; defaults to time.Now
	Clock func() time.Time

	// NewID mints walk ids; defaults to "int_" + uuid
	NewID func() string

	// Schedule posts timer callbacks onto the tracker's serialized lane
	Schedule func(func())

	// AfterFunc schedules the timeout timer; defaults to time.AfterFunc
	AfterFunc func(time.Duration, func()) *time.Timer

	// OnStatus observes every status transition, called on the tracker's lane
	OnStatus func(domain.RunningStatus)

	// OnTerminal receives each terminal record exactly once
	OnTerminal func(*domain.Interaction)
}

// Tracker advances one configuration's sequence as relevant events arrive.
type Tracker struct {
	cfg    domain.InteractionConfig
	logger *slog.Logger

	clock     func() time.Time
	newID     func() string
	schedule  func(func())
	afterFunc func(time.Duration, func()) *time.Timer

	onStatus   func(domain.RunningStatus)
	onTerminal func(*domain.Interaction)

	// lane-owned state
	pending    []domain.LocalEvent
	matched    []domain.LocalEvent
	markers    []domain.LocalEvent
	inProgress bool
	currentID  string
	lastIndex  int
	stopped    bool

	timer    *time.Timer
	timerGen uint64

	statusMu sync.RWMutex
	status   domain.RunningStatus
}

// New validates the configuration and builds its tracker. Invalid
// configurations fail with an error matching domain.ErrInvalidConfig and no
// tracker is created.
func New(cfg domain.InteractionConfig, opts Options) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("building tracker: %w", err)
	}

	t := &Tracker{
		cfg:        cfg,
		logger:     opts.Logger,
		clock:      opts.Clock,
		newID:      opts.NewID,
		schedule:   opts.Schedule,
		afterFunc:  opts.AfterFunc,
		onStatus:   opts.OnStatus,
		onTerminal: opts.OnTerminal,
		status:     domain.NoMatchStatus(cfg),
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	if t.newID == nil {
		t.newID = func() string { return "int_" + uuid.New().String() }
	}
	if t.schedule == nil {
		t.schedule = func(fn func()) { fn() }
	}
	if t.afterFunc == nil {
		t.afterFunc = time.AfterFunc
	}
	return t, nil
}

// Config returns the configuration this tracker advances.
func (t *Tracker) Config() domain.InteractionConfig {
	return t.cfg
}

// Status returns the last published status. Safe for concurrent use.
func (t *Tracker) Status() domain.RunningStatus {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

// HandleEvent feeds one event through the relevance filter and, when it
// participates in this configuration, inserts it at its sorted position and
// re-walks the pending list until quiescent.
func (t *Tracker) HandleEvent(ev domain.LocalEvent) {
	if t.stopped {
		return
	}
	if !t.cfg.Observes(ev.Name) {
		return
	}
	t.pending = matcher.InsertByTime(t.pending, ev)
	t.runWalks()
}

// HandleMarker records a marker event for attachment to the next terminal
// record. Markers never participate in matching and never touch the timer.
func (t *Tracker) HandleMarker(ev domain.LocalEvent) {
	if t.stopped {
		return
	}
	t.markers = append(t.markers, ev)
}

// Stop cancels the timeout timer and silences the tracker. An in-flight
// match is discarded without producing a terminal record.
func (t *Tracker) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.cancelTimeout()
}

// runWalks drives the matcher until it reports nothing new. Terminal
// outcomes consume pending events, so the loop always terminates.
func (t *Tracker) runWalks() {
	for {
		if !t.inProgress {
			t.currentID = t.newID()
		}

		res := matcher.Walk(t.cfg, t.pending, matcher.Input{
			InteractionID: t.currentID,
			Markers:       t.markers,
			NowNanos:      t.clock().UnixNano(),
		})

		switch res.Outcome {
		case matcher.OutcomeNoChange:
			return

		case matcher.OutcomeProgress:
			advanced := !t.inProgress || res.Index > t.lastIndex
			t.inProgress = true
			t.matched = res.Matched
			t.lastIndex = res.Index
			if advanced {
				t.armTimeout()
			}
			t.publish(domain.RunningStatus{
				State:         domain.MatchStateOngoing,
				Index:         res.Index,
				InteractionID: t.currentID,
				Config:        t.cfg,
			})
			return

		case matcher.OutcomeCompleted, matcher.OutcomeBroken:
			t.cancelTimeout()
			t.pending = res.Remainder
			t.matched = nil
			t.markers = nil
			t.inProgress = false
			t.lastIndex = 0
			t.publish(domain.RunningStatus{
				State:         domain.MatchStateOngoing,
				Index:         res.Index,
				InteractionID: res.Interaction.ID,
				Config:        t.cfg,
				Completed:     res.Interaction,
			})
			t.emit(res.Interaction)
			if len(t.pending) == 0 {
				return
			}

		case matcher.OutcomeReset:
			t.cancelTimeout()
			t.pending = nil
			t.matched = nil
			t.inProgress = false
			t.lastIndex = 0
			t.publish(domain.NoMatchStatus(t.cfg))
			return
		}
	}
}

// armTimeout (re)schedules the one-shot timeout for the current match. The
// generation counter invalidates callbacks from timers that lost a cancel
// race.
func (t *Tracker) armTimeout() {
	t.cancelTimeout()
	t.timerGen++
	gen := t.timerGen
	d := time.Duration(t.cfg.TimeoutMs)*time.Millisecond + timeoutSlack
	t.timer = t.afterFunc(d, func() {
		t.schedule(func() { t.onTimeout(gen) })
	})
}

func (t *Tracker) cancelTimeout() {
	t.timerGen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// onTimeout runs on the tracker's lane when the timeout fires. A stale
// generation means the match advanced or resolved after the timer fired.
func (t *Tracker) onTimeout(gen uint64) {
	if t.stopped || gen != t.timerGen || !t.inProgress {
		return
	}

	interaction := matcher.NewFailedInteraction(t.cfg, t.matched, t.markers, t.currentID, t.clock().UnixNano())
	index := t.lastIndex

	t.timer = nil
	t.pending = nil
	t.matched = nil
	t.markers = nil
	t.inProgress = false
	t.lastIndex = 0

	t.logger.Debug("interaction timed out",
		"config_id", t.cfg.ID,
		"interaction", t.cfg.Name,
		"interaction_id", interaction.ID,
		"matched_events", len(interaction.Events))

	t.publish(domain.RunningStatus{
		State:         domain.MatchStateOngoing,
		Index:         index,
		InteractionID: interaction.ID,
		Config:        t.cfg,
		Completed:     interaction,
	})
	t.emit(interaction)
}

func (t *Tracker) publish(status domain.RunningStatus) {
	t.statusMu.Lock()
	t.status = status
	t.statusMu.Unlock()
	if t.onStatus != nil {
		t.onStatus(status)
	}
}

func (t *Tracker) emit(interaction *domain.Interaction) {
	if t.onTerminal != nil {
		t.onTerminal(interaction)
	}
}
