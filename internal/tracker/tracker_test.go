package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

const ms = int64(1_000_000)

func pairConfig() domain.InteractionConfig {
	return domain.InteractionConfig{
		ID:   1,
		Name: "Pair",
		Sequence: []domain.SequenceEventSpec{
			{Name: "a"},
			{Name: "b"},
		},
		GlobalBlacklist: []domain.SequenceEventSpec{{Name: "x"}},
		LowerLimitMs:    100,
		MidLimitMs:      500,
		UpperLimitMs:    1000,
		TimeoutMs:       20000,
	}
}

func ev(name string, timeNanos int64) domain.LocalEvent {
	return domain.LocalEvent{Name: name, TimeNanos: timeNanos}
}

// harness wires a tracker with deterministic ids, a fixed clock, captured
// timers, and recorded outputs.
type harness struct {
	tracker   *Tracker
	terminals []*domain.Interaction
	statuses  []domain.RunningStatus
	delays    []time.Duration
	timerFns  []func()
	idSeq     int
}

func newHarness(t *testing.T, cfg domain.InteractionConfig) *harness {
	t.Helper()
	h := &harness{}
	tr, err := New(cfg, Options{
		Clock: func() time.Time { return time.Unix(0, 1000*ms) },
		NewID: func() string {
			h.idSeq++
			return fmt.Sprintf("int_test_%d", h.idSeq)
		},
		AfterFunc: func(d time.Duration, fn func()) *time.Timer {
			h.delays = append(h.delays, d)
			h.timerFns = append(h.timerFns, fn)
			return time.AfterFunc(24*time.Hour, func() {})
		},
		OnStatus:   func(s domain.RunningStatus) { h.statuses = append(h.statuses, s) },
		OnTerminal: func(i *domain.Interaction) { h.terminals = append(h.terminals, i) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.tracker = tr
	return h
}

func (h *harness) fireTimer(i int) {
	h.timerFns[i]()
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.InteractionConfig
	}{
		{
			name: "empty sequence",
			cfg:  domain.InteractionConfig{ID: 1, Name: "empty"},
		},
		{
			name: "blacklisted boundary",
			cfg: domain.InteractionConfig{ID: 2, Name: "bad", Sequence: []domain.SequenceEventSpec{
				{Name: "a", IsBlacklisted: true},
				{Name: "b"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg, Options{})
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
			if tr != nil {
				t.Error("expected no tracker for invalid config")
			}
		})
	}
}

func TestTracker_CompletesOrderedPair(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))

	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	got := h.terminals[0]
	if got.IsErrored {
		t.Error("expected successful interaction")
	}
	if len(got.Events) != 2 || got.Events[0].Name != "a" || got.Events[1].Name != "b" {
		t.Errorf("events = %v, want [a b]", got.Events)
	}

	status := h.tracker.Status()
	if status.State != domain.MatchStateOngoing || status.Completed == nil {
		t.Errorf("status = %+v, want ongoing with completed record", status)
	}
}

func TestTracker_RecoversReversedArrivalOrder(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("b", 20*ms))
	if got := h.tracker.Status(); got.State != domain.MatchStateNone {
		t.Fatalf("status after early b = %+v, want no match", got)
	}

	h.tracker.HandleEvent(ev("a", 10*ms))

	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	if h.terminals[0].IsErrored {
		t.Error("expected successful interaction")
	}
	if h.terminals[0].FirstEventTimeNanos != 10*ms {
		t.Errorf("first event = %d, want the re-sorted a", h.terminals[0].FirstEventTimeNanos)
	}
}

func TestTracker_DuplicateFirstEventBreaksThenCompletes(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))

	if len(h.terminals) != 2 {
		t.Fatalf("terminals = %d, want broken first match plus completion", len(h.terminals))
	}
	if !h.terminals[0].IsErrored || len(h.terminals[0].Events) != 1 {
		t.Errorf("first terminal = %+v, want errored [a]", h.terminals[0])
	}
	if h.terminals[1].IsErrored || len(h.terminals[1].Events) != 2 {
		t.Errorf("second terminal = %+v, want successful [a b]", h.terminals[1])
	}
}

func TestTracker_GlobalBlacklistDuringMatch(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("x", 15*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))

	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	got := h.terminals[0]
	if !got.IsErrored {
		t.Error("expected errored interaction")
	}
	if len(got.Events) != 1 || got.Events[0].Name != "a" {
		t.Errorf("events = %v, want [a]", got.Events)
	}

	// The b after the blacklist hit is inconclusive on its own; the failed
	// record stays visible.
	status := h.tracker.Status()
	if status.Completed == nil || !status.Completed.IsErrored {
		t.Errorf("status = %+v, want retained failed record", status)
	}
}

func TestTracker_BlacklistAfterCompletionIsHarmless(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))
	h.tracker.HandleEvent(ev("x", 30*ms))

	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	if h.terminals[0].IsErrored {
		t.Error("expected the completed interaction to stand")
	}
	status := h.tracker.Status()
	if status.Completed == nil || status.Completed.IsErrored {
		t.Errorf("status = %+v, want retained successful record", status)
	}
}

func TestTracker_TimeoutSynthesizesFailedInteraction(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))

	if len(h.delays) != 1 {
		t.Fatalf("armed timers = %d, want 1", len(h.delays))
	}
	want := 20*time.Second + timeoutSlack
	if h.delays[0] != want {
		t.Errorf("timeout delay = %v, want %v", h.delays[0], want)
	}

	h.fireTimer(0)

	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	got := h.terminals[0]
	if !got.IsErrored {
		t.Error("expected errored interaction")
	}
	if len(got.Events) != 1 || got.Events[0].Name != "a" {
		t.Errorf("events = %v, want [a]", got.Events)
	}
	status := h.tracker.Status()
	if status.Completed == nil || !status.Completed.IsErrored {
		t.Errorf("status = %+v, want failed record", status)
	}
}

func TestTracker_UnrelatedEventsDoNotResetTimer(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("completely_unrelated", 18000*ms))

	if len(h.delays) != 1 {
		t.Fatalf("armed timers = %d, want the original only", len(h.delays))
	}

	h.fireTimer(0)

	if len(h.terminals) != 1 || !h.terminals[0].IsErrored {
		t.Fatalf("terminals = %+v, want one errored record", h.terminals)
	}
}

func TestTracker_AdvancingEventReschedulesTimer(t *testing.T) {
	cfg := domain.InteractionConfig{
		ID:   3,
		Name: "Trio",
		Sequence: []domain.SequenceEventSpec{
			{Name: "a"}, {Name: "b"}, {Name: "c"},
		},
		TimeoutMs: 20000,
	}
	h := newHarness(t, cfg)

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))

	if len(h.delays) != 2 {
		t.Fatalf("armed timers = %d, want rearm on advance", len(h.delays))
	}

	// The superseded timer lost its cancel race; firing it must be a no-op.
	h.fireTimer(0)
	if len(h.terminals) != 0 {
		t.Fatalf("stale timer produced terminals: %+v", h.terminals)
	}

	h.fireTimer(1)
	if len(h.terminals) != 1 || !h.terminals[0].IsErrored {
		t.Fatalf("terminals = %+v, want one errored record from live timer", h.terminals)
	}
	if len(h.terminals[0].Events) != 2 {
		t.Errorf("events = %v, want [a b]", h.terminals[0].Events)
	}
}

func TestTracker_DistinctIDsAcrossCompletions(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))
	h.tracker.HandleEvent(ev("a", 30*ms))
	h.tracker.HandleEvent(ev("b", 40*ms))

	if len(h.terminals) != 2 {
		t.Fatalf("terminals = %d, want 2", len(h.terminals))
	}
	if h.terminals[0].ID == h.terminals[1].ID {
		t.Errorf("both completions share id %q", h.terminals[0].ID)
	}
}

func TestTracker_IDStableWithinOneMatch(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	ongoing := h.tracker.Status()
	if ongoing.State != domain.MatchStateOngoing || ongoing.InteractionID == "" {
		t.Fatalf("status = %+v, want ongoing with id", ongoing)
	}

	h.tracker.HandleEvent(ev("b", 20*ms))

	if h.terminals[0].ID != ongoing.InteractionID {
		t.Errorf("terminal id = %q, want the ongoing id %q", h.terminals[0].ID, ongoing.InteractionID)
	}
}

func TestTracker_MarkersAttachToNextTerminal(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleMarker(ev("crash_report", 12*ms))
	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleMarker(ev("network_change", 15*ms))
	h.tracker.HandleEvent(ev("b", 20*ms))

	// Markers must not have started a match or armed a timer on their own.
	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	got := h.terminals[0]
	if len(got.MarkerEvents) != 2 {
		t.Fatalf("markers = %v, want both attached", got.MarkerEvents)
	}

	// A second completion starts with a clean marker list.
	h.tracker.HandleEvent(ev("a", 30*ms))
	h.tracker.HandleEvent(ev("b", 40*ms))
	if len(h.terminals) != 2 {
		t.Fatalf("terminals = %d, want 2", len(h.terminals))
	}
	if len(h.terminals[1].MarkerEvents) != 0 {
		t.Errorf("second terminal markers = %v, want none", h.terminals[1].MarkerEvents)
	}
}

func TestTracker_MarkersAttachToTimeoutRecord(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.HandleMarker(ev("crash_report", 12*ms))
	h.fireTimer(0)

	if len(h.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(h.terminals))
	}
	got := h.terminals[0]
	if !got.IsErrored || len(got.MarkerEvents) != 1 {
		t.Errorf("terminal = %+v, want errored with one marker", got)
	}
}

func TestTracker_StopDiscardsInFlightMatch(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("a", 10*ms))
	h.tracker.Stop()

	h.fireTimer(0)
	h.tracker.HandleEvent(ev("b", 20*ms))

	if len(h.terminals) != 0 {
		t.Errorf("terminals = %+v, want none after stop", h.terminals)
	}
}

func TestTracker_IrrelevantEventsAreFilteredCheaply(t *testing.T) {
	h := newHarness(t, pairConfig())

	h.tracker.HandleEvent(ev("scroll", 5*ms))
	h.tracker.HandleEvent(ev("tap", 6*ms))

	if len(h.statuses) != 0 {
		t.Errorf("statuses = %+v, want none for irrelevant events", h.statuses)
	}
	if len(h.delays) != 0 {
		t.Errorf("armed timers = %d, want none", len(h.delays))
	}
}
