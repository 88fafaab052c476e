package dispatch

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// recorder appends delivered names in order. Reads are only valid after the
// dispatcher is closed.
type recorder struct {
	seen []string
}

func (r *recorder) HandleEvent(ev domain.LocalEvent)  { r.seen = append(r.seen, "e:"+ev.Name) }
func (r *recorder) HandleMarker(ev domain.LocalEvent) { r.seen = append(r.seen, "m:"+ev.Name) }

func bind(d *Dispatcher, h Handler) {
	d.Bind(d.NewLane(), h)
}

func TestDispatcher_AllHandlersSeeSameGlobalOrder(t *testing.T) {
	d := New(nil)
	first := &recorder{}
	second := &recorder{}
	bind(d, first)
	bind(d, second)

	const producers = 4
	const perProducer = 25

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				d.Publish(domain.LocalEvent{Name: fmt.Sprintf("p%d_%d", p, j), TimeNanos: int64(j)})
			}
		}(p)
	}
	wg.Wait()
	d.Close()

	if len(first.seen) != producers*perProducer {
		t.Fatalf("delivered = %d, want %d", len(first.seen), producers*perProducer)
	}
	if len(first.seen) != len(second.seen) {
		t.Fatalf("handlers saw different counts: %d vs %d", len(first.seen), len(second.seen))
	}
	for i := range first.seen {
		if first.seen[i] != second.seen[i] {
			t.Fatalf("order diverges at %d: %q vs %q", i, first.seen[i], second.seen[i])
		}
	}

	// Within each producer, submission order survives.
	next := make([]int, producers)
	for _, name := range first.seen {
		var p, j int
		if _, err := fmt.Sscanf(name, "e:p%d_%d", &p, &j); err != nil {
			t.Fatalf("unexpected name %q: %v", name, err)
		}
		if j != next[p] {
			t.Fatalf("producer %d delivered out of order: got %d, want %d", p, j, next[p])
		}
		next[p]++
	}
}

// overlapDetector flags any concurrent entry into HandleEvent.
type overlapDetector struct {
	active   int32
	overlaps int32
	count    int32
}

func (o *overlapDetector) HandleEvent(domain.LocalEvent) {
	if atomic.AddInt32(&o.active, 1) != 1 {
		atomic.AddInt32(&o.overlaps, 1)
	}
	runtime.Gosched()
	atomic.AddInt32(&o.count, 1)
	atomic.AddInt32(&o.active, -1)
}

func (o *overlapDetector) HandleMarker(domain.LocalEvent) {}

func TestDispatcher_NeverOverlapsDeliveryPerHandler(t *testing.T) {
	d := New(nil)
	det := &overlapDetector{}
	bind(d, det)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Publish(domain.LocalEvent{Name: "e"})
			}
		}()
	}
	wg.Wait()
	d.Close()

	if got := atomic.LoadInt32(&det.count); got != 400 {
		t.Errorf("count = %d, want 400", got)
	}
	if got := atomic.LoadInt32(&det.overlaps); got != 0 {
		t.Errorf("overlaps = %d, want 0", got)
	}
}

// stallingHandler blocks on release for the first event it sees.
type stallingHandler struct {
	release chan struct{}
	first   sync.Once
	count   int32
}

func (s *stallingHandler) HandleEvent(domain.LocalEvent) {
	s.first.Do(func() { <-s.release })
	atomic.AddInt32(&s.count, 1)
}

func (s *stallingHandler) HandleMarker(domain.LocalEvent) {}

func TestDispatcher_PublishDoesNotBlockOnSlowHandler(t *testing.T) {
	d := New(nil)
	h := &stallingHandler{release: make(chan struct{})}
	bind(d, h)

	// All publishes must return while the handler is stuck on its first
	// event; a delivery-coupled publish would deadlock here.
	for j := 0; j < 50; j++ {
		d.Publish(domain.LocalEvent{Name: "e"})
	}

	close(h.release)
	d.Close()

	if got := atomic.LoadInt32(&h.count); got != 50 {
		t.Errorf("count = %d, want 50", got)
	}
}

func TestDispatcher_EventsBeforeBindAreLost(t *testing.T) {
	d := New(nil)

	d.Publish(domain.LocalEvent{Name: "early"})

	r := &recorder{}
	bind(d, r)
	d.Publish(domain.LocalEvent{Name: "late"})
	d.Close()

	if len(r.seen) != 1 || r.seen[0] != "e:late" {
		t.Errorf("seen = %v, want only the post-bind event", r.seen)
	}
}

func TestDispatcher_MarkersShareTheLaneWithEvents(t *testing.T) {
	d := New(nil)
	r := &recorder{}
	bind(d, r)

	d.Publish(domain.LocalEvent{Name: "a"})
	d.PublishMarker(domain.LocalEvent{Name: "crash"})
	d.Publish(domain.LocalEvent{Name: "b"})
	d.Close()

	want := []string{"e:a", "m:crash", "e:b"}
	if len(r.seen) != len(want) {
		t.Fatalf("seen = %v, want %v", r.seen, want)
	}
	for i := range want {
		if r.seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, r.seen[i], want[i])
		}
	}
}

func TestDispatcher_CloseDrainsThenDrops(t *testing.T) {
	d := New(nil)
	r := &recorder{}
	lane := d.NewLane()
	d.Bind(lane, r)

	for j := 0; j < 20; j++ {
		d.Publish(domain.LocalEvent{Name: fmt.Sprintf("e%d", j)})
	}
	d.Close()

	if len(r.seen) != 20 {
		t.Errorf("delivered = %d, want all 20 queued before close", len(r.seen))
	}

	d.Publish(domain.LocalEvent{Name: "after"})
	if len(r.seen) != 20 {
		t.Error("publish after close must be dropped")
	}

	if lane.Post(func() {}) {
		t.Error("lane must reject posts after close")
	}
}
