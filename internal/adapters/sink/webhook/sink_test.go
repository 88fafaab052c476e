package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

func completedRecord() *domain.Interaction {
	score := 0.7
	return &domain.Interaction{
		ID:                  "int_hook_1",
		Name:                "Checkout",
		ConfigID:            7,
		FirstEventTimeNanos: 1000,
		LastEventTimeNanos:  12_500_001_000,
		CompletionTimeNanos: 12_500_001_000,
		ApdexScore:          &score,
		UserCategory:        domain.UserCategoryGood,
		Events: []domain.LocalEvent{
			{Name: "cart_viewed", TimeNanos: 1000},
			{Name: "order_confirmed", TimeNanos: 12_500_001_000},
		},
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestEmitPostsInteraction(t *testing.T) {
	var received domain.Interaction
	var contentType, custom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		custom = r.Header.Get("X-Pulse-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := New(Options{
		URL:     srv.URL,
		Headers: map[string]string{"X-Pulse-Token": "hook-secret"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := sink.Emit(context.Background(), completedRecord()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if custom != "hook-secret" {
		t.Errorf("custom header = %q, want hook-secret", custom)
	}
	if received.ID != "int_hook_1" || received.ApdexScore == nil || *received.ApdexScore != 0.7 {
		t.Errorf("unexpected payload %+v", received)
	}
}

func TestEmitRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := New(Options{URL: srv.URL, Retries: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := sink.Emit(context.Background(), completedRecord()); err != nil {
		t.Fatalf("Emit failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestEmitReportsExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	sink, err := New(Options{URL: srv.URL, Retries: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = sink.Emit(context.Background(), completedRecord())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestGuardPrivateRejectsLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("guarded sink must not reach a loopback endpoint")
	}))
	defer srv.Close()

	sink, err := New(Options{URL: srv.URL, GuardPrivate: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = sink.Emit(context.Background(), completedRecord())
	if err == nil {
		t.Fatal("expected delivery to a loopback address to be denied")
	}
	if !strings.Contains(err.Error(), "denied") {
		t.Errorf("expected denial error, got %v", err)
	}
}

func TestEmitNilIsHarmless(t *testing.T) {
	sink, err := New(Options{URL: "http://example.invalid/hook"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := sink.Emit(context.Background(), nil); err != nil {
		t.Errorf("nil interaction should be a no-op, got %v", err)
	}
}
