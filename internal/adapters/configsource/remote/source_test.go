package remote

import (
	"context"
	"strings"
	"testing"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/testutil"
)

const endpoint = "https://config.dream-horizon.example/v1/interaction-configs"

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for missing URL")
	}
}

func TestFetchDecodesConfigs(t *testing.T) {
	client := testutil.ReplayClient(t, "interaction_configs")

	src, err := New(Options{
		URL:    endpoint,
		Token:  "pulse-staging-token",
		Client: client,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close()

	configs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}

	checkout := configs[0]
	if checkout.ID != 7 || checkout.Name != "Checkout" {
		t.Errorf("unexpected first config: %+v", checkout)
	}
	if len(checkout.Sequence) != 3 || checkout.Sequence[2].Name != "order_placed" {
		t.Errorf("unexpected sequence: %+v", checkout.Sequence)
	}
	if len(checkout.GlobalBlacklist) != 1 || checkout.GlobalBlacklist[0].Name != "app_crashed" {
		t.Errorf("unexpected blacklist: %+v", checkout.GlobalBlacklist)
	}
	if checkout.LowerLimitMs != 5000 || checkout.UpperLimitMs != 30000 || checkout.TimeoutMs != 300000 {
		t.Errorf("unexpected limits: %+v", checkout)
	}

	search := configs[1]
	if len(search.Sequence) != 2 {
		t.Fatalf("expected 2 steps in second config, got %d", len(search.Sequence))
	}
	pm := search.Sequence[1].PropMatchers
	if len(pm) != 1 || pm[0].PropertyName != "status" || pm[0].Operator != domain.OperatorEquals {
		t.Errorf("unexpected prop matchers: %+v", pm)
	}

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			t.Errorf("fetched config %d failed validation: %v", cfg.ID, err)
		}
	}
}

func TestFetchServerError(t *testing.T) {
	client := testutil.ReplayClient(t, "interaction_configs_error")

	src, err := New(Options{URL: endpoint, Client: client})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close()

	_, err = src.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry status code, got: %v", err)
	}
}

func TestWatchIsNoOp(t *testing.T) {
	src, err := New(Options{URL: endpoint})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close()

	called := false
	if err := src.Watch(context.Background(), func([]domain.InteractionConfig) { called = true }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if called {
		t.Error("Watch must not invoke onChange")
	}
}
