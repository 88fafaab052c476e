package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

func TestEmitLogsCompletionAtInfo(t *testing.T) {
	var buf bytes.Buffer
	sink := New(slog.New(slog.NewTextHandler(&buf, nil)))

	apdex := 0.7
	record := &domain.Interaction{
		ID:                  "int_log_1",
		Name:                "Checkout",
		ConfigID:            7,
		FirstEventTimeNanos: 0,
		LastEventTimeNanos:  12_500_000_000,
		ApdexScore:          &apdex,
		UserCategory:        domain.UserCategoryGood,
		Events:              []domain.LocalEvent{{Name: "order_placed"}},
	}
	if err := sink.Emit(context.Background(), record); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "level=INFO") {
		t.Errorf("completion logged at wrong level: %s", line)
	}
	if !strings.Contains(line, "interaction completed") || !strings.Contains(line, "int_log_1") {
		t.Errorf("log line = %s", line)
	}
	if !strings.Contains(line, "apdex_score=0.7") || !strings.Contains(line, "user_category=Good") {
		t.Errorf("score missing from log line: %s", line)
	}
}

func TestEmitLogsFailureAtWarn(t *testing.T) {
	var buf bytes.Buffer
	sink := New(slog.New(slog.NewTextHandler(&buf, nil)))

	record := &domain.Interaction{
		ID:        "int_log_2",
		Name:      "Checkout",
		ConfigID:  7,
		IsErrored: true,
	}
	if err := sink.Emit(context.Background(), record); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "level=WARN") || !strings.Contains(line, "interaction failed") {
		t.Errorf("log line = %s", line)
	}
	if strings.Contains(line, "apdex_score") {
		t.Errorf("errored record must not log a score: %s", line)
	}
}

func TestEmitNilIsHarmless(t *testing.T) {
	var buf bytes.Buffer
	sink := New(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := sink.Emit(context.Background(), nil); err != nil {
		t.Fatalf("Emit(nil) error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nil record produced output: %s", buf.String())
	}
}
