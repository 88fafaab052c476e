package runtime

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/pkg/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromConfig_RejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{
			name:    "unknown source type",
			cfg:     config.Config{Source: config.SourceConfig{Type: "consul"}},
			wantErr: "unknown source type",
		},
		{
			name:    "unknown storage driver",
			cfg:     config.Config{Storage: config.StorageConfig{Driver: "oracle"}},
			wantErr: "unknown storage driver",
		},
		{
			name:    "unknown sink type",
			cfg:     config.Config{Sink: config.SinkConfig{Type: "kafka"}},
			wantErr: "unknown sink type",
		},
		{
			name:    "webhook sink without url",
			cfg:     config.Config{Sink: config.SinkConfig{Type: "webhook"}},
			wantErr: "requires sink.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(&tt.cfg, discardLogger())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromConfig_BuildsEngine(t *testing.T) {
	cfg := config.Config{
		Storage: config.StorageConfig{Driver: "memory"},
		Sink:    config.SinkConfig{Type: "none"},
	}

	opts, err := FromConfig(&cfg, discardLogger())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	engine, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Shutdown(context.Background())

	if engine.store == nil {
		t.Error("expected memory store to be configured")
	}
	// sink type none still archives: the store wraps into an archive sink
	if engine.sink == nil {
		t.Error("expected archive sink despite sink type none")
	}
	if engine.serverEnabled {
		t.Error("server should stay disabled when config leaves it off")
	}
}

func TestFromConfig_WebhookSink(t *testing.T) {
	cfg := config.Config{
		Sink: config.SinkConfig{Type: "webhook", URL: "https://hooks.internal/pulse"},
	}

	opts, err := FromConfig(&cfg, discardLogger())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	engine, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Shutdown(context.Background())

	if engine.sink == nil {
		t.Error("expected webhook sink to be configured")
	}
}

func TestFromConfig_ServerOptions(t *testing.T) {
	cfg := config.Config{
		Server: config.ServerConfig{
			Enabled:   true,
			Port:      9090,
			TimeoutMs: 5000,
			APIKeys:   []config.APIKeyConfig{{KeyHash: "abc123"}},
		},
	}

	opts, err := FromConfig(&cfg, discardLogger())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	engine, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Shutdown(context.Background())

	if !engine.serverEnabled || engine.serverPort != 9090 {
		t.Errorf("server settings = enabled %v port %d", engine.serverEnabled, engine.serverPort)
	}
	if engine.serverTimeout.Milliseconds() != 5000 {
		t.Errorf("server timeout = %v, want 5s", engine.serverTimeout)
	}
	if engine.authenticator == nil {
		t.Error("expected authenticator from configured key hashes")
	}
}
