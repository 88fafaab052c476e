package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/configsource/file"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/configsource/remote"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/configsource/static"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/sink/logger"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/sink/otelspan"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/adapters/sink/webhook"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/auth"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/pkg/config"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/storage/memory"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/storage/sqldb"
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine) error

// WithConfigs uses a fixed, in-process configuration set. An empty call is
// valid and leaves tracking disabled.
func WithConfigs(configs ...domain.InteractionConfig) Option {
	return func(e *Engine) error {
		e.source = static.New(configs...)
		return nil
	}
}

// WithFileSource loads configurations from a YAML file and hot-reloads the
// tracker fleet when the file changes. Set the logger first when combining
// with WithLogger.
func WithFileSource(path string) Option {
	return func(e *Engine) error {
		source, err := file.New(path, e.logger)
		if err != nil {
			return fmt.Errorf("create file config source: %w", err)
		}
		e.source = source
		return nil
	}
}

// WithRemoteSource fetches configurations from an HTTP endpoint once at
// startup. Token is optional and sent as a Bearer credential.
func WithRemoteSource(url, token string) Option {
	return func(e *Engine) error {
		source, err := remote.New(remote.Options{URL: url, Token: token, Logger: e.logger})
		if err != nil {
			return fmt.Errorf("create remote config source: %w", err)
		}
		e.source = source
		return nil
	}
}

// WithConfigSource sets a custom configuration source.
func WithConfigSource(source ports.ConfigSource) Option {
	return func(e *Engine) error {
		e.source = source
		return nil
	}
}

// WithSQLite archives terminal interactions to a SQLite database.
func WithSQLite(path string) Option {
	return func(e *Engine) error {
		store, err := sqldb.NewSQLite(path)
		if err != nil {
			return fmt.Errorf("create sqlite store: %w", err)
		}
		e.store = store
		return nil
	}
}

// WithStorage archives terminal interactions to the given SQL database.
// Supported drivers: sqlite, postgres, mysql.
func WithStorage(driver, dsn string) Option {
	return func(e *Engine) error {
		store, err := sqldb.New(sqldb.Config{Driver: driver, DSN: dsn})
		if err != nil {
			return fmt.Errorf("create %s store: %w", driver, err)
		}
		e.store = store
		return nil
	}
}

// WithMemoryStore archives terminal interactions in process memory. Useful
// for tests and short-lived tooling.
func WithMemoryStore() Option {
	return func(e *Engine) error {
		e.store = memory.New()
		return nil
	}
}

// WithStore sets a custom interaction store.
func WithStore(store ports.InteractionStore) Option {
	return func(e *Engine) error {
		e.store = store
		return nil
	}
}

// WithSink replaces the default log sink.
func WithSink(sink ports.InteractionSink) Option {
	return func(e *Engine) error {
		e.sink = sink
		e.sinkSet = true
		return nil
	}
}

// WithLogSink emits terminal interactions to the structured log (default).
func WithLogSink() Option {
	return func(e *Engine) error {
		e.sink = logger.New(e.logger)
		e.sinkSet = true
		return nil
	}
}

// WithSpanSink emits terminal interactions as OpenTelemetry spans,
// back-dated to the interaction's event bounds.
func WithSpanSink() Option {
	return func(e *Engine) error {
		e.sink = otelspan.New(otelspan.Options{})
		e.sinkSet = true
		return nil
	}
}

// WithWebhookSink posts terminal interactions to an HTTP endpoint as JSON.
// Delivery is best-effort with bounded retries and never blocks tracking.
func WithWebhookSink(url string) Option {
	return func(e *Engine) error {
		sink, err := webhook.New(webhook.Options{URL: url, Logger: e.logger})
		if err != nil {
			return fmt.Errorf("create webhook sink: %w", err)
		}
		e.sink = sink
		e.sinkSet = true
		return nil
	}
}

// WithoutSink disables terminal-interaction emission. Archiving via a
// configured store still happens.
func WithoutSink() Option {
	return func(e *Engine) error {
		e.sink = nil
		e.sinkSet = true
		return nil
	}
}

// WithServer enables the HTTP server on the given port.
func WithServer(port int) Option {
	return func(e *Engine) error {
		e.serverEnabled = true
		e.serverPort = port
		return nil
	}
}

// WithServerTimeout bounds request handling on the HTTP server.
func WithServerTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		e.serverTimeout = timeout
		return nil
	}
}

// WithAPIKeyHashes guards the HTTP API with Bearer keys. Hashes are SHA-256
// hex digests of the accepted keys.
func WithAPIKeyHashes(hashes ...string) Option {
	return func(e *Engine) error {
		e.authenticator = auth.NewAuthenticator(hashes)
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithClock sets the time source used for event stamping, APDEX scoring,
// and timeouts. Tests use this for determinism.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		e.clock = clock
		return nil
	}
}

// FromConfig translates a loaded configuration file into engine options.
func FromConfig(cfg *config.Config, log *slog.Logger) ([]Option, error) {
	opts := []Option{WithLogger(log)}

	switch cfg.Source.Type {
	case "file":
		opts = append(opts, WithFileSource(cfg.Source.Path))
	case "remote":
		opts = append(opts, WithRemoteSource(cfg.Source.URL, cfg.Source.Token))
	case "none", "":
		opts = append(opts, WithConfigs())
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "postgres", "mysql":
		opts = append(opts, WithStorage(cfg.Storage.Driver, cfg.Storage.DSN))
	case "memory":
		opts = append(opts, WithMemoryStore())
	case "none", "":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Sink.Type {
	case "logger", "":
		opts = append(opts, WithLogSink())
	case "otelspan":
		opts = append(opts, WithSpanSink())
	case "webhook":
		if cfg.Sink.URL == "" {
			return nil, fmt.Errorf("sink type webhook requires sink.url")
		}
		opts = append(opts, WithWebhookSink(cfg.Sink.URL))
	case "none":
		opts = append(opts, WithoutSink())
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}

	if cfg.Server.Enabled {
		opts = append(opts, WithServer(cfg.Server.Port))
		if cfg.Server.TimeoutMs > 0 {
			opts = append(opts, WithServerTimeout(time.Duration(cfg.Server.TimeoutMs)*time.Millisecond))
		}
		if len(cfg.Server.APIKeys) > 0 {
			hashes := make([]string, 0, len(cfg.Server.APIKeys))
			for _, key := range cfg.Server.APIKeys {
				hashes = append(hashes, key.KeyHash)
			}
			opts = append(opts, WithAPIKeyHashes(hashes...))
		}
	}

	return opts, nil
}
