// Package webhook delivers terminal interactions to an external HTTP
// endpoint as JSON. Delivery is best-effort with bounded retries; a failed
// delivery is reported to the caller and never blocks tracking.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// guardedTransport rejects connections to private or loopback IP ranges to
// reduce SSRF risk when the endpoint URL comes from untrusted configuration.
var guardedTransport = &http.Transport{
	DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := &net.Dialer{Timeout: 5 * time.Second}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		ip := net.ParseIP(host)
		if ip == nil {
			conn.Close()
			return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
		}

		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			conn.Close()
			return nil, fmt.Errorf("access to private IP %s is denied", ip)
		}

		return conn, nil
	},
}

// Options configures a webhook sink.
type Options struct {
	// URL receives one POST per terminal interaction; required
	URL string

	// Timeout bounds each delivery attempt
	Timeout time.Duration

	// Retries is the number of additional attempts after a failure
	Retries int

	// Headers are added to every request
	Headers map[string]string

	// GuardPrivate rejects endpoints that resolve to private, loopback,
	// or link-local addresses
	GuardPrivate bool

	// Client overrides the HTTP client; Timeout and GuardPrivate are
	// ignored when set
	Client *http.Client

	Logger *slog.Logger
}

// Sink posts terminal interaction records to an HTTP endpoint.
type Sink struct {
	url     string
	retries int
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.InteractionSink = (*Sink)(nil)

// New creates a webhook sink.
func New(opts Options) (*Sink, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
		if opts.GuardPrivate {
			client.Transport = guardedTransport
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sink{
		url:     opts.URL,
		retries: opts.Retries,
		headers: opts.Headers,
		client:  client,
		logger:  logger,
	}, nil
}

// Emit posts the interaction as JSON, retrying on failure. The last error
// is returned once attempts are exhausted.
func (s *Sink) Emit(ctx context.Context, interaction *domain.Interaction) error {
	if interaction == nil {
		return nil
	}

	body, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	var lastErr error
	attempts := s.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		err := s.post(ctx, body)
		if err == nil {
			if attempt > 0 {
				s.logger.Info("webhook delivery recovered",
					"interaction_id", interaction.ID,
					"attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", attempts, lastErr)
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(msg))
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases idle connections.
func (s *Sink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
