// Package remote provides a configuration source that fetches interaction
// configurations from an HTTP endpoint returning JSON.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

// Source fetches interaction configurations over HTTP. The fetch is a
// single attempt; callers decide what a failure means.
type Source struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

// document is the wire shape of a configuration response.
type document struct {
	InteractionConfigs []domain.InteractionConfig `json:"interaction_configs"`
}

// Options configures a remote source.
type Options struct {
	// URL is the configuration endpoint. Required.
	URL string
	// Token, when set, is sent as a bearer token.
	Token string
	// Client overrides the HTTP client. Optional.
	Client *http.Client
	// Logger overrides the default logger. Optional.
	Logger *slog.Logger
}

// New creates a remote source. The endpoint is not contacted until Fetch.
func New(opts Options) (*Source, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("config endpoint URL is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{url: opts.URL, token: opts.Token, client: client, logger: logger}, nil
}

// Fetch performs one GET against the endpoint and decodes the response.
func (s *Source) Fetch(ctx context.Context) ([]domain.InteractionConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building config request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching configs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("config endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var doc document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding config response: %w", err)
	}

	s.logger.Info("interaction configs fetched", "url", s.url, "count", len(doc.InteractionConfigs))
	return doc.InteractionConfigs, nil
}

// Watch is a no-op; the endpoint is read once at startup.
func (s *Source) Watch(ctx context.Context, onChange func([]domain.InteractionConfig)) error {
	return nil
}

// Close releases idle connections.
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
