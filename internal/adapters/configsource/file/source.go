// Package file provides a configuration source backed by a YAML file on
// disk, with change detection via fsnotify.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
)

// Source loads interaction configurations from a YAML file and can watch it
// for rewrites.
type Source struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	current []domain.InteractionConfig
}

// document is the on-disk shape of a configuration file.
type document struct {
	InteractionConfigs []domain.InteractionConfig `json:"interaction_configs"`
}

// New creates a file-backed source. The file is not read until Fetch.
func New(path string, logger *slog.Logger) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, logger: logger}, nil
}

// Fetch reads and parses the configuration file.
func (s *Source) Fetch(ctx context.Context) ([]domain.InteractionConfig, error) {
	configs, err := s.load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = configs
	s.mu.Unlock()

	s.logger.Info("interaction configs loaded", "path", s.path, "count", len(configs))
	return configs, nil
}

func (s *Source) load() ([]domain.InteractionConfig, error) {
	k := koanf.New(".")
	if err := k.Load(kfile.Provider(s.path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return doc.InteractionConfigs, nil
}

// Watch starts watching the file for writes. On each change the file is
// re-parsed and onChange is invoked with the complete new set. A file that
// fails to parse is logged and the previous set kept.
func (s *Source) Watch(ctx context.Context, onChange func([]domain.InteractionConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watching config file: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("config file watch stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write != fsnotify.Write {
					continue
				}
				s.logger.Info("config file changed, reloading", "path", s.path)
				configs, err := s.load()
				if err != nil {
					s.logger.Error("config reload failed, keeping previous set",
						"path", s.path, "error", err)
					continue
				}
				s.mu.Lock()
				s.current = configs
				s.mu.Unlock()
				onChange(configs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("config file watch error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops the watcher if one was started.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
