package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Source  SourceConfig  `koanf:"source"`
	Sink    SinkConfig    `koanf:"sink"`
	Logging LoggingConfig `koanf:"logging"`
}

type ServerConfig struct {
	Enabled   bool           `koanf:"enabled"`
	Port      int            `koanf:"port"`
	TimeoutMs int            `koanf:"timeout_ms"`
	APIKeys   []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres, mysql, memory, none
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

type SourceConfig struct {
	Type  string `koanf:"type"`  // file, remote, none
	Path  string `koanf:"path"`  // config file path (type: file)
	URL   string `koanf:"url"`   // config endpoint (type: remote)
	Token string `koanf:"token"` // optional bearer token (type: remote)
}

type SinkConfig struct {
	Type string `koanf:"type"` // logger, otelspan, webhook, none
	URL  string `koanf:"url"`  // delivery endpoint (type: webhook)
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the config file (path overridable via
// PULSE_CONFIG), then applies PULSE_-prefixed environment overrides
// (PULSE_SERVER__PORT sets server.port), then fills defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	path := os.Getenv("PULSE_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("PULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.enabled") {
		k.Set("server.enabled", true)
	}
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.timeout_ms") {
		k.Set("server.timeout_ms", 30000)
	}
	if !k.Exists("storage.driver") {
		k.Set("storage.driver", "none")
	}
	if !k.Exists("source.type") {
		k.Set("source.type", "none")
	}
	if !k.Exists("sink.type") {
		k.Set("sink.type", "logger")
	}
	if !k.Exists("logging.level") {
		k.Set("logging.level", "info")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secret-bearing values
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	cfg.Source.Token = substituteEnvVars(cfg.Source.Token)
	cfg.Sink.URL = substituteEnvVars(cfg.Sink.URL)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
