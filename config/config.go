// Package config loads gateway configuration from a YAML file with
// environment variable overrides. Discovery follows first-match
// semantics: an explicit path, then huntgate.yaml in the working
// directory, then ~/.huntgate/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "huntgate.yaml"
	homeConfigName    = "config.yaml"
)

// Duration decodes YAML values like "30s" or "1m30s" into a duration.
// Bare integers are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full gateway configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Stream StreamConfig `yaml:"stream"`
	Probe  ProbeConfig  `yaml:"probe"`

	// SQLitePath enables the invocation audit store when set.
	SQLitePath string `yaml:"sqlite_path"`

	// OTLPEndpoint enables trace exporting when set, host:port.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	CORSOrigin   string   `yaml:"cors_origin"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	MaxBody      int64    `yaml:"max_body"`
}

// StreamConfig holds the SSE stream settings.
type StreamConfig struct {
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// ProbeConfig holds the upstream probe settings.
type ProbeConfig struct {
	// Schedule is a five-field UTC cron expression. Empty uses the
	// server default.
	Schedule string `yaml:"schedule"`
}

// Default returns the baseline configuration before file or env input.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			CORSOrigin:   "*",
			ReadTimeout:  0, // SSE sessions are long-lived; no read deadline
			WriteTimeout: 0,
			MaxBody:      1 << 20,
		},
		Stream: StreamConfig{
			HeartbeatInterval: Duration(30 * time.Second),
		},
	}
}

// DiscoverPath resolves the config file location with first-match
// semantics. An explicit path that does not exist is an error; missing
// discovery candidates are not.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 3)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".huntgate", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads configuration: defaults, then the discovered YAML file (if
// any), then environment overrides.
func Load(explicitPath string) (Config, error) {
	cfg := Default()

	path, found, err := DiscoverPath(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if found {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadFile reads a specific YAML file over the defaults, then applies
// environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	return nil
}

// applyEnvOverrides layers the process environment over the file values.
// PORT and HOST keep the names the upstream deployment conventions use.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("HUNTGATE_SQLITE_PATH")); v != "" {
		cfg.SQLitePath = v
	}
	if v := strings.TrimSpace(os.Getenv("HUNTGATE_OTLP_ENDPOINT")); v != "" {
		cfg.OTLPEndpoint = v
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Stream.HeartbeatInterval < 0 {
		return errors.New("config: heartbeat_interval must not be negative")
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
