package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// States accepted for the managed account
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// Config represents the application configuration
type Config struct {
	API               APIConfig      `yaml:"api" toml:"api"`
	User              map[string]any `yaml:"user" toml:"user"` // Desired account fields
	State             string         `yaml:"state" toml:"state"`
	CheckMode         bool           `yaml:"check_mode" toml:"check_mode"`
	EmailDeletePolicy string         `yaml:"email_delete_policy" toml:"email_delete_policy"`
	Script            string         `yaml:"script" toml:"script"` // Optional Lua script producing desired fields
	Log               LogConfig      `yaml:"log" toml:"log"`
	Ledger            LedgerConfig   `yaml:"ledger" toml:"ledger"`
	Metrics           MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// APIConfig contains GitLab API connection settings
type APIConfig struct {
	URL           string   `yaml:"url" toml:"url"` // API root, e.g. https://gitlab.example.com/api/v4
	PrivateToken  string   `yaml:"private_token" toml:"private_token"`
	Timeout       Duration `yaml:"timeout" toml:"timeout"`
	RateLimitRPS  float64  `yaml:"rate_limit_rps" toml:"rate_limit_rps"` // 0 = unlimited
	StrictLookups bool     `yaml:"strict_lookups" toml:"strict_lookups"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	JSON   bool   `yaml:"json" toml:"json"`
	Colors bool   `yaml:"colors" toml:"colors"`
}

// LedgerConfig contains run ledger settings
type LedgerConfig struct {
	Path          string `yaml:"path" toml:"path"` // Empty disables the ledger
	RetentionDays int    `yaml:"retention_days" toml:"retention_days"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile" toml:"textfile"` // node_exporter textfile path, empty = disabled
}

// Duration is a wrapper around time.Duration for YAML and TOML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		meta, err := toml.Decode(expanded, &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			if len(key) > 0 && key[0] == "user" {
				continue
			}
			log.Warn().Str("key", key.String()).Msg("Unknown config key ignored")
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.User == nil {
		cfg.User = map[string]any{}
	}
	if cfg.State == "" {
		cfg.State = StatePresent
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// API defaults
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = Duration(30 * time.Second)
	}
	cfg.API.URL = strings.TrimRight(cfg.API.URL, "/")

	// Ledger defaults
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}
}

// Validate checks settings that do not depend on the remote server
func (cfg *Config) Validate() error {
	if cfg.API.URL == "" {
		return errors.NewNotValid(nil, "api.url is required")
	}
	if cfg.API.PrivateToken == "" {
		return errors.NewNotValid(nil, "api.private_token is required")
	}
	if cfg.API.RateLimitRPS < 0 {
		return errors.NewNotValid(nil, "api.rate_limit_rps must not be negative")
	}
	switch cfg.State {
	case StatePresent, StateAbsent:
	default:
		return errors.NewNotValid(nil, fmt.Sprintf("state must be %q or %q, got %q", StatePresent, StateAbsent, cfg.State))
	}
	switch cfg.EmailDeletePolicy {
	case "", "skip", "require":
	default:
		return errors.NewNotValid(nil, fmt.Sprintf("email_delete_policy must be \"skip\" or \"require\", got %q", cfg.EmailDeletePolicy))
	}
	if cfg.Ledger.RetentionDays < 0 {
		return errors.NewNotValid(nil, "ledger.retention_days must not be negative")
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
