package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TokenEnv is consulted when telegram.token is empty.
const TokenEnv = "TELEGRAM_BOT_TOKEN"

// Config is the root configuration for tgbatch.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Batch    BatchConfig    `json:"batch"`
	Journal  JournalConfig  `json:"journal"`
	Metrics  MetricsConfig  `json:"metrics"`
	Log      LogConfig      `json:"log"`
}

type TelegramConfig struct {
	Token          string `json:"token" secret:"true"`
	APIEndpoint    string `json:"apiEndpoint,omitempty"` // printf template: token, method
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxRetries     int    `json:"maxRetries"` // 0 = report transport failures immediately
}

type BatchConfig struct {
	ContinueOnFail bool `json:"continueOnFail"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// MetricsConfig configures the Prometheus textfile export written after each run.
type MetricsConfig struct {
	Enabled      bool   `json:"enabled"`
	TextfilePath string `json:"textfilePath"`
}

type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file,omitempty"` // optional rotating log file
	MaxSizeMB  int    `json:"maxSizeMB,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.tgbatch).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tgbatch"
	}
	return filepath.Join(home, ".tgbatch")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	applyEnv(cfg)

	cfg.Journal.DBPath = ExpandPath(cfg.Journal.DBPath)
	cfg.Metrics.TextfilePath = ExpandPath(cfg.Metrics.TextfilePath)
	cfg.Log.File = ExpandPath(cfg.Log.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFile parses path over the defaults without environment expansion,
// so a config edited and saved again keeps its ${VAR} references. A missing
// file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(ExpandPath(path))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefaults loads path, falling back to defaults (plus environment)
// when the file does not exist.
func LoadOrDefaults(path string) (*Config, bool, error) {
	if _, err := os.Stat(ExpandPath(path)); os.IsNotExist(err) {
		cfg := Defaults()
		applyEnv(cfg)
		cfg.Journal.DBPath = ExpandPath(cfg.Journal.DBPath)
		return cfg, false, nil
	}
	cfg, err := Load(path)
	return cfg, err == nil, err
}

func applyEnv(cfg *Config) {
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv(TokenEnv)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without default is left as is.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""
		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	// The file may hold the bot token.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Telegram.TimeoutSeconds < 1 || cfg.Telegram.TimeoutSeconds > 600 {
		errs = append(errs, "telegram.timeoutSeconds must be between 1 and 600")
	}
	if cfg.Telegram.MaxRetries < 0 || cfg.Telegram.MaxRetries > 10 {
		errs = append(errs, "telegram.maxRetries must be between 0 and 10")
	}
	if ep := cfg.Telegram.APIEndpoint; ep != "" {
		if strings.Count(ep, "%s") != 2 || !strings.HasPrefix(ep, "http") {
			errs = append(errs, "telegram.apiEndpoint must be an http(s) URL template with two %s verbs (token, method)")
		}
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		errs = append(errs, "log rotation limits must be >= 0")
	}

	if cfg.Journal.Enabled && cfg.Journal.DBPath == "" {
		errs = append(errs, "journal.dbPath is required when the journal is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.TextfilePath == "" {
		errs = append(errs, "metrics.textfilePath is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
