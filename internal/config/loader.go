package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OSTRUKA_SERVER_ADDRESS.
const EnvPrefix = "OSTRUKA"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Set overrides a key, taking precedence over file and environment. Used
// for command line flags.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Settings returns every effective setting as a nested map. Call after Load.
func (l *Loader) Settings() map[string]any {
	return normalizeSettings(l.v.AllSettings())
}

// DefaultSettings returns the default configuration as a nested map.
func DefaultSettings() map[string]any {
	l := NewLoader()
	l.setDefaults(DefaultConfig())
	return normalizeSettings(l.v.AllSettings())
}

// EncodeTOML renders settings as a config file.
func EncodeTOML(settings map[string]any) ([]byte, error) {
	data, err := toml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	data, err := EncodeTOML(DefaultSettings())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists", path)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// DefaultConfigPath is where `ostruka config init` writes.
func DefaultConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ostruka", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ostruka", "config.toml")
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.Relay.Database = expandTilde(cfg.Relay.Database)
	if !strings.Contains(cfg.ServerAddress, "://") {
		cfg.ServerAddress = expandTilde(cfg.ServerAddress)
	}
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("toml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "ostruka"))
	}
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "ostruka"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	// Viper's Unmarshal ignores env vars for nested keys unless they are bound.
	bindEnvVars(v)
	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("user", cfg.User)
	v.SetDefault("user_alt", cfg.UserAlt)
	v.SetDefault("password", cfg.Password)
	v.SetDefault("server_address", cfg.ServerAddress)
	v.SetDefault("home_page", cfg.HomePage)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// TUI
	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("tui.notify", cfg.TUI.Notify)
	v.SetDefault("tui.tick_interval", cfg.TUI.TickInterval)

	// Transport
	v.SetDefault("transport.dial_timeout", cfg.Transport.DialTimeout)
	v.SetDefault("transport.outbox_size", cfg.Transport.OutboxSize)
	v.SetDefault("transport.send_rate", cfg.Transport.SendRate)

	// Relay
	v.SetDefault("relay.listen", cfg.Relay.Listen)
	v.SetDefault("relay.database", cfg.Relay.Database)
	v.SetDefault("relay.msgs_per_sec", cfg.Relay.MsgsPerSec)
}

// loadConfigFile reads the config file. A missing file is only an error
// when it was named explicitly.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if ext := strings.TrimPrefix(filepath.Ext(l.configFile), "."); ext == "" {
			l.v.SetConfigType("toml")
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// bindEnvVars binds OSTRUKA_* environment variables for config keys.
func bindEnvVars(v *viper.Viper) {
	envBindings := []string{
		"user",
		"user_alt",
		"password",
		"server_address",
		"home_page",
		// Logging
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.enable_caller",
		// TUI
		"tui.theme",
		"tui.notify",
		"tui.tick_interval",
		// Transport
		"transport.dial_timeout",
		"transport.outbox_size",
		"transport.send_rate",
		// Relay
		"relay.listen",
		"relay.database",
		"relay.msgs_per_sec",
	}

	for _, key := range envBindings {
		// Convert key to env var format: relay.listen -> OSTRUKA_RELAY_LISTEN
		envVar := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envVar)
	}
}

// normalizeSettings renders durations as strings so they survive a round
// trip through a config file.
func normalizeSettings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch value := v.(type) {
		case map[string]any:
			out[k] = normalizeSettings(value)
		case time.Duration:
			out[k] = value.String()
		default:
			out[k] = v
		}
	}
	return out
}
