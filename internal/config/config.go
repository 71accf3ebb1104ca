// Package config handles ostruka configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tOgg1/ostruka/internal/protocol"
)

// Config is the root configuration structure for ostruka.
type Config struct {
	// User is the primary login alias.
	User string `toml:"user" mapstructure:"user"`

	// UserAlt is tried when the relay rejects User.
	UserAlt string `toml:"user_alt" mapstructure:"user_alt"`

	// Password is sent with the login. Prompted for when empty on a terminal.
	Password string `toml:"password" mapstructure:"password"`

	// ServerAddress is host:port, tcp://host:port, unix://path or a socket path.
	ServerAddress string `toml:"server_address" mapstructure:"server_address"`

	// HomePage names the local-only first page.
	HomePage string `toml:"home_page" mapstructure:"home_page"`

	Logging   LoggingConfig   `toml:"logging" mapstructure:"logging"`
	TUI       TUIConfig       `toml:"tui" mapstructure:"tui"`
	Transport TransportConfig `toml:"transport" mapstructure:"transport"`
	Relay     RelayConfig     `toml:"relay" mapstructure:"relay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `toml:"format" mapstructure:"format"`

	// File is the client log file. The relay always logs to stderr.
	File string `toml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `toml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `toml:"theme" mapstructure:"theme"`

	// Notify raises desktop notifications for messages on other pages.
	Notify bool `toml:"notify" mapstructure:"notify"`

	// TickInterval is the redraw interval.
	TickInterval time.Duration `toml:"tick_interval" mapstructure:"tick_interval"`
}

// TransportConfig contains relay connection settings.
type TransportConfig struct {
	DialTimeout time.Duration `toml:"dial_timeout" mapstructure:"dial_timeout"`
	OutboxSize  int           `toml:"outbox_size" mapstructure:"outbox_size"`

	// SendRate caps outbound frames per second. 0 disables the limit.
	SendRate float64 `toml:"send_rate" mapstructure:"send_rate"`
}

// RelayConfig contains settings for `ostruka serve`.
type RelayConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`

	// Database is the sqlite account store. Empty or "none" accepts every
	// login.
	Database string `toml:"database" mapstructure:"database"`

	MsgsPerSec float64 `toml:"msgs_per_sec" mapstructure:"msgs_per_sec"`
}

var (
	ErrMissingUser   = errors.New("user is required")
	ErrMissingServer = errors.New("server_address is required")
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	stateDir := defaultStateDir()
	return &Config{
		ServerAddress: "127.0.0.1:7744",
		HomePage:      "ostruka",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(stateDir, "ostruka.log"),
		},
		TUI: TUIConfig{
			Theme:        "default",
			Notify:       true,
			TickInterval: 100 * time.Millisecond,
		},
		Transport: TransportConfig{
			DialTimeout: 5 * time.Second,
			OutboxSize:  64,
			SendRate:    10,
		},
		Relay: RelayConfig{
			Listen:     "127.0.0.1:7744",
			Database:   filepath.Join(stateDir, "accounts.db"),
			MsgsPerSec: 20,
		},
	}
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	var errs []error

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	switch c.TUI.Theme {
	case "default", "high-contrast":
	default:
		errs = append(errs, fmt.Errorf("tui.theme must be default or high-contrast, got %q", c.TUI.Theme))
	}
	if c.TUI.TickInterval <= 0 {
		errs = append(errs, errors.New("tui.tick_interval must be positive"))
	}
	if c.Transport.DialTimeout <= 0 {
		errs = append(errs, errors.New("transport.dial_timeout must be positive"))
	}
	if c.Transport.OutboxSize <= 0 {
		errs = append(errs, errors.New("transport.outbox_size must be positive"))
	}
	if c.Transport.SendRate < 0 {
		errs = append(errs, errors.New("transport.send_rate must not be negative"))
	}
	if strings.TrimSpace(c.HomePage) == "" {
		errs = append(errs, errors.New("home_page must not be empty"))
	}

	return errors.Join(errs...)
}

// ValidateClient checks the settings needed to log in.
func (c *Config) ValidateClient() error {
	var errs []error
	if strings.TrimSpace(c.User) == "" {
		errs = append(errs, ErrMissingUser)
	} else if err := protocol.ValidateUser(c.User); err != nil {
		errs = append(errs, fmt.Errorf("user %q: %w", c.User, err))
	}
	if c.UserAlt != "" {
		if err := protocol.ValidateUser(c.UserAlt); err != nil {
			errs = append(errs, fmt.Errorf("user_alt %q: %w", c.UserAlt, err))
		}
	}
	if strings.TrimSpace(c.ServerAddress) == "" {
		errs = append(errs, ErrMissingServer)
	}
	return errors.Join(errs...)
}

// Aliases returns the login aliases in the order they are tried.
func (c *Config) Aliases() []string {
	aliases := []string{c.User}
	if c.UserAlt != "" && c.UserAlt != c.User {
		aliases = append(aliases, c.UserAlt)
	}
	return aliases
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ostruka")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "state", "ostruka")
}
