// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/presence/presence"
)

// EnvVar names the environment variable [Load] reads.
const EnvVar = "PRESENCE_CONFIG"

// Credential sources.
const (
	CredentialEnv     = "env"
	CredentialFile    = "file"
	CredentialSealed  = "sealed"
	CredentialKeyring = "keyring"
)

// Watcher sources.
const (
	WatcherCommand = "command"
	WatcherFile    = "file"
)

// Config is the presenced configuration file.
type Config struct {
	Slack         SlackConfig        `yaml:"slack" toml:"slack" json:"slack"`
	Credential    CredentialConfig   `yaml:"credential" toml:"credential" json:"credential"`
	Automatic     AutomaticConfig    `yaml:"automatic" toml:"automatic" json:"automatic"`
	Retry         RetryConfig        `yaml:"retry" toml:"retry" json:"retry"`
	Presets       []PresetConfig     `yaml:"presets" toml:"presets" json:"presets"`
	Watcher       WatcherConfig      `yaml:"watcher" toml:"watcher" json:"watcher"`
	Control       ControlConfig      `yaml:"control" toml:"control" json:"control"`
	Metrics       MetricsConfig      `yaml:"metrics" toml:"metrics" json:"metrics"`
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications" json:"notifications"`
}

// SlackConfig configures the remote API client.
type SlackConfig struct {
	// APIURL is the Web API base. Default: https://slack.com/api
	APIURL string `yaml:"api_url" toml:"api_url" json:"api_url"`

	// Timeout bounds one HTTP request. Default: 10s
	Timeout Duration `yaml:"timeout" toml:"timeout" json:"timeout"`

	// RequestsPerMinute caps outgoing calls. Zero disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute"`
}

// CredentialConfig says where the bearer token lives.
type CredentialConfig struct {
	// Source is one of env, file, sealed, keyring.
	Source string `yaml:"source" toml:"source" json:"source"`

	// Env is the variable read by the env source.
	Env string `yaml:"env" toml:"env" json:"env"`

	// Path is the token file for the file and sealed sources.
	Path string `yaml:"path" toml:"path" json:"path"`

	// IdentityPath is the age identity that opens a sealed token.
	IdentityPath string `yaml:"identity_path" toml:"identity_path" json:"identity_path"`

	KeyringService string `yaml:"keyring_service" toml:"keyring_service" json:"keyring_service"`
	KeyringUser    string `yaml:"keyring_user" toml:"keyring_user" json:"keyring_user"`
}

// AutomaticConfig drives automatic mode.
type AutomaticConfig struct {
	// Networks maps a network name to the status shown on it.
	Networks map[string]presence.StatusTemplate `yaml:"networks" toml:"networks" json:"networks"`

	// DefaultStatus is sent on unmapped networks when
	// PreserveOnUnknown is false. The empty template clears the status.
	DefaultStatus presence.StatusTemplate `yaml:"default_status" toml:"default_status" json:"default_status"`

	PreserveOnUnknown bool     `yaml:"preserve_on_unknown" toml:"preserve_on_unknown" json:"preserve_on_unknown"`
	DebounceDelay     Duration `yaml:"debounce_delay" toml:"debounce_delay" json:"debounce_delay"`

	// Expiration is the lifetime of an automatic status on the server.
	Expiration Duration `yaml:"expiration" toml:"expiration" json:"expiration"`

	// RefreshInterval re-asserts the automatic status before it
	// expires. Must be shorter than Expiration.
	RefreshInterval Duration `yaml:"refresh_interval" toml:"refresh_interval" json:"refresh_interval"`
}

// RetryConfig bounds the retry chain of one dispatch.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay" toml:"base_delay" json:"base_delay"`
	MaxDelay   Duration `yaml:"max_delay" toml:"max_delay" json:"max_delay"`
}

// PresetConfig is one manual status offered in the menu.
type PresetConfig struct {
	Title string `yaml:"title" toml:"title" json:"title"`
	Text  string `yaml:"text" toml:"text" json:"text"`
	Glyph string `yaml:"glyph" toml:"glyph" json:"glyph"`

	// Expiration is minutes, a duration, end_of_day, or never.
	Expiration string `yaml:"expiration" toml:"expiration" json:"expiration"`
}

// WatcherConfig selects the network notifier.
type WatcherConfig struct {
	// Source is command or file.
	Source string `yaml:"source" toml:"source" json:"source"`

	// Command prints the current network name. Empty output means
	// disconnected.
	Command      []string `yaml:"command" toml:"command" json:"command"`
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`

	// File holds the current network name, rewritten on change.
	File string `yaml:"file" toml:"file" json:"file"`
}

// ControlConfig configures the command socket.
type ControlConfig struct {
	Socket string `yaml:"socket" toml:"socket" json:"socket"`
}

// MetricsConfig configures the metrics listener.
type MetricsConfig struct {
	// Listen is a host:port. Empty disables the listener.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`
}

// NotificationConfig configures desktop notifications.
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Command string `yaml:"command" toml:"command" json:"command"`
}

// DefaultSocketPath is the control socket used when nothing is
// configured. It is expanded at load time.
const DefaultSocketPath = "${XDG_RUNTIME_DIR:-/tmp}/presence.sock"

// Default returns the configuration a file is decoded over. Fields a
// file does not mention keep these values.
func Default() *Config {
	engine := presence.DefaultConfig()
	return &Config{
		Slack: SlackConfig{
			APIURL:            "https://slack.com/api",
			Timeout:           Duration(10 * time.Second),
			RequestsPerMinute: 20,
		},
		Credential: CredentialConfig{
			Source:         CredentialKeyring,
			Env:            "PRESENCE_SLACK_TOKEN",
			KeyringService: "presence",
			KeyringUser:    "slack",
		},
		Automatic: AutomaticConfig{
			PreserveOnUnknown: engine.PreserveOnUnknown,
			DebounceDelay:     Duration(engine.DebounceDelay),
			Expiration:        Duration(engine.Expiration),
			RefreshInterval:   Duration(engine.RefreshInterval),
		},
		Retry: RetryConfig{
			MaxRetries: engine.MaxRetries,
			BaseDelay:  Duration(engine.BaseDelay),
			MaxDelay:   Duration(engine.MaxDelay),
		},
		Watcher: WatcherConfig{
			Source:       WatcherCommand,
			Command:      []string{"iwgetid", "-r"},
			PollInterval: Duration(5 * time.Second),
		},
		Control: ControlConfig{
			Socket: DefaultSocketPath,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Command: "notify-send",
		},
	}
}

// DefaultPresets are offered when the file lists none.
func DefaultPresets() []PresetConfig {
	return []PresetConfig{
		{Title: "Lunch", Text: "Lunch", Glyph: ":fork_and_knife:", Expiration: "60m"},
		{Title: "In a meeting", Text: "In a meeting", Glyph: ":spiral_calendar_pad:", Expiration: "60m"},
		{Title: "Focusing", Text: "Focusing", Glyph: ":headphones:", Expiration: "end_of_day"},
		{Title: "Out sick", Text: "Out sick", Glyph: ":face_with_thermometer:", Expiration: "end_of_day"},
		{Title: "On vacation", Text: "On vacation", Glyph: ":palm_tree:", Expiration: "never"},
	}
}

// Load loads the file named by PRESENCE_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your presence config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads, expands, and validates the file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err := cfg.decode(path, data); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if len(cfg.Presets) == 0 {
		cfg.Presets = DefaultPresets()
	}
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// decode merges data into c using the parser for path's extension.
func (c *Config) decode(path string, data []byte) error {
	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil

	case ".toml":
		meta, err := toml.Decode(string(data), c)
		if err != nil {
			return err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return nil

	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		return decoder.Decode(c)

	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .toml, or .json)", extension)
	}
}

// expandVariables expands path fields in place.
func (c *Config) expandVariables() {
	c.Credential.Path = ExpandPath(c.Credential.Path)
	c.Credential.IdentityPath = ExpandPath(c.Credential.IdentityPath)
	c.Watcher.File = ExpandPath(c.Watcher.File)
	c.Control.Socket = ExpandPath(c.Control.Socket)
}

// ExpandPath expands ${VAR} and ${VAR:-default} patterns from the
// environment, then a leading "~/".
func ExpandPath(path string) string {
	path = expandVars(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Slack.APIURL == "" {
		errs = append(errs, fmt.Errorf("slack.api_url is required"))
	}
	if c.Slack.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("slack.timeout must be positive"))
	}
	if c.Slack.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("slack.requests_per_minute must not be negative"))
	}

	switch c.Credential.Source {
	case CredentialEnv:
		if c.Credential.Env == "" {
			errs = append(errs, fmt.Errorf("credential.env is required for source %q", CredentialEnv))
		}
	case CredentialFile:
		if c.Credential.Path == "" {
			errs = append(errs, fmt.Errorf("credential.path is required for source %q", CredentialFile))
		}
	case CredentialSealed:
		if c.Credential.Path == "" || c.Credential.IdentityPath == "" {
			errs = append(errs, fmt.Errorf("credential.path and credential.identity_path are required for source %q", CredentialSealed))
		}
	case CredentialKeyring:
		if c.Credential.KeyringService == "" || c.Credential.KeyringUser == "" {
			errs = append(errs, fmt.Errorf("credential.keyring_service and credential.keyring_user are required for source %q", CredentialKeyring))
		}
	default:
		errs = append(errs, fmt.Errorf("credential.source must be one of: %v",
			[]string{CredentialEnv, CredentialFile, CredentialSealed, CredentialKeyring}))
	}

	if err := c.Engine().Validate(); err != nil {
		errs = append(errs, err)
	}

	for i, preset := range c.Presets {
		if strings.TrimSpace(preset.Text) == "" {
			errs = append(errs, fmt.Errorf("presets[%d]: text is required", i))
		}
		if _, err := presence.ParseExpirationSpec(preset.Expiration); err != nil {
			errs = append(errs, fmt.Errorf("presets[%d]: %w", i, err))
		}
	}

	switch c.Watcher.Source {
	case WatcherCommand:
		if len(c.Watcher.Command) == 0 {
			errs = append(errs, fmt.Errorf("watcher.command is required for source %q", WatcherCommand))
		}
		if c.Watcher.PollInterval <= 0 {
			errs = append(errs, fmt.Errorf("watcher.poll_interval must be positive"))
		}
	case WatcherFile:
		if c.Watcher.File == "" {
			errs = append(errs, fmt.Errorf("watcher.file is required for source %q", WatcherFile))
		}
	default:
		errs = append(errs, fmt.Errorf("watcher.source must be one of: %v", []string{WatcherCommand, WatcherFile}))
	}

	if c.Control.Socket == "" {
		errs = append(errs, fmt.Errorf("control.socket is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Engine converts the automatic and retry sections to an engine
// configuration.
func (c *Config) Engine() presence.Config {
	mapping := make(presence.EnvironmentMapping, len(c.Automatic.Networks))
	for name, template := range c.Automatic.Networks {
		mapping[name] = template
	}
	return presence.Config{
		Mapping:           mapping,
		DefaultStatus:     c.Automatic.DefaultStatus,
		PreserveOnUnknown: c.Automatic.PreserveOnUnknown,
		DebounceDelay:     c.Automatic.DebounceDelay.Std(),
		Expiration:        c.Automatic.Expiration.Std(),
		RefreshInterval:   c.Automatic.RefreshInterval.Std(),
		MaxRetries:        c.Retry.MaxRetries,
		BaseDelay:         c.Retry.BaseDelay.Std(),
		MaxDelay:          c.Retry.MaxDelay.Std(),
	}
}

// ManualPresets converts the presets section. Presets that fail to
// parse are skipped; Validate reports them.
func (c *Config) ManualPresets() []presence.Preset {
	presets := make([]presence.Preset, 0, len(c.Presets))
	for _, preset := range c.Presets {
		expiration, err := presence.ParseExpirationSpec(preset.Expiration)
		if err != nil {
			continue
		}
		title := preset.Title
		if title == "" {
			title = preset.Text
		}
		presets = append(presets, presence.Preset{
			Title:      title,
			Text:       preset.Text,
			Glyph:      preset.Glyph,
			Expiration: expiration,
		})
	}
	return presets
}
