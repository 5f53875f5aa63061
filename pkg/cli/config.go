package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
	// DefaultSink is the sink kind used when the config names none.
	DefaultSink = "autoaudiosink"
	// DefaultPollInterval is the position polling period.
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrUnknownKey is returned by Config.Set for keys it does not know.
var ErrUnknownKey = errors.New("cli: unknown config key")

// Config is the gizplay configuration file.
type Config struct {
	// AppName is the application name; it picks the directory under $HOME.
	AppName string `yaml:"-" json:"-"`

	// Sink is the sink element kind used by play.
	Sink string `yaml:"sink,omitempty" json:"sink,omitempty"`

	// PollInterval is how long the player waits for events between
	// position polls.
	PollInterval Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`

	// Seek is the seek-once policy applied by play.
	Seek SeekConfig `yaml:"seek,omitempty" json:"seek,omitzero"`

	// ResampleRate fixes the output sample rate. Zero keeps the source rate.
	ResampleRate int `yaml:"resample_rate,omitempty" json:"resample_rate,omitempty"`

	// LinkTimeout is how long uridecodebin waits for its ports to be linked.
	LinkTimeout Duration `yaml:"link_timeout,omitempty" json:"link_timeout,omitempty"`

	History HistoryConfig `yaml:"history,omitempty" json:"history,omitzero"`
	S3      S3Config      `yaml:"s3,omitempty" json:"s3,omitzero"`
	Log     LogConfig     `yaml:"log,omitempty" json:"log,omitzero"`

	// configPath is the path to the config file
	configPath string
}

// SeekConfig jumps to To once playback passes At. A zero At disables it.
type SeekConfig struct {
	At Duration `yaml:"at,omitempty" json:"at,omitempty"`
	To Duration `yaml:"to,omitempty" json:"to,omitempty"`
}

// HistoryConfig controls the resume-position store.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Dir overrides the default store directory.
	Dir      string `yaml:"dir,omitempty" json:"dir,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty" json:"in_memory,omitempty"`
}

// S3Config configures access to s3:// URIs.
type S3Config struct {
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty" json:"secret_key,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty" json:"path_style,omitempty"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `yaml:"level,omitempty" json:"level,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{AppName: appName, configPath: configPath}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty config file
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := cfg.LogLevel(); err != nil {
		return nil, err
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// SinkKind returns Sink, or DefaultSink when unset.
func (c *Config) SinkKind() string {
	if c.Sink == "" {
		return DefaultSink
	}
	return c.Sink
}

// Poll returns PollInterval, or DefaultPollInterval when unset.
func (c *Config) Poll() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval.Std()
}

// LogLevel parses Log.Level. Empty means info.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return l, nil
}

// Masked returns a copy safe to print: secrets are masked.
func (c *Config) Masked() *Config {
	m := *c
	m.S3.SecretKey = MaskAPIKey(c.S3.SecretKey)
	return &m
}

type setter func(c *Config, v string) error

var setters = map[string]setter{
	"sink":              func(c *Config, v string) error { c.Sink = v; return nil },
	"poll_interval":     durationSetter(func(c *Config) *Duration { return &c.PollInterval }),
	"seek.at":           durationSetter(func(c *Config) *Duration { return &c.Seek.At }),
	"seek.to":           durationSetter(func(c *Config) *Duration { return &c.Seek.To }),
	"link_timeout":      durationSetter(func(c *Config) *Duration { return &c.LinkTimeout }),
	"resample_rate":     intSetter(func(c *Config) *int { return &c.ResampleRate }),
	"history.enabled":   boolSetter(func(c *Config) *bool { return &c.History.Enabled }),
	"history.dir":       func(c *Config, v string) error { c.History.Dir = v; return nil },
	"history.in_memory": boolSetter(func(c *Config) *bool { return &c.History.InMemory }),
	"s3.region":         func(c *Config, v string) error { c.S3.Region = v; return nil },
	"s3.endpoint":       func(c *Config, v string) error { c.S3.Endpoint = v; return nil },
	"s3.access_key":     func(c *Config, v string) error { c.S3.AccessKey = v; return nil },
	"s3.secret_key":     func(c *Config, v string) error { c.S3.SecretKey = v; return nil },
	"s3.path_style":     boolSetter(func(c *Config) *bool { return &c.S3.PathStyle }),
	"log.level": func(c *Config, v string) error {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err != nil {
			return err
		}
		c.Log.Level = strings.ToLower(v)
		return nil
	},
}

func durationSetter(field func(*Config) *Duration) setter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = Duration(d)
		return nil
	}
}

func intSetter(field func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolSetter(field func(*Config) *bool) setter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// Keys returns the keys accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set parses value into the field named by the dotted key and saves the
// config.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	if err := set(c, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Save()
}

// MaskAPIKey masks a secret for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Duration is a time.Duration written as "1m30s" in YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
