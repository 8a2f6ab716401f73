package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHATSTREAM"

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	Secret        string        `mapstructure:"secret"`
	StreamPath    string        `mapstructure:"stream_path"`
	WSPath        string        `mapstructure:"ws_path"`
	FragmentDelay time.Duration `mapstructure:"fragment_delay"`
	RateLimit     RateLimit     `mapstructure:"rate_limit"`
	Log           Log           `mapstructure:"log"`
	Client        Client        `mapstructure:"client"`
}

type RateLimit struct {
	Requests int           `mapstructure:"requests"`
	Interval time.Duration `mapstructure:"interval"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Client struct {
	BaseURL   string `mapstructure:"base_url"`
	Transport string `mapstructure:"transport"`
	SessionID string `mapstructure:"session_id"`
}

var (
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidPort      = errors.New("invalid port")
	ErrInvalidTransport = errors.New("invalid transport")
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// New returns a viper instance with defaults and env overrides wired.
// path may be empty, in which case config/config.<CONFIG_ENV>.yaml is used.
func New(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "change-me")
	v.SetDefault("stream_path", "/message/chat/stream/history")
	v.SetDefault("ws_path", "/message/chat/ws/history")
	v.SetDefault("fragment_delay", "50ms")
	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.interval", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.transport", "sse")
	v.SetDefault("client.session_id", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file for CONFIG_ENV, falling back to defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

func LoadFile(path string) (*Config, error) {
	v := New(path)
	if err := Read(v); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Read loads the config file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
		return nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("config file not found, using defaults")
		return nil
	default:
		return fmt.Errorf("failed to read config: %w", err)
	}
}

// BindFlags lets command line flags override file and env values.
// Flag names use dashes; keys use underscores under the client section.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"client.base_url":   "base-url",
		"client.transport":  "transport",
		"client.session_id": "session",
		"log.level":         "log-level",
	} {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	switch c.Client.Transport {
	case "sse", "ws":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, c.Client.Transport)
	}
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.Interval <= 0) {
		return fmt.Errorf("%w: %d per %s", ErrInvalidRateLimit, c.RateLimit.Requests, c.RateLimit.Interval)
	}
	return nil
}

// Watch calls fn with the re-decoded config whenever the file changes.
// Invalid edits are logged and skipped.
func Watch(v *viper.Viper, fn func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		fn(cfg)
	})
	v.WatchConfig()
}
