// Package config loads gostream settings from a TOML file, GOSTREAM_*
// environment variables and built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppName is used for the config file name and the environment prefix
const AppName = "gostream"

// EnvKeyReplacer maps nested keys onto environment variable names
var EnvKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// Hoster kinds
const (
	KindDirect     = "direct"
	KindOracle     = "oracle"
	KindEmbed      = "embed"
	KindObfuscated = "obfuscated"
)

// Oracle is a remote decryption service
type Oracle struct {
	DecryptURL string            `mapstructure:"decrypt_url"`
	EncryptURL string            `mapstructure:"encrypt_url"`
	UserAgent  string            `mapstructure:"user_agent"`
	Headers    map[string]string `mapstructure:"headers"`
}

// Hoster configures one hoster family
type Hoster struct {
	Kind string `mapstructure:"kind"`
	// Oracle names an entry of Config.Oracles
	Oracle         string            `mapstructure:"oracle"`
	BaseURL        string            `mapstructure:"base_url"`
	Referer        string            `mapstructure:"referer"`
	UserAgent      string            `mapstructure:"user_agent"`
	Headers        map[string]string `mapstructure:"headers"`
	EncryptLocator bool              `mapstructure:"encrypt_locator"`
	Attempts       uint              `mapstructure:"attempts"`
	RetryDelay     time.Duration     `mapstructure:"retry_delay"`
}

// Pipeline tunes the fan-out
type Pipeline struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Deadline       time.Duration `mapstructure:"deadline"`
	Dedupe         bool          `mapstructure:"dedupe"`
}

// Subtitles configures the external search API
type Subtitles struct {
	SearchURL     string            `mapstructure:"search_url"`
	SearchHeaders map[string]string `mapstructure:"search_headers"`
	CacheTTL      time.Duration     `mapstructure:"cache_ttl"`
	CacheSize     int               `mapstructure:"cache_size"`
}

// Server configures the HTTP API
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Config is the full application configuration
type Config struct {
	Debug     bool      `mapstructure:"debug"`
	Perf      bool      `mapstructure:"perf"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Subtitles Subtitles `mapstructure:"subtitles"`
	Server    Server    `mapstructure:"server"`
	// Fallback is the hoster family used for unknown families; empty disables it
	Fallback string            `mapstructure:"fallback"`
	Oracles  map[string]Oracle `mapstructure:"oracles"`
	Hosters  map[string]Hoster `mapstructure:"hosters"`
}

// defaults lists every scalar key with its factory value
var defaults = map[string]any{
	"debug":                    false,
	"perf":                     false,
	"pipeline.max_concurrency": 4,
	"pipeline.deadline":        30 * time.Second,
	"pipeline.dedupe":          true,
	"subtitles.search_url":     "",
	"subtitles.cache_ttl":      10 * time.Minute,
	"subtitles.cache_size":     256,
	"server.addr":              ":8080",
	"fallback":                 "",
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			MaxConcurrency: 4,
			Deadline:       30 * time.Second,
			Dedupe:         true,
		},
		Subtitles: Subtitles{
			CacheTTL:  10 * time.Minute,
			CacheSize: 256,
		},
		Server:  Server{Addr: ":8080"},
		Oracles: map[string]Oracle{},
		Hosters: map[string]Hoster{
			KindDirect: {Kind: KindDirect},
		},
	}
}

// Dir returns the default configuration directory
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, AppName)
}

// Load reads the configuration. An empty path searches the user config
// directory and the working directory for gostream.toml; a missing file
// there is not an error. An explicit path must exist.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	v.SetTypeByDefaultValue(true)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize lowercases family names and fills in the built-in hosters
func (c *Config) normalize() {
	if len(c.Hosters) == 0 {
		c.Hosters = Default().Hosters
	}
	hosters := make(map[string]Hoster, len(c.Hosters))
	for name, h := range c.Hosters {
		h.Kind = strings.ToLower(strings.TrimSpace(h.Kind))
		h.Oracle = strings.ToLower(strings.TrimSpace(h.Oracle))
		hosters[strings.ToLower(name)] = h
	}
	c.Hosters = hosters

	oracles := make(map[string]Oracle, len(c.Oracles))
	for name, o := range c.Oracles {
		oracles[strings.ToLower(name)] = o
	}
	c.Oracles = oracles
	c.Fallback = strings.ToLower(strings.TrimSpace(c.Fallback))
}

// Validate checks cross references between hosters and oracles
func (c *Config) Validate() error {
	if c.Pipeline.MaxConcurrency <= 0 {
		return errors.Errorf("pipeline.max_concurrency must be positive, got %d", c.Pipeline.MaxConcurrency)
	}
	if c.Pipeline.Deadline <= 0 {
		return errors.Errorf("pipeline.deadline must be positive, got %s", c.Pipeline.Deadline)
	}

	for _, name := range c.HosterNames() {
		h := c.Hosters[name]
		switch h.Kind {
		case KindDirect, KindObfuscated:
		case KindOracle:
			if h.Oracle == "" {
				return errors.Errorf("hoster %q: kind oracle needs an oracle", name)
			}
			fallthrough
		case KindEmbed:
			if h.Oracle == "" {
				continue
			}
			o, ok := c.Oracles[h.Oracle]
			if !ok {
				return errors.Errorf("hoster %q: unknown oracle %q", name, h.Oracle)
			}
			if o.DecryptURL == "" {
				return errors.Errorf("oracle %q: decrypt_url is required", h.Oracle)
			}
		default:
			return errors.Errorf("hoster %q: unknown kind %q", name, h.Kind)
		}
	}

	if c.Fallback != "" {
		if _, ok := c.Hosters[c.Fallback]; !ok {
			return errors.Errorf("fallback %q is not a configured hoster", c.Fallback)
		}
	}
	return nil
}

// HosterNames returns the configured families in sorted order
func (c *Config) HosterNames() []string {
	names := make([]string, 0, len(c.Hosters))
	for name := range c.Hosters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
