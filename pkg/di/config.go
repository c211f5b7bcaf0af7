package di

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-restaurant-sync/cache"
	"github.com/goliatone/go-restaurant-sync/connectivity"
	"github.com/goliatone/go-restaurant-sync/remote"
	"github.com/goliatone/go-restaurant-sync/store"
	toml "github.com/pelletier/go-toml/v2"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL = "RESTAURANT_SYNC_BASE_URL"
	EnvDSN     = "RESTAURANT_SYNC_DSN"
)

// Duration is a time.Duration written as a Go duration string ("30s", "5m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full engine configuration as stored in a TOML file.
type Config struct {
	BaseURL string       `toml:"base_url"`
	Timeout Duration     `toml:"timeout"`
	Online  bool         `toml:"online"`
	Store   store.Config `toml:"store"`
	Cache   CacheConfig  `toml:"cache"`
	Replay  ReplayConfig `toml:"replay"`
}

// CacheConfig configures the coalescing cache in front of remote reads.
type CacheConfig struct {
	Capacity           int      `toml:"capacity"`
	NumShards          int      `toml:"num_shards"`
	TTL                Duration `toml:"ttl"`
	EvictionPercentage int      `toml:"eviction_percentage"`
	EvictionInterval   Duration `toml:"eviction_interval"`
}

// ReplayConfig configures queue replay.
type ReplayConfig struct {
	MaxAttempts int `toml:"max_attempts"`
}

// DefaultConfig returns a configuration pointing at a local service with an in-memory store.
func DefaultConfig() Config {
	c := cache.DefaultConfig()
	return Config{
		BaseURL: remote.DefaultBaseURL,
		Timeout: Duration(remote.DefaultTimeout),
		Online:  true,
		Store:   store.DefaultConfig(),
		Cache: CacheConfig{
			Capacity:           c.Capacity,
			NumShards:          c.NumShards,
			TTL:                Duration(c.TTL),
			EvictionPercentage: c.EvictionPercentage,
			EvictionInterval:   Duration(c.EvictionInterval),
		},
		Replay: ReplayConfig{MaxAttempts: connectivity.DefaultMaxAttempts},
	}
}

// CacheServiceConfig converts the cache section.
func (c Config) CacheServiceConfig() cache.Config {
	return cache.Config{
		Capacity:           c.Cache.Capacity,
		NumShards:          c.Cache.NumShards,
		TTL:                c.Cache.TTL.Std(),
		EvictionPercentage: c.Cache.EvictionPercentage,
		EvictionInterval:   c.Cache.EvictionInterval.Std(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(Duration(time.Millisecond))),
		validation.Field(&c.Store, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Store,
				validation.Field(&c.Store.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
				validation.Field(&c.Store.DSN, validation.Required),
			)
		})),
		validation.Field(&c.Cache, validation.By(func(any) error {
			return c.CacheServiceConfig().Validate()
		})),
		validation.Field(&c.Replay, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Replay,
				validation.Field(&c.Replay.MaxAttempts, validation.Required, validation.Min(1)),
			)
		})),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// LoadConfig reads path over DefaultConfig, so keys missing from the file keep their
// defaults. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("cannot read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML.
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides the base URL and store DSN from the environment. lookup is usually
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := lookup(EnvDSN); ok && v != "" {
		cfg.Store.DSN = v
	}
}

// SetValue sets a field using dot notation, e.g. "store.dsn" or "base_url".
func SetValue(cfg *Config, key, value string) error {
	section, field, nested := strings.Cut(key, ".")
	if !nested {
		switch section {
		case "base_url":
			cfg.BaseURL = value
		case "timeout":
			return cfg.Timeout.UnmarshalText([]byte(value))
		case "online":
			return setBool(&cfg.Online, key, value)
		default:
			return fmt.Errorf("unknown config key %q (valid: base_url, timeout, online, store.*, cache.*, replay.*)", key)
		}
		return nil
	}

	switch section {
	case "store":
		switch field {
		case "driver":
			cfg.Store.Driver = value
		case "dsn":
			cfg.Store.DSN = value
		default:
			return fmt.Errorf("unknown field %q in section [store]", field)
		}
	case "cache":
		switch field {
		case "capacity":
			return setInt(&cfg.Cache.Capacity, key, value)
		case "num_shards":
			return setInt(&cfg.Cache.NumShards, key, value)
		case "ttl":
			return cfg.Cache.TTL.UnmarshalText([]byte(value))
		case "eviction_percentage":
			return setInt(&cfg.Cache.EvictionPercentage, key, value)
		case "eviction_interval":
			return cfg.Cache.EvictionInterval.UnmarshalText([]byte(value))
		default:
			return fmt.Errorf("unknown field %q in section [cache]", field)
		}
	case "replay":
		switch field {
		case "max_attempts":
			return setInt(&cfg.Replay.MaxAttempts, key, value)
		default:
			return fmt.Errorf("unknown field %q in section [replay]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: store, cache, replay)", section)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}
