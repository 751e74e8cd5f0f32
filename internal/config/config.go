// Package config loads the ddt CLI and server configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, DDT_* environment variables and finally command-line flags
// (applied by the caller on the returned struct).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DDT_"

// Config is the root configuration.
type Config struct {
	Packs   PacksConfig   `yaml:"packs" mapstructure:"packs"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
}

// PacksConfig selects where packs are acquired from. BaseURL wins over Dir.
type PacksConfig struct {
	Dir     string        `yaml:"dir" mapstructure:"dir" validate:"required_without=BaseURL"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Watch   bool          `yaml:"watch" mapstructure:"watch"`
}

// StoreConfig selects the export store for case snapshots.
type StoreConfig struct {
	Kind      string        `yaml:"kind" mapstructure:"kind" validate:"oneof=memory file redis"`
	Dir       string        `yaml:"dir" mapstructure:"dir" validate:"required_if=Kind file"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr" validate:"required_if=Kind redis"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
	// EncryptionKey is a 32-byte AES key, base64 encoded. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key" mapstructure:"encryption_key" validate:"omitempty,base64"`
	MaskKeys      []string `yaml:"mask_keys" mapstructure:"mask_keys"`
}

// ServerConfig configures `ddt serve`.
type ServerConfig struct {
	Addr    string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	Metrics bool   `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
}

// SessionConfig configures case sessions.
type SessionConfig struct {
	// Template seeds new cases with the default deficiency case blob.
	Template bool `yaml:"template" mapstructure:"template"`
	// DistributedLocks serializes sessions through the Redis store.
	DistributedLocks bool          `yaml:"distributed_locks" mapstructure:"distributed_locks"`
	LockTTL          time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Packs:   PacksConfig{Dir: "decision-trees", Timeout: 10 * time.Second},
		Store:   StoreConfig{Kind: "memory", Dir: ".ddt/cases"},
		Server:  ServerConfig{Addr: "localhost:8080", Metrics: true},
		Log:     LogConfig{Level: "info"},
		Session: SessionConfig{Template: true, LockTTL: 30 * time.Second},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.DistributedLocks && c.Store.Kind != "redis" {
		return errors.New("invalid config: session.distributed_locks requires store.kind redis")
	}
	return nil
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides from environ (os.Environ when nil) and validates the result.
func Load(path string, environ []string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	if environ == nil {
		environ = os.Environ()
	}
	applyEnv(raw, environ)

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv folds DDT_SECTION_FIELD=value pairs into raw as raw[section][field].
// The first underscore separates the section; the rest is the field name.
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		section, field, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_")
		if !ok || section == "" || field == "" {
			continue
		}
		sub, ok := raw[section].(map[string]any)
		if !ok {
			sub = map[string]any{}
			raw[section] = sub
		}
		sub[field] = value
	}
}
