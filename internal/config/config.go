package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	AppName               = "smarttodo"
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "smarttodo.db"
	DefaultLogName        = "smarttodo.log"

	// EnvPrefix namespaces overrides, e.g. SMARTTODO_REMOTE_ENABLED=true.
	EnvPrefix = "SMARTTODO"
)

type Keymap struct {
	Quit      string `toml:"quit" mapstructure:"quit"`
	Add       string `toml:"add" mapstructure:"add"`
	Up        string `toml:"up" mapstructure:"up"`
	Down      string `toml:"down" mapstructure:"down"`
	Left      string `toml:"left" mapstructure:"left"`
	Right     string `toml:"right" mapstructure:"right"`
	Toggle    string `toml:"toggle" mapstructure:"toggle"`
	Delete    string `toml:"delete" mapstructure:"delete"`
	Edit      string `toml:"edit" mapstructure:"edit"`
	Search    string `toml:"search" mapstructure:"search"`
	Confirm   string `toml:"confirm" mapstructure:"confirm"`
	Cancel    string `toml:"cancel" mapstructure:"cancel"`
	Refresh   string `toml:"refresh" mapstructure:"refresh"`
	NextField string `toml:"next_field" mapstructure:"next_field"`
	PrevField string `toml:"prev_field" mapstructure:"prev_field"`
}

type Local struct {
	SeedSamples bool `toml:"seed_samples" mapstructure:"seed_samples"`
}

// Remote selects the relational backend. Enabled without a DSN is a
// configuration error, not a silent fallback.
type Remote struct {
	Enabled     bool   `toml:"enabled" mapstructure:"enabled"`
	Driver      string `toml:"driver" mapstructure:"driver"`
	DSN         string `toml:"dsn" mapstructure:"dsn"`
	Timeout     string `toml:"timeout" mapstructure:"timeout"`
	AutoMigrate bool   `toml:"auto_migrate" mapstructure:"auto_migrate"`
}

type Server struct {
	Addr string `toml:"addr" mapstructure:"addr"`
}

type Config struct {
	DBPath          string `toml:"db_path" mapstructure:"db_path"`
	Env             string `toml:"env" mapstructure:"env"`
	LogFile         string `toml:"log_file" mapstructure:"log_file"`
	DefaultFilter   string `toml:"default_filter" mapstructure:"default_filter"`
	RefreshInterval string `toml:"refresh_interval" mapstructure:"refresh_interval"`
	RefetchInterval string `toml:"refetch_interval" mapstructure:"refetch_interval"`
	StaleTime       string `toml:"stale_time" mapstructure:"stale_time"`
	ReadRetries     int    `toml:"read_retries" mapstructure:"read_retries"`
	Local           Local  `toml:"local" mapstructure:"local"`
	Remote          Remote `toml:"remote" mapstructure:"remote"`
	Server          Server `toml:"server" mapstructure:"server"`
	Keys            Keymap `toml:"keys" mapstructure:"keys"`
}

// ResolveConfigPath honours SMARTTODO_CONFIG, then XDG_CONFIG_HOME, then
// ~/.config.
func ResolveConfigPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DefaultConfigDir(), DefaultConfigFileName)
}

func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// LoadOrCreate writes the default file on first use, then reads it back
// with environment overrides applied. Relative paths in the file are
// resolved against the file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	} else if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogName
	}
	dir := filepath.Dir(path)
	cfg.DBPath = resolve(dir, cfg.DBPath)
	cfg.LogFile = resolve(dir, cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Remote.Enabled && strings.TrimSpace(c.Remote.DSN) == "" {
		return errors.New("remote.enabled is set but remote.dsn is empty")
	}
	switch c.Remote.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported remote.driver %q", c.Remote.Driver)
	}
	for name, raw := range map[string]string{
		"refresh_interval": c.RefreshInterval,
		"refetch_interval": c.RefetchInterval,
		"stale_time":       c.StaleTime,
		"remote.timeout":   c.Remote.Timeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.ReadRetries < 0 {
		return fmt.Errorf("read_retries must not be negative, got %d", c.ReadRetries)
	}
	return nil
}

func (c Config) RefreshEvery() time.Duration { return durationOr(c.RefreshInterval, time.Minute) }

func (c Config) RefetchEvery() time.Duration { return durationOr(c.RefetchInterval, time.Minute) }

func (c Config) Stale() time.Duration { return durationOr(c.StaleTime, 30*time.Second) }

func (c Config) RemoteTimeout() time.Duration { return durationOr(c.Remote.Timeout, 5*time.Second) }

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(dir, p)
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// setDefaults registers every key so AutomaticEnv can override keys the
// file does not mention.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("env", cfg.Env)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("default_filter", cfg.DefaultFilter)
	v.SetDefault("refresh_interval", cfg.RefreshInterval)
	v.SetDefault("refetch_interval", cfg.RefetchInterval)
	v.SetDefault("stale_time", cfg.StaleTime)
	v.SetDefault("read_retries", cfg.ReadRetries)
	v.SetDefault("local.seed_samples", cfg.Local.SeedSamples)
	v.SetDefault("remote.enabled", cfg.Remote.Enabled)
	v.SetDefault("remote.driver", cfg.Remote.Driver)
	v.SetDefault("remote.dsn", cfg.Remote.DSN)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout)
	v.SetDefault("remote.auto_migrate", cfg.Remote.AutoMigrate)
	v.SetDefault("server.addr", cfg.Server.Addr)
}

func defaultConfig() Config {
	return Config{
		DBPath:          DefaultDBName,
		Env:             "prod",
		LogFile:         DefaultLogName,
		DefaultFilter:   "all",
		RefreshInterval: "1m",
		RefetchInterval: "1m",
		StaleTime:       "30s",
		ReadRetries:     1,
		Local: Local{
			SeedSamples: false,
		},
		Remote: Remote{
			Enabled:     false,
			Driver:      "postgres",
			Timeout:     "5s",
			AutoMigrate: false,
		},
		Server: Server{
			Addr: "127.0.0.1:8080",
		},
		Keys: Keymap{
			Quit:      "q",
			Add:       "a",
			Up:        "k",
			Down:      "j",
			Left:      "h",
			Right:     "l",
			Toggle:    " ",
			Delete:    "d",
			Edit:      "e",
			Search:    "/",
			Confirm:   "enter",
			Cancel:    "esc",
			Refresh:   "r",
			NextField: "tab",
			PrevField: "shift+tab",
		},
	}
}

// Default returns the configuration written on first launch.
func Default() Config {
	return defaultConfig()
}
