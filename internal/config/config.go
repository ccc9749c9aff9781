// Package config resolves runtime settings from flags, environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/resultsets/internal/fanout"
	"github.com/roach88/resultsets/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. RESULTSETS_POOL_SIZE.
const EnvPrefix = "RESULTSETS"

// Keys double as flag names and YAML keys.
const (
	KeyDatabase     = "db"
	KeyPoolSize     = "pool-size"
	KeyNonblocking  = "nonblocking"
	KeyQueryTimeout = "query-timeout"
	KeyPolicy       = "policy"
	KeyLogLevel     = "log-level"
	KeyFormat       = "format"
)

// Defaults.
const (
	DefaultDatabase = "./resultsets.db"
	DefaultPolicy   = "scope"
	DefaultLogLevel = "info"
	DefaultFormat   = "text"
)

// Config is the resolved runtime configuration.
type Config struct {
	Database     string        `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool-size"`
	Nonblocking  bool          `mapstructure:"nonblocking"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
	ErrorPolicy  string        `mapstructure:"policy"`
	LogLevel     string        `mapstructure:"log-level"`
	Format       string        `mapstructure:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Database:    DefaultDatabase,
		PoolSize:    session.DefaultPoolSize,
		ErrorPolicy: DefaultPolicy,
		LogLevel:    DefaultLogLevel,
		Format:      DefaultFormat,
	}
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(KeyDatabase, d.Database, "SQLite database path (:memory: for an ephemeral store)")
	fs.Int(KeyPoolSize, d.PoolSize, "Maximum concurrently executing queries")
	fs.Bool(KeyNonblocking, d.Nonblocking, "Refuse queries when every worker is busy")
	fs.Duration(KeyQueryTimeout, d.QueryTimeout, "Per-query timeout (0 disables)")
	fs.String(KeyPolicy, d.ErrorPolicy, "Stream error policy (scope|terminate)")
	fs.String(KeyLogLevel, d.LogLevel, "Log level (debug|info|warn|error)")
	fs.String(KeyFormat, d.Format, "Output format (text|json)")
}

// Load resolves configuration. Precedence, lowest first: defaults, the
// YAML file at configFile (if non-empty), RESULTSETS_* environment
// variables, flags set explicitly on flags (which may be nil).
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault(KeyDatabase, d.Database)
	v.SetDefault(KeyPoolSize, d.PoolSize)
	v.SetDefault(KeyNonblocking, d.Nonblocking)
	v.SetDefault(KeyQueryTimeout, d.QueryTimeout)
	v.SetDefault(KeyPolicy, d.ErrorPolicy)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyFormat, d.Format)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{KeyDatabase, KeyPoolSize, KeyNonblocking, KeyQueryTimeout, KeyPolicy, KeyLogLevel, KeyFormat} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can honour.
func (c *Config) Validate() error {
	if c.Database == "" {
		return &fanout.ConfigError{Field: KeyDatabase, Message: "database path is required"}
	}
	if c.PoolSize < 1 {
		return &fanout.ConfigError{Field: KeyPoolSize, Message: fmt.Sprintf("pool size must be at least 1, got %d", c.PoolSize)}
	}
	if c.QueryTimeout < 0 {
		return &fanout.ConfigError{Field: KeyQueryTimeout, Message: "query timeout must not be negative"}
	}
	if _, err := fanout.ParseErrorPolicy(c.ErrorPolicy); err != nil {
		return &fanout.ConfigError{Field: KeyPolicy, Message: err.Error()}
	}
	if _, err := c.level(); err != nil {
		return &fanout.ConfigError{Field: KeyLogLevel, Message: err.Error()}
	}
	if c.Format != "text" && c.Format != "json" {
		return &fanout.ConfigError{Field: KeyFormat, Message: fmt.Sprintf("invalid format %q: must be 'text' or 'json'", c.Format)}
	}
	return nil
}

// StreamPolicy returns the configured stream error policy.
// Invalid values fall back to fanout.ScopeErrors; Validate reports them.
func (c *Config) StreamPolicy() fanout.ErrorPolicy {
	p, err := fanout.ParseErrorPolicy(c.ErrorPolicy)
	if err != nil {
		return fanout.ScopeErrors
	}
	return p
}

// SessionConfig maps the configuration onto session settings.
func (c *Config) SessionConfig(logger *slog.Logger) session.Config {
	return session.Config{
		PoolSize:     c.PoolSize,
		Nonblocking:  c.Nonblocking,
		QueryTimeout: c.QueryTimeout,
		Logger:       logger,
	}
}

// Logger builds a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}
