package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resultsets/internal/fanout"
	"github.com/roach88/resultsets/internal/session"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resultsets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, session.DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, fanout.ScopeErrors, cfg.StreamPolicy())
}

func TestLoad_UnsetFlagsKeepDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
db: /tmp/users.db
pool-size: 3
nonblocking: true
query-timeout: 2s
policy: terminate
`)
	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/users.db", cfg.Database)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.True(t, cfg.Nonblocking)
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout)
	assert.Equal(t, fanout.TerminateOnError, cfg.StreamPolicy())
	assert.Equal(t, DefaultFormat, cfg.Format)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "pool-size: 3\n")
	t.Setenv("RESULTSETS_POOL_SIZE", "5")
	t.Setenv("RESULTSETS_QUERY_TIMEOUT", "250ms")

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.QueryTimeout)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("RESULTSETS_POOL_SIZE", "5")
	t.Setenv("RESULTSETS_DB", "/from/env.db")

	cfg, err := Load(newFlags(t, "--pool-size", "2"), "")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, "/from/env.db", cfg.Database, "unset flags do not mask env")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"pool size zero", []string{"--pool-size", "0"}, KeyPoolSize},
		{"negative timeout", []string{"--query-timeout", "-1s"}, KeyQueryTimeout},
		{"unknown policy", []string{"--policy", "retry"}, KeyPolicy},
		{"unknown level", []string{"--log-level", "loud"}, KeyLogLevel},
		{"unknown format", []string{"--format", "xml"}, KeyFormat},
		{"empty db", []string{"--db", ""}, KeyDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...), "")
			require.Error(t, err)

			var ce *fanout.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := Default()
	cfg.PoolSize = 2
	cfg.Nonblocking = true
	cfg.QueryTimeout = time.Second

	sc := cfg.SessionConfig(nil)
	assert.Equal(t, 2, sc.PoolSize)
	assert.True(t, sc.Nonblocking)
	assert.Equal(t, time.Second, sc.QueryTimeout)
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
