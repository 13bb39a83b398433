package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, DefaultSite, cfg.Site)
	assert.Equal(t, DefaultRate, cfg.Rate)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultPasswordEnv, cfg.PasswordEnv)
	assert.True(t, cfg.Keyring.Enabled)
	assert.Equal(t, DefaultKeyringService, cfg.Keyring.Service)
	assert.Equal(t, DefaultVariants, cfg.Remote.Variants)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTP.Timeout)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, DefaultRetentionDays, cfg.Journal.RetentionDays)
	assert.True(t, cfg.Index.Enabled)
	assert.False(t, cfg.Preserve)
	assert.Empty(t, cfg.Exclude)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "kuvasync")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
path: ~/pictures
site: https://example.kuvat.fi
rate: 2
rates:
  picture: 0.5
preserve: true
concurrency: 4
exclude:
  - /private/**
http:
  timeout: 15s
journal:
  retention_days: 7
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "pictures"), cfg.Path)
	assert.Equal(t, "https://example.kuvat.fi", cfg.Site)
	assert.Equal(t, 2.0, cfg.Rate)
	assert.Equal(t, 0.5, cfg.RateFor(cfg.Rates.Picture))
	assert.Equal(t, 2.0, cfg.RateFor(cfg.Rates.Listing))
	assert.True(t, cfg.Preserve)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []string{"/private/**"}, cfg.Exclude)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 7, cfg.Journal.RetentionDays)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("KUVASYNC_SITE", "https://env.kuvat.fi")
	t.Setenv("KUVASYNC_JOURNAL_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.kuvat.fi", cfg.Site)
	assert.False(t, cfg.Journal.Enabled)
}

func TestNew_ExplicitFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("concurrency: 3\n"), 0o644))

	v, err := New(file)
	require.NoError(t, err)
	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Concurrency)

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit file must exist")
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty path", mutate: func(c *Config) { c.Path = "" }},
		{name: "empty site", mutate: func(c *Config) { c.Site = "" }},
		{name: "negative rate", mutate: func(c *Config) { c.Rates.Auth = -1 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }},
		{name: "bad min free", mutate: func(c *Config) { c.MinFree = "lots" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Logging.Rotation.MaxSize = "1M"
	lc := cfg.LoggingConfig()
	assert.Equal(t, int64(1024*1024), lc.Rotation.MaxSize)
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, 5, lc.Rotation.MaxBackups)
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	xdgDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	path, written, err := WriteDefault()
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, filepath.Join(xdgDir, "kuvasync", "config.yaml"), path)

	_, written, err = WriteDefault()
	require.NoError(t, err)
	assert.False(t, written, "existing files are left alone")

	// The generated file must load cleanly.
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSite, cfg.Site)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTP.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	got, err := ExpandPath("~/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), got)

	got, err = ExpandPath("/abs")
	require.NoError(t, err)
	assert.Equal(t, "/abs", got)
}
