package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "production", cfg.Log.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Migration.MaxConcurrency)
	assert.Empty(t, cfg.Sites)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/sitecache
log:
  level: debug
sites:
  - id: school
    name: School
    url: https://school.example
  - id: college
migration:
  max_concurrency: 2
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sitecache", cfg.DataDir)
	assert.Equal(t, "production", cfg.Log.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Migration.MaxConcurrency)
	require.Len(t, cfg.Sites, 2)

	site, ok := cfg.Site("school")
	require.True(t, ok)
	assert.Equal(t, "https://school.example", site.URL)
	_, ok = cfg.Site("other")
	assert.False(t, ok)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SITECACHE_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sites:
  - id: a
  - id: a
`), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "duplicate id")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		ok   bool
	}{
		{"valid", AppConfig{DataDir: "/d", Sites: []SiteConfig{{ID: "a"}, {ID: "b"}}}, true},
		{"no data dir", AppConfig{}, false},
		{"empty site id", AppConfig{DataDir: "/d", Sites: []SiteConfig{{ID: " "}}}, false},
		{"path in site id", AppConfig{DataDir: "/d", Sites: []SiteConfig{{ID: "../a"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &AppConfig{
		DataDir:   "/data",
		Log:       LogConfig{Env: "development", Level: "debug"},
		Sites:     []SiteConfig{{ID: "school", Name: "School", URL: "https://school.example"}},
		Migration: MigrationConfig{MaxConcurrency: 3},
	}
	require.NoError(t, SaveConfig(path, in))

	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
