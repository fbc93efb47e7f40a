package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	assert.True(t, s.Resume)
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, 2*time.Second, s.RetryDelayDuration())
	assert.Equal(t, 30*time.Second, s.RequestTimeoutDuration())
	assert.True(t, s.Excluded().Has("space-age"))
	assert.True(t, s.Excluded().Has("base"))
	assert.False(t, s.Excluded().Has("flib"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().MaxRetries, s.MaxRetries)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "output_dir: /srv/mods\nmax_retries: 5\ninclude_optional: true\nexcluded_mods:\n  - space-age\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("FMD_MAX_RETRIES", "7")
	t.Setenv("FMD_LOG_LEVEL", "debug")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mods", s.OutputDir)
	assert.Equal(t, 7, s.MaxRetries, "environment overrides the file")
	assert.True(t, s.IncludeOptional)
	assert.Equal(t, []string{"space-age"}, s.ExcludedMods)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 10, s.MaxDepth, "unset keys keep defaults")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: [nope"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	s := DefaultSettings()
	s.OutputDir = "/tmp/mods"
	s.MaxConcurrentMods = 4
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mods", loaded.OutputDir)
	assert.Equal(t, 4, loaded.MaxConcurrentMods)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	s := DefaultSettings()
	s.OutputDir = ""
	s.MaxRetries = 0
	s.MaxConcurrentMods = 11
	s.StorageURL = "not a url"
	s.LogLevel = "loud"

	err := s.Validate()
	require.Error(t, err)
	for _, want := range []string{"output_dir", "max_retries", "max_concurrent_mods", "storage_url", "log_level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestGet(t *testing.T) {
	s := DefaultSettings()

	for key, want := range map[string]string{
		"max_retries":   "3",
		"retry_delay":   "2",
		"resume":        "true",
		"provider":      "api",
		"excluded_mods": "base,core,freeplay,elevated-rails,quality,space-age",
	} {
		got, err := s.Get(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	_, err := s.Get("colour")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestSet(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Set("max_retries", "5"))
	require.NoError(t, s.Set("retry_delay", "0.5"))
	require.NoError(t, s.Set("include_optional", "yes"))
	require.NoError(t, s.Set("resume", "off"))
	require.NoError(t, s.Set("provider", "scraper"))
	require.NoError(t, s.Set("excluded_mods", "base, space-age,"))

	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, s.RetryDelayDuration())
	assert.True(t, s.IncludeOptional)
	assert.False(t, s.Resume)
	assert.Equal(t, "scraper", s.Provider)
	assert.Equal(t, []string{"base", "space-age"}, s.ExcludedMods)
	assert.Equal(t, DefaultSettings().CatalogURL, s.CatalogURL)
}

func TestSet_Rejects(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"resume", "maybe"},
		{"max_retries", "many"},
		{"max_retries", "2.5"},
		{"colour", "red"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := DefaultSettings()
			assert.Error(t, s.Set(tt.key, tt.value))
			assert.Equal(t, DefaultSettings(), s)
		})
	}
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 5\n"), 0644))
	t.Setenv("FMD_MAX_RETRIES", "7")

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.MaxRetries)
}

func TestValidate_Provider(t *testing.T) {
	s := DefaultSettings()
	s.Provider = "selenium"
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}
