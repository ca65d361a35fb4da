package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig creates a temporary config file with the given YAML content and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldtools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
store:
  kind: "sqlite"
  path: "/var/lib/fieldtools/settings.sqlite"
log:
  level: 3
  format: "json"
web:
  port: 8980
defaults:
  seed_presets: false
  focal_length_mm: 35.0
  aperture: 5.6
  distance_m: 2.5
`

// ---------- Load ----------

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "/var/lib/fieldtools/settings.sqlite", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8980, cfg.Web.Port)
	assert.False(t, cfg.Defaults.SeedPresets)
	assert.Equal(t, 35.0, cfg.Defaults.FocalLengthMm)
	assert.Equal(t, 5.6, cfg.Defaults.Aperture)
	assert.Equal(t, 2.5, cfg.Defaults.DistanceM)
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "web:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, 1, cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.True(t, cfg.Defaults.SeedPresets)
	assert.Equal(t, 50.0, cfg.Defaults.FocalLengthMm)
	assert.Equal(t, 8.0, cfg.Defaults.Aperture)
	assert.Equal(t, 3.0, cfg.Defaults.DistanceM)
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown_store_kind", "store:\n  kind: plist\n"},
		{"log_level_negative", "log:\n  level: -1\n"},
		{"log_level_too_high", "log:\n  level: 5\n"},
		{"log_format", "log:\n  format: xml\n"},
		{"port_zero", "web:\n  port: 0\n"},
		{"port_too_high", "web:\n  port: 70000\n"},
		{"negative_focal", "defaults:\n  focal_length_mm: -10\n"},
		{"zero_aperture", "defaults:\n  aperture: 0\n"},
		{"zero_distance", "defaults:\n  distance_m: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "{{{{invalid yaml!!!!"))
	assert.Error(t, err)
}

func TestLoad_UnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "unknown_section:\n  foo: bar\n"))
	assert.NoError(t, err, "unknown fields should be ignored")
}

func TestLoad_FileTooLarge(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Repeat("#", MaxConfigFileBytes+1)))
	assert.Error(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.Error(t, err)
}

// ---------- LoadOrDefault ----------

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Web.Port)
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	_, err := LoadOrDefault(writeConfig(t, "log:\n  level: 12\n"))
	assert.Error(t, err)
}

// ---------- Environment overrides ----------

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("FIELDTOOLS_STORE_KIND", "memory")
	t.Setenv("FIELDTOOLS_LOG_LEVEL", "4")
	t.Setenv("FIELDTOOLS_WEB_PORT", "3000")
	t.Setenv("FIELDTOOLS_APERTURE", "11")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, 4, cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Web.Port)
	assert.Equal(t, 11.0, cfg.Defaults.Aperture)
	assert.Equal(t, 35.0, cfg.Defaults.FocalLengthMm, "unset env keeps file value")
}

func TestLoad_EnvInvalid(t *testing.T) {
	t.Setenv("FIELDTOOLS_WEB_PORT", "not-a-port")
	_, err := LoadOrDefault("")
	assert.Error(t, err)
}

// ---------- Helper methods ----------

func TestConfig_StorePath(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = "/tmp/x.yaml"
	p, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.yaml", p)

	t.Setenv("XDG_CONFIG_HOME", "/home/test/.config")
	t.Setenv("HOME", "/home/test")
	cases := []struct {
		kind string
		want string
	}{
		{"memory", ""},
		{"file", "settings.yaml"},
		{"sqlite", "settings.sqlite"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			cfg := &Config{Store: StoreConfig{Kind: tc.kind}}
			p, err := cfg.StorePath()
			require.NoError(t, err)
			if tc.want == "" {
				assert.Empty(t, p)
				return
			}
			assert.Equal(t, filepath.Join("fieldtools", tc.want), filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p)))
		})
	}
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Web: WebConfig{Port: 8980}}
	assert.Equal(t, ":8980", cfg.Addr())
}
