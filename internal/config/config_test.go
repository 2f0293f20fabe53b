package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildweaver/internal/buildinfo"
)

func TestDefaults_Valid(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, OrphansWarn, d.Analysis.Orphans)
	assert.GreaterOrEqual(t, d.Analysis.Concurrency, 1)
	assert.Equal(t, []buildinfo.Key{buildinfo.BuildTimestamp, buildinfo.StableKey, buildinfo.VCSRevision}, d.BuildInfoKeys())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildweaver.yaml")
	content := `
log:
  level: debug
  format: json
analysis:
  concurrency: 3
  orphans: error
  build_info_keys: [STABLE_KEY, CUSTOM]
tracing:
  enabled: true
  exporter: stdout
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("BUILDWEAVER_METRICS_NAMESPACE", "ci")
	t.Setenv("BUILDWEAVER_ANALYSIS_CONCURRENCY", "5")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Analysis.Concurrency)
	assert.Equal(t, OrphansError, cfg.Analysis.Orphans)
	assert.Equal(t, []string{"STABLE_KEY", "CUSTOM"}, cfg.Analysis.BuildInfoKeys)
	assert.Equal(t, "ci", cfg.Metrics.Namespace)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  orphans: sometimes\n  concurrency: 0\n"), 0o600))
	_, err = Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.orphans")
	assert.Contains(t, err.Error(), "analysis.concurrency")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"build info key", func(c *Config) { c.Analysis.BuildInfoKeys = []string{"nope"} }, "analysis.build_info_keys"},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "otlp" }, "tracing.exporter"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "tracing.sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseOrphanPolicy(t *testing.T) {
	p, err := ParseOrphanPolicy(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, OrphansWarn, p)

	_, err = ParseOrphanPolicy("maybe")
	require.Error(t, err)
}
