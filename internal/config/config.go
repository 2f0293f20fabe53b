// Package config loads the buildweaver configuration from a YAML file,
// BUILDWEAVER_* environment variables and command-line flags bound by the
// caller.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"buildweaver/internal/buildconfig"
	"buildweaver/internal/buildinfo"
	"buildweaver/internal/metrics"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BUILDWEAVER"

// OrphanPolicy says what the driver does with orphan artifacts.
type OrphanPolicy string

const (
	OrphansIgnore OrphanPolicy = "ignore"
	OrphansWarn   OrphanPolicy = "warn"
	OrphansError  OrphanPolicy = "error"
)

// ParseOrphanPolicy validates s.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch p := OrphanPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OrphansIgnore, OrphansWarn, OrphansError:
		return p, nil
	default:
		return "", fmt.Errorf("orphan policy must be one of ignore, warn, error; got %q", s)
	}
}

// Config is the complete configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type AnalysisConfig struct {
	// Concurrency bounds the number of targets analyzed at once.
	Concurrency   int          `mapstructure:"concurrency"`
	Orphans       OrphanPolicy `mapstructure:"orphans"`
	OutputBase    string       `mapstructure:"output_base"`
	BuildInfoKeys []string     `mapstructure:"build_info_keys"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is none or stdout.
	Exporter    string  `mapstructure:"exporter"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	keys := make([]string, 0, len(buildinfo.DefaultKeys))
	for _, k := range buildinfo.DefaultKeys {
		keys = append(keys, string(k))
	}
	return Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Analysis: AnalysisConfig{
			Concurrency:   runtime.GOMAXPROCS(0),
			Orphans:       OrphansWarn,
			OutputBase:    buildconfig.DefaultOutputBase,
			BuildInfoKeys: keys,
		},
		Metrics: MetricsConfig{Namespace: metrics.DefaultNamespace},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "none",
			ServiceName: "buildweaver",
			SampleRate:  1.0,
		},
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be json or console, got %q", c.Log.Format))
	}
	if c.Analysis.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("analysis.concurrency: must be >= 1, got %d", c.Analysis.Concurrency))
	}
	if _, err := ParseOrphanPolicy(string(c.Analysis.Orphans)); err != nil {
		errs = append(errs, fmt.Errorf("analysis.orphans: %w", err))
	}
	for _, k := range c.Analysis.BuildInfoKeys {
		if _, err := buildinfo.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("analysis.build_info_keys: %w", err))
		}
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter: must be none or stdout, got %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate: must be within [0, 1], got %v", c.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}

// BuildInfoKeys returns the configured keys as typed keys.
func (c Config) BuildInfoKeys() []buildinfo.Key {
	out := make([]buildinfo.Key, 0, len(c.Analysis.BuildInfoKeys))
	for _, k := range c.Analysis.BuildInfoKeys {
		out = append(out, buildinfo.Key(k))
	}
	return out
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)
	v.SetDefault("analysis.concurrency", d.Analysis.Concurrency)
	v.SetDefault("analysis.orphans", string(d.Analysis.Orphans))
	v.SetDefault("analysis.output_base", d.Analysis.OutputBase)
	v.SetDefault("analysis.build_info_keys", d.Analysis.BuildInfoKeys)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Load reads the configuration into v and decodes it. An empty file skips the
// file layer; defaults and the environment still apply. Flags bound to v
// before the call take precedence over both.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
