// Package config loads and validates the process configuration for the
// OSPF daemon and simulator binaries.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (OSPFD_*) (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No individual setting is bound to a command-line flag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the static configuration of an OSPF process: logging,
// telemetry, monitor/metrics listeners, the engine's global protocol knobs,
// and (for ospfsim) the simulation settings. The OSPF topology itself -
// areas, interfaces, neighbors, keys - flows through the cfg... entry
// points, not this file.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Monitor configures the read-only introspection listener.
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`

	// Metrics contains the Prometheus exposition server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Engine contains process-wide protocol parameters.
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Simulator configures the ospfsim controller.
	Simulator SimulatorConfig `mapstructure:"simulator" yaml:"simulator"`

	// DataDir is where the daemon persists its hitless-restart parameter
	// block.
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects text or json output.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

// MonitorConfig configures the monitor protocol listener.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Listen is the TCP address the monitor server binds.
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// EngineConfig carries process-wide protocol parameters.
type EngineConfig struct {
	// RouterID is this router's dotted-quad OSPF router ID.
	RouterID string `mapstructure:"router_id" yaml:"router_id"`

	// ASExternalLimit caps the number of self-originated type-5 LSAs; zero
	// disables the ceiling.
	ASExternalLimit int `mapstructure:"as_external_limit" validate:"gte=0" yaml:"as_external_limit"`

	// ExitOverflowSeconds is how long the router stays in overflow before
	// re-attempting type-5 origination.
	ExitOverflowSeconds int64 `mapstructure:"exit_overflow_seconds" validate:"gte=0" yaml:"exit_overflow_seconds"`
}

// SimulatorConfig configures the ospfsim controller process.
type SimulatorConfig struct {
	// Listen is the controller's TCP listen address; routers dial it.
	Listen string `mapstructure:"listen" yaml:"listen"`

	// TopologyFile is the YAML file describing the simulated network.
	TopologyFile string `mapstructure:"topology_file" yaml:"topology_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Listen:  "127.0.0.1:2823",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9323",
		},
		Engine: EngineConfig{
			ExitOverflowSeconds: 300,
		},
		Simulator: SimulatorConfig{
			Listen: "127.0.0.1:0",
		},
		DataDir: defaultDataDir(),
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".ospfd")
	}
	return "/var/lib/ospfd"
}

// Load reads configuration from path (optional; empty means defaults +
// environment only), applies OSPFD_* environment overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("OSPFD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	bindDefaults(v, defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every default value with viper so environment
// overrides resolve even without a config file.
func bindDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.listen", d.Monitor.Listen)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("engine.router_id", d.Engine.RouterID)
	v.SetDefault("engine.as_external_limit", d.Engine.ASExternalLimit)
	v.SetDefault("engine.exit_overflow_seconds", d.Engine.ExitOverflowSeconds)
	v.SetDefault("simulator.listen", d.Simulator.Listen)
	v.SetDefault("simulator.topology_file", d.Simulator.TopologyFile)
	v.SetDefault("data_dir", d.DataDir)
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := errorsAs(err, &verrs); ok && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("config: field %s failed %q validation", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// errorsAs is a tiny wrapper so Validate reads linearly.
func errorsAs(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}
