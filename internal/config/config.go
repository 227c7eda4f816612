// Package config loads and validates the footerscan configuration.
//
// Validation problems surface as invalid-configuration taxonomy failures so
// that configuration read inside a unit of work classifies like any other
// failure; startup-time loading in main handles them directly.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"footerscan/internal/failures"
)

// Config represents the application configuration.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	OCR       OCRConfig       `yaml:"ocr"`
	Retry     RetryConfig     `yaml:"retry"`
	Contracts ContractsConfig `yaml:"contracts"`
	Runlog    RunlogConfig    `yaml:"runlog"`
	Daemon    DaemonConfig    `yaml:"daemon"`
}

// InputConfig describes where page images come from.
type InputConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions,omitempty"` // defaults to png/jpg/jpeg/tif/tiff
}

// OutputConfig describes where per-document result files go.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"` // remove stale results before a run
}

// OCRConfig describes the OCR service endpoint.
type OCRConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// RetryConfig configures the execution boundary's backoff policy.
// MaxRetries is a pointer so an explicit 0 (no retries) is distinguishable
// from an absent field.
type RetryConfig struct {
	MaxRetries *int     `yaml:"max_retries,omitempty"`
	BaseDelay  Duration `yaml:"base_delay,omitempty"`
}

// Retries returns the configured retry bound.
func (r RetryConfig) Retries() int {
	if r.MaxRetries == nil {
		return 0
	}
	return *r.MaxRetries
}

// ContractsConfig points at the classification contract document.
type ContractsConfig struct {
	Path string `yaml:"path,omitempty"` // empty means the built-in default contract
}

// RunlogConfig configures the run-history store.
type RunlogConfig struct {
	Path string `yaml:"path,omitempty"` // empty disables persistence (":memory:" is legal)
}

// DaemonConfig configures watch/schedule mode.
type DaemonConfig struct {
	Watch       bool     `yaml:"watch"`
	Debounce    Duration `yaml:"debounce,omitempty"`
	Interval    Duration `yaml:"interval,omitempty"` // zero disables the schedule
	MetricsAddr string   `yaml:"metrics_addr,omitempty"`
}

// Duration wraps time.Duration with YAML support for values like "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env if present; its absence is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		f, ferr := failures.NewFileAccess(configPath, "read configuration file", err)
		if ferr != nil {
			return nil, ferr
		}
		return nil, f
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		f, ferr := failures.NewInvalidConfig("configuration does not parse as YAML", configPath, "invalid configuration file", err)
		if ferr != nil {
			return nil, ferr
		}
		return nil, f
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Input.Extensions) == 0 {
		c.Input.Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./results"
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = Duration(30 * time.Second)
	}
	if c.Retry.MaxRetries == nil {
		retries := 3
		c.Retry.MaxRetries = &retries
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = Duration(time.Second)
	}
	if c.Daemon.Debounce == 0 {
		c.Daemon.Debounce = Duration(2 * time.Second)
	}
	if c.Daemon.MetricsAddr == "" {
		c.Daemon.MetricsAddr = ":9470"
	}
}

// Validate checks invariants the rest of the system depends on. Problems
// come back as invalid-configuration failures carrying the offending input.
func (c *Config) Validate() error {
	invalid := func(detail, input string, cause error) error {
		f, ferr := failures.NewInvalidConfig(detail, input, "invalid configuration", cause)
		if ferr != nil {
			return ferr
		}
		return f
	}

	if c.Input.Directory == "" {
		return invalid("input.directory is required", "(empty)", nil)
	}
	if c.OCR.URL == "" {
		return invalid("ocr.url is required", "(empty)", nil)
	}
	if c.Retry.Retries() < 0 {
		return invalid("retry.max_retries cannot be negative", fmt.Sprintf("%d", c.Retry.Retries()), nil)
	}
	if c.Retry.BaseDelay < 0 {
		return invalid("retry.base_delay cannot be negative", c.Retry.BaseDelay.Std().String(), nil)
	}
	if c.Daemon.Interval < 0 {
		return invalid("daemon.interval cannot be negative", c.Daemon.Interval.Std().String(), nil)
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := `# footerscan configuration
input:
  directory: ./scans

output:
  directory: ./results
  clean: true

ocr:
  url: http://localhost:8080
  timeout: 30s

retry:
  max_retries: 3
  base_delay: 1s

contracts:
  path: ./contracts.yaml

runlog:
  path: ./footerscan.db

daemon:
  watch: true
  debounce: 2s
  metrics_addr: ":9470"
`
	return os.WriteFile(configPath, []byte(example), 0o644)
}
