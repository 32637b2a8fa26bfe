package webpilot

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/webpilot/service/browser"
	"github.com/viant/webpilot/service/llm"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON or YAML. The zero-value is useful – nested
// fields inherit their package defaults.
type Config struct {
	Task    TaskConfig     `json:"task" yaml:"task"`
	Model   llm.Config     `json:"model" yaml:"model"`
	Browser browser.Config `json:"browser" yaml:"browser"`
	Tracing TracingConfig  `json:"tracing" yaml:"tracing"`
}

// Duration is a time.Duration that unmarshals from "90s"/"10m" style text
// or from a plain number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var seconds int64
	if err := node.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// TaskConfig controls per-task execution limits.
type TaskConfig struct {
	// Timeout bounds each task run end to end.
	Timeout Duration `json:"timeout" yaml:"timeout"`
	// MaxFailures bounds engine-internal retries.
	MaxFailures int `json:"maxFailures" yaml:"maxFailures"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// OutputFile receives exported spans; stdout when empty.
	OutputFile string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config populated with package defaults. Callers
// may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Task: TaskConfig{
			Timeout:     Duration(10 * time.Minute),
			MaxFailures: 3,
		},
		Browser: browser.DefaultConfig(),
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Task.Timeout < 0 {
		return fmt.Errorf("task.timeout must be >= 0")
	}
	if c.Task.MaxFailures < 0 {
		return fmt.Errorf("task.maxFailures must be >= 0")
	}
	return nil
}

func (c *Config) init() {
	defaults := DefaultConfig()
	if c.Task.Timeout == 0 {
		c.Task.Timeout = defaults.Task.Timeout
	}
	if c.Task.MaxFailures == 0 {
		c.Task.MaxFailures = defaults.Task.MaxFailures
	}
}

// LoadConfig reads a YAML configuration from the supplied URL (any scheme
// the abstract file system supports, including plain paths).
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
