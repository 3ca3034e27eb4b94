// Package config loads and validates the briefing configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/docker/briefing/pkg/cache"
	"github.com/docker/briefing/pkg/tools"
)

const Version = "1"

type Config struct {
	Version  string         `yaml:"version,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Model    ModelConfig    `yaml:"model,omitempty"`
	Cache    cache.Config   `yaml:"cache,omitempty"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
	Tools    ToolsConfig    `yaml:"tools,omitempty"`
	Tracing  TracingConfig  `yaml:"tracing,omitempty"`
}

type ServerConfig struct {
	// Listen is host:port or unix:///path/to/socket.
	Listen string `yaml:"listen,omitempty"`
	// ShutdownTimeout bounds how long in-flight runs may take to finish
	// once the server is asked to stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// TracingConfig exports spans over OTLP/HTTP when enabled.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Endpoint is the collector URL. Empty uses the OTEL_EXPORTER_OTLP_*
	// environment variables.
	Endpoint   string  `yaml:"endpoint,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

type ModelConfig struct {
	Name           string `yaml:"name,omitempty"`
	BaseURL        string `yaml:"base_url,omitempty"`
	MaxTokens      int64  `yaml:"max_tokens,omitempty"`
	MaxTurns       int    `yaml:"max_turns,omitempty"`
	ThinkingBudget int64  `yaml:"thinking_budget,omitempty"`
}

type PipelineConfig struct {
	DefaultAspects []string    `yaml:"default_aspects,omitempty"`
	Gather         StageConfig `yaml:"gather,omitempty"`
	Report         StageConfig `yaml:"report,omitempty"`
}

type StageConfig struct {
	Instructions string        `yaml:"instructions,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	// Model overrides the model name for this stage.
	Model string `yaml:"model,omitempty"`
}

type ToolsConfig struct {
	// Concurrency bounds parallel tool calls in one turn. Zero is unbounded.
	Concurrency int          `yaml:"concurrency,omitempty"`
	Retry       RetryConfig  `yaml:"retry,omitempty"`
	Remote      []RemoteTool `yaml:"remote,omitempty"`
	// Fixtures is a tool fixtures file served in-process, relative to the
	// working directory.
	Fixtures string `yaml:"fixtures,omitempty"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
}

func (r RetryConfig) Policy() tools.RetryPolicy {
	return tools.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

// RemoteTool declares a tool served over HTTP. Header values may reference
// environment variables as ${NAME}.
type RemoteTool struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	URL         string            `yaml:"url"`
	Parameters  map[string]any    `yaml:"parameters,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
}

func (r RemoteTool) Definition() tools.RemoteDefinition {
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = os.ExpandEnv(v)
	}
	var params map[string]any
	if r.Parameters != nil {
		params = r.Parameters
	}
	return tools.RemoteDefinition{
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		Parameters:  params,
		Headers:     headers,
		Timeout:     r.Timeout,
	}
}

const (
	DefaultListen          = "127.0.0.1:8080"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultModel           = "claude-sonnet-4-5"
	DefaultMaxTokens       = 8192
	DefaultMaxTurns        = 8
	DefaultStageLimit      = 5 * time.Minute
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.New(yaml.FormatError(err, false, true))
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Version == "" {
		c.Version = Version
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModel
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = DefaultMaxTokens
	}
	if c.Model.MaxTurns == 0 {
		c.Model.MaxTurns = DefaultMaxTurns
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = cache.KindMemory
	}
	if c.Pipeline.Gather.Timeout == 0 {
		c.Pipeline.Gather.Timeout = DefaultStageLimit
	}
	if c.Pipeline.Report.Timeout == 0 {
		c.Pipeline.Report.Timeout = DefaultStageLimit
	}
	if c.Tools.Retry == (RetryConfig{}) {
		p := tools.DefaultRetryPolicy()
		c.Tools.Retry = RetryConfig{MaxAttempts: p.MaxAttempts, InitialInterval: p.InitialInterval, MaxInterval: p.MaxInterval}
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != Version {
		errs = append(errs, fmt.Errorf("unsupported config version %q", c.Version))
	}
	if c.Model.MaxTokens < 0 || c.Model.MaxTurns < 0 || c.Model.ThinkingBudget < 0 {
		errs = append(errs, errors.New("model limits must not be negative"))
	}
	if c.Model.ThinkingBudget > 0 && c.Model.ThinkingBudget >= c.Model.MaxTokens {
		errs = append(errs, errors.New("model thinking_budget must be lower than max_tokens"))
	}
	if c.Model.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Model.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("model base_url: %w", err))
		}
	}

	switch c.Cache.Kind {
	case cache.KindMemory, cache.KindTTL:
	case cache.KindSQLite, cache.KindFile:
		if c.Cache.Path == "" {
			errs = append(errs, fmt.Errorf("cache kind %s requires a path", c.Cache.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache kind %q", c.Cache.Kind))
	}
	if c.Cache.TTL < 0 || c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache ttl and max_entries must not be negative"))
	}

	if c.Server.ShutdownTimeout < 0 || c.Pipeline.Gather.Timeout < 0 || c.Pipeline.Report.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("tracing sample_rate must be between 0 and 1"))
	}
	if c.Tools.Concurrency < 0 {
		errs = append(errs, errors.New("tools concurrency must not be negative"))
	}

	var names []string
	for i, r := range c.Tools.Remote {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Errorf("remote tool #%d requires a name", i+1))
		case slices.Contains(names, r.Name):
			errs = append(errs, fmt.Errorf("remote tool %q declared twice", r.Name))
		}
		names = append(names, r.Name)
		if u, err := url.Parse(r.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("remote tool %q requires an absolute url", r.Name))
		}
	}

	return errors.Join(errs...)
}
