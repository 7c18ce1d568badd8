// Package config loads quill.yaml, applies defaults and environment overrides.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/quill/pkg/adapters/process"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/llm"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/aretw0/quill/pkg/tools"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "quill.yaml"

// Environment variables read by ApplyEnv.
const (
	EnvModelAPIKey  = "GROQ_API_KEY"
	EnvSearchAPIKey = "TAVILY_API_KEY"
	EnvModel        = "QUILL_MODEL"
	EnvOutputDir    = "QUILL_OUTPUT_DIR"

	// EnvTranscriptKey holds a base64 AES-256 key; when set, stored transcripts are encrypted.
	EnvTranscriptKey = "QUILL_TRANSCRIPT_KEY"
	// EnvTranscriptFallbackKeys is a comma-separated list of retired keys still accepted on load.
	EnvTranscriptFallbackKeys = "QUILL_TRANSCRIPT_FALLBACK_KEYS"
)

// Retry predicates accepted by retry.retry_on.
const (
	RetryOnTransient = "transient"
	RetryOnAll       = "all"
)

// Config is the complete runtime configuration of the research CLI.
type Config struct {
	Model         ModelConfig      `yaml:"model"`
	Search        SearchConfig     `yaml:"search"`
	OutputDir     string           `yaml:"output_dir"`
	MaxSteps      int              `yaml:"max_steps"`
	ParallelTools bool             `yaml:"parallel_tools"`
	Retry         RetryConfig      `yaml:"retry"`
	Log           LogConfig        `yaml:"log"`
	Transcript    TranscriptConfig `yaml:"transcript"`

	// Commands are local programs offered to a stage as extra tools.
	Commands []process.Config `yaml:"commands"`
}

// ModelConfig selects the chat-completions endpoint.
type ModelConfig struct {
	Name       string `yaml:"name"`
	WriterName string `yaml:"writer_name"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"-"`
}

// SearchConfig configures the web search provider.
type SearchConfig struct {
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
	APIKey     string `yaml:"-"`
}

// RetryConfig is the YAML form of domain.RetryPolicy.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	RetryOn       string        `yaml:"retry_on"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TranscriptConfig enables transcript recording, e.g. "redis://localhost:6379/0".
type TranscriptConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`

	// Redact lists regular expressions; matching tool-argument keys are masked before saving.
	Redact []string `yaml:"redact"`

	// Keys are never read from the file.
	Key          string   `yaml:"-"`
	FallbackKeys []string `yaml:"-"`
}

// EncryptionKeys decodes the configured keys. It returns a nil active key when
// encryption is disabled.
func (t TranscriptConfig) EncryptionKeys() ([]byte, [][]byte, error) {
	if t.Key == "" {
		if len(t.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("%s requires %s", EnvTranscriptFallbackKeys, EnvTranscriptKey)
		}
		return nil, nil, nil
	}
	active, err := decodeKey(t.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", EnvTranscriptKey, err)
	}
	fallback := make([][]byte, 0, len(t.FallbackKeys))
	for i, k := range t.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("%s[%d]: %w", EnvTranscriptFallbackKeys, i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Name:    llm.DefaultModel,
			BaseURL: llm.DefaultBaseURL,
		},
		Search: SearchConfig{
			BaseURL:    tools.DefaultTavilyURL,
			MaxResults: tools.DefaultMaxResults,
		},
		OutputDir: ".",
		MaxSteps:  50,
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			BackoffFactor: 2,
			RetryOn:       RetryOnTransient,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies the process environment.
// An empty path tries DefaultFile and silently skips it when absent.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvModelAPIKey); ok {
		c.Model.APIKey = v
	}
	if v, ok := lookup(EnvSearchAPIKey); ok {
		c.Search.APIKey = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Model.Name = v
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.OutputDir = v
	}
	if v, ok := lookup(EnvTranscriptKey); ok {
		c.Transcript.Key = v
	}
	if v, ok := lookup(EnvTranscriptFallbackKeys); ok {
		c.Transcript.FallbackKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Transcript.FallbackKeys = append(c.Transcript.FallbackKeys, k)
			}
		}
	}
}

// Validate reports structural configuration errors. Credentials are checked
// separately by RequireCredentials since not every command needs them.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	if c.Search.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("search.max_results must be >= 1, got %d", c.Search.MaxResults))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps))
	}
	if _, err := c.RetryPolicy(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Transcript.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("transcript.redact: %w", err))
		}
	}
	if _, _, err := c.Transcript.EncryptionKeys(); err != nil {
		errs = append(errs, fmt.Errorf("transcript: %w", err))
	}
	for i, cmd := range c.Commands {
		if err := cmd.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("commands[%d]: %w", i, err))
		}
		switch cmd.Stage {
		case "", pipeline.StageResearch, pipeline.StageWrite:
		default:
			errs = append(errs, fmt.Errorf("commands[%d]: stage must be %q or %q, got %q",
				i, pipeline.StageResearch, pipeline.StageWrite, cmd.Stage))
		}
	}
	return errors.Join(errs...)
}

// RequireCredentials checks that both API keys are present.
func (c Config) RequireCredentials() error {
	var errs []error
	if c.Model.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvModelAPIKey))
	}
	if c.Search.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvSearchAPIKey))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the retry section into a validated domain.RetryPolicy.
func (c Config) RetryPolicy() (domain.RetryPolicy, error) {
	p := domain.RetryPolicy{
		MaxAttempts:   c.Retry.MaxAttempts,
		InitialDelay:  c.Retry.InitialDelay,
		BackoffFactor: c.Retry.BackoffFactor,
		MaxDelay:      c.Retry.MaxDelay,
	}
	switch strings.ToLower(c.Retry.RetryOn) {
	case "", RetryOnTransient:
		p.IsRetryable = domain.RetryTransient
	case RetryOnAll:
		p.IsRetryable = domain.RetryAlways
	default:
		return p, fmt.Errorf("retry.retry_on must be %q or %q, got %q", RetryOnTransient, RetryOnAll, c.Retry.RetryOn)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("retry: %w", err)
	}
	return p, nil
}

// CommandsFor returns the commands bound to stage.
func (c Config) CommandsFor(stage string) []process.Config {
	var out []process.Config
	for _, cmd := range c.Commands {
		s := cmd.Stage
		if s == "" {
			s = pipeline.StageResearch
		}
		if s == stage {
			out = append(out, cmd)
		}
	}
	return out
}

// WriterModel is the model name used by the write stage.
func (c Config) WriterModel() string {
	if c.Model.WriterName != "" {
		return c.Model.WriterName
	}
	return c.Model.Name
}
