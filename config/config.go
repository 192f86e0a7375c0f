// Package config provides configuration management for the explainthat server.
// Configuration is read once at process start from an optional YAML file,
// overlaid with environment variables, validated, and then passed explicitly
// to the components that need it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables understood by ApplyEnv.
const (
	EnvAPIKey   = "OPENAPI_KEY"
	EnvEndpoint = "OPENAPI_ENDPOINT"
	EnvModel    = "MODEL"
	EnvLogLevel = "LOG_LEVEL"
	EnvPort     = "PORT"
)

// providers maps the supported gollm provider names to whether they accept
// llm.endpoint: ollama takes its server URL, and the OpenAI compatible
// providers take the base URL of their API.
var providers = map[string]bool{
	"openai":    true,
	"groq":      true,
	"mistral":   true,
	"ollama":    true,
	"anthropic": false,
}

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	Logging        LoggingConfig        `yaml:"logging"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Processing     ProcessingConfig     `yaml:"processing"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8000)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. LLM calls are slow, so this is generous (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// during graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig holds the settings for the LLM gateway.
// Any OpenAI-compatible endpoint works with the "openai" provider.
type LLMConfig struct {
	// Provider is the gollm provider name (e.g., "openai", "ollama", "anthropic")
	Provider string `yaml:"provider"`

	// Model is the model identifier sent to the provider
	Model string `yaml:"model"`

	// APIKey is the authentication key for the provider's API.
	// Use ${OPENAPI_KEY} in the YAML file or the environment override.
	APIKey string `yaml:"api_key"`

	// Endpoint is the base URL of the provider API, for example
	// https://openrouter.ai/api/v1 for the openai provider or
	// http://localhost:11434 for ollama. Empty means the provider's default.
	// The anthropic provider does not accept one.
	Endpoint string `yaml:"endpoint"`

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// MaxPromptTokens rejects rendered prompts longer than this many tokens
	// before they reach the provider. Zero disables the check.
	MaxPromptTokens int `yaml:"max_prompt_tokens"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// CircuitBreakerConfig configures the breaker in front of the LLM gateway.
// The breaker never retries; it only fails fast while the provider is down.
type CircuitBreakerConfig struct {
	// Enabled turns the breaker on (default: false)
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed through in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures that trips the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          false,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Processing: ProcessingConfig{
			ReasoningTag: "think",
		},
	}
}

// LoadFile loads configuration from a YAML file.
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// LoadOptional behaves like LoadFile but falls back to defaults plus
// environment overrides when the file does not exist.
func LoadOptional(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references.
// A reference that is opened but never closed is reported as an error
// instead of being passed to the YAML decoder half-expanded.
func expandEnvVars(s string) (string, error) {
	for i := 0; ; {
		open := strings.Index(s[i:], "${")
		if open < 0 {
			break
		}
		open += i
		rest := s[open+2:]
		end := strings.IndexByte(rest, '}')
		if end < 0 || strings.Contains(rest[:end], "${") {
			return "", fmt.Errorf("unterminated variable reference at offset %d", open)
		}
		i = open + 2 + end + 1
	}

	return os.Expand(s, func(key string) string {
		if name, def, ok := strings.Cut(key, ":-"); ok {
			if val := os.Getenv(name); val != "" {
				return val
			}
			return def
		}
		return os.Getenv(key)
	}), nil
}

// verbatim reports whether the value at path is passed through without
// environment expansion. Prompt templates are, so that a literal $ in a
// template reaches the model unchanged.
func verbatim(path []string) bool {
	return len(path) >= 2 && path[0] == "processing" && path[1] == "templates"
}

// expandNode expands environment references in the scalar values below
// node. Keys are never expanded.
func expandNode(node *yaml.Node, path []string) error {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			if err := expandNode(child, path); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			childPath := append(path[:len(path):len(path)], node.Content[i].Value)
			if verbatim(childPath) {
				continue
			}
			if err := expandNode(node.Content[i+1], childPath); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if !strings.Contains(node.Value, "$") {
			return nil
		}
		expanded, err := expandEnvVars(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if expanded != node.Value {
			node.Value = expanded
			// re-resolve so that e.g. port: ${PORT} decodes as an int
			node.Tag = ""
		}
	}
	return nil
}

// Load loads configuration from an io.Reader.
// The YAML is decoded on top of DefaultConfig, then environment overrides
// are applied and the result is validated.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config := DefaultConfig()

	if len(doc.Content) > 0 {
		if err := expandNode(&doc, nil); err != nil {
			return nil, fmt.Errorf("expand environment variables: %w", err)
		}
		expanded, err := yaml.Marshal(&doc)
		if err != nil {
			return nil, fmt.Errorf("encode expanded config: %w", err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides configuration values with any set environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks if the configuration is valid.
// LLM credentials are not checked for presence; a missing
// key surfaces as a provider error on the first call.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("empty LLM provider")
	}
	endpointOK, known := providers[c.LLM.Provider]
	if !known {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.Endpoint != "" {
		u, err := url.Parse(c.LLM.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid LLM endpoint: %q", c.LLM.Endpoint)
		}
		if !endpointOK {
			return fmt.Errorf("LLM provider %s does not support a custom endpoint", c.LLM.Provider)
		}
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("negative max tokens: %d", c.LLM.MaxTokens)
	}
	if c.LLM.MaxPromptTokens < 0 {
		return fmt.Errorf("negative max prompt tokens: %d", c.LLM.MaxPromptTokens)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold == 0 {
			return fmt.Errorf("circuit breaker failure threshold must be positive")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("circuit breaker timeout must be positive")
		}
		if c.CircuitBreaker.Interval < 0 {
			return fmt.Errorf("negative circuit breaker interval: %v", c.CircuitBreaker.Interval)
		}
	}

	return c.Processing.Validate()
}
