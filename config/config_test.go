package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable ApplyEnv reads so host settings do not
// leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvEndpoint, EnvModel, EnvLogLevel, EnvPort} {
		t.Setenv(k, "")
	}
}

func TestLoadValidConfig(t *testing.T) {
	clearEnv(t)

	yamlConfig := `
server:
  port: 9090
  read_timeout: 45s
  write_timeout: 45s
  max_header_bytes: 2097152
  shutdown_timeout: 45s

llm:
  provider: openai
  model: deepseek-r1
  endpoint: https://llm.internal/v1
  max_tokens: 800

logging:
  level: debug
  format: text

circuit_breaker:
  enabled: true
  failure_threshold: 3
  timeout: 10s

processing:
  reasoning_tag: reasoning
  response_formatting:
    clean_json: true
`

	config, err := Load(strings.NewReader(yamlConfig))
	if err != nil {
		t.Fatalf("Failed to load valid config: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("unexpected port: got %d, want %d", config.Server.Port, 9090)
	}
	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("unexpected read timeout: got %v, want %v", config.Server.ReadTimeout, 45*time.Second)
	}
	if config.LLM.Model != "deepseek-r1" {
		t.Errorf("unexpected model: got %s, want %s", config.LLM.Model, "deepseek-r1")
	}
	if config.LLM.Endpoint != "https://llm.internal/v1" {
		t.Errorf("unexpected endpoint: got %s", config.LLM.Endpoint)
	}
	if config.LLM.MaxTokens != 800 {
		t.Errorf("unexpected max tokens: got %d, want %d", config.LLM.MaxTokens, 800)
	}
	if config.Logging.Format != "text" {
		t.Errorf("unexpected log format: got %s, want %s", config.Logging.Format, "text")
	}
	if !config.CircuitBreaker.Enabled || config.CircuitBreaker.FailureThreshold != 3 {
		t.Errorf("unexpected circuit breaker config: %+v", config.CircuitBreaker)
	}
	// Untouched keys keep their defaults.
	if config.CircuitBreaker.MaxRequests != 1 {
		t.Errorf("unexpected max requests: got %d, want 1", config.CircuitBreaker.MaxRequests)
	}
	if config.Processing.ReasoningTag != "reasoning" {
		t.Errorf("unexpected reasoning tag: got %s", config.Processing.ReasoningTag)
	}
	if !config.Processing.ResponseFormatting.CleanJSON {
		t.Error("expected clean_json to be enabled")
	}
}

func TestLoadEmptyConfig(t *testing.T) {
	clearEnv(t)

	config, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}
	if config.Server.Port != 8000 {
		t.Errorf("unexpected port: got %d, want %d", config.Server.Port, 8000)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name: "invalid port",
			config: `
server:
  port: -1
`,
			want: "invalid port",
		},
		{
			name: "invalid log level",
			config: `
logging:
  level: invalid
`,
			want: "invalid log level",
		},
		{
			name: "invalid log format",
			config: `
logging:
  format: xml
`,
			want: "invalid log format",
		},
		{
			name: "empty provider",
			config: `
llm:
  provider: ""
`,
			want: "empty LLM provider",
		},
		{
			name: "unknown provider",
			config: `
llm:
  provider: cohere
`,
			want: "unsupported LLM provider",
		},
		{
			name: "endpoint without scheme",
			config: `
llm:
  provider: openai
  endpoint: openrouter.ai/api/v1
`,
			want: "invalid LLM endpoint",
		},
		{
			name: "endpoint on provider without override",
			config: `
llm:
  provider: anthropic
  endpoint: https://proxy.example/v1
`,
			want: "does not support a custom endpoint",
		},
		{
			name: "negative prompt limit",
			config: `
llm:
  max_prompt_tokens: -5
`,
			want: "negative max prompt tokens",
		},
		{
			name: "breaker without threshold",
			config: `
circuit_breaker:
  enabled: true
  failure_threshold: 0
`,
			want: "failure threshold",
		},
		{
			name: "bad reasoning tag",
			config: `
processing:
  reasoning_tag: "<think>"
`,
			want: "invalid reasoning tag",
		},
		{
			name: "empty template override",
			config: `
processing:
  templates:
    generate: "   "
`,
			want: "empty template override",
		},
		{
			name: "unknown key",
			config: `
llm:
  temperature: 0.2
`,
			want: "decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.config))
			if err == nil {
				t.Error("expected error, got nil")
			} else if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("unexpected error: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.Port != 8000 {
		t.Errorf("unexpected default port: got %d, want %d", config.Server.Port, 8000)
	}
	if config.Server.WriteTimeout != 120*time.Second {
		t.Errorf("unexpected default write timeout: got %v", config.Server.WriteTimeout)
	}
	if config.LLM.Provider != "openai" {
		t.Errorf("unexpected default provider: got %s, want %s", config.LLM.Provider, "openai")
	}
	if config.LLM.MaxPromptTokens != 0 {
		t.Errorf("prompt token limit should be disabled by default, got %d", config.LLM.MaxPromptTokens)
	}
	if config.Logging.Level != "info" {
		t.Errorf("unexpected default log level: got %s, want %s", config.Logging.Level, "info")
	}
	if config.CircuitBreaker.Enabled {
		t.Error("circuit breaker should be disabled by default")
	}
	if config.Processing.ReasoningTag != "think" {
		t.Errorf("unexpected default reasoning tag: got %s", config.Processing.ReasoningTag)
	}
	if config.Processing.ResponseFormatting.CleanJSON || config.Processing.ResponseFormatting.ParseFeedback {
		t.Error("feedback must pass through verbatim by default")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModel, "qwen3")

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		config, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.LLM.Model != "qwen3" {
			t.Errorf("env override not applied: got %s", config.LLM.Model)
		}
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		config, err := LoadOptional(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Server.Port != 7000 {
			t.Errorf("unexpected port: got %d", config.Server.Port)
		}
	})

	t.Run("invalid file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server: [\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOptional(path); err == nil {
			t.Error("expected error for malformed file")
		}
	})
}
