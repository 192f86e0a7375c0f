// Package gateway is the service's only path to the language model. Each
// Complete is one synchronous round trip through the gollm client; there
// are no retries, and an optional circuit breaker fails fast while the
// provider is down.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matt-hendrie/explain-that-code/config"
	"github.com/matt-hendrie/explain-that-code/server/circuitbreaker"
	"github.com/matt-hendrie/explain-that-code/server/metrics"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"github.com/teilomillet/gollm/providers"
	"github.com/teilomillet/gollm/utils"
	"go.uber.org/zap"
)

// Generator is the part of gollm.LLM the gateway uses.
type Generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// Gateway sends prompts to the configured model.
type Gateway struct {
	cfg     config.LLMConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	breaker *circuitbreaker.CircuitBreaker

	newGenerator func() (Generator, error)

	mu        sync.Mutex
	generator Generator
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records every completion in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithCircuitBreaker routes every completion through cb.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *Gateway) {
		g.breaker = cb
	}
}

// New creates a gateway for cfg. The gollm client is built on first use,
// so missing credentials surface as a provider error on the first call
// rather than at startup.
func New(cfg config.LLMConfig, logger *zap.Logger, opts ...Option) *Gateway {
	g := newGateway(cfg, logger, opts...)
	g.newGenerator = func() (Generator, error) {
		return newClient(cfg, g.logger)
	}
	return g
}

// NewWithGenerator creates a gateway around an existing client.
func NewWithGenerator(gen Generator, logger *zap.Logger, opts ...Option) *Gateway {
	g := newGateway(config.LLMConfig{}, logger, opts...)
	g.generator = gen
	return g
}

func newGateway(cfg config.LLMConfig, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// defaultOllamaEndpoint is used for the ollama provider when no endpoint
// is configured.
const defaultOllamaEndpoint = "http://localhost:11434"

// constructors are the gollm providers the gateway can build.
var constructors = map[string]providers.ProviderConstructor{
	"openai":    providers.NewOpenAIProvider,
	"anthropic": providers.NewAnthropicProvider,
	"groq":      providers.NewGroqProvider,
	"mistral":   providers.NewMistralProvider,
	"ollama":    providers.NewOllamaProvider,
}

// chatCompletionProviders speak the OpenAI chat completions protocol, so a
// configured endpoint replaces their base URL.
var chatCompletionProviders = map[string]bool{
	"openai":  true,
	"groq":    true,
	"mistral": true,
}

// endpointProvider sends requests for an OpenAI compatible provider to a
// configured base URL instead of the provider's hardcoded one.
type endpointProvider struct {
	providers.Provider
	url string
}

func (p *endpointProvider) Endpoint() string {
	return p.url
}

// chatCompletionsURL turns a base URL such as https://openrouter.ai/api/v1
// into its chat completions endpoint. A URL that already names the
// endpoint is used as is.
func chatCompletionsURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// newRegistry registers only the configured provider, wired to log through
// zap and to honor cfg.Endpoint.
func newRegistry(cfg config.LLMConfig, glog utils.Logger) (*providers.ProviderRegistry, error) {
	constructor, ok := constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	var url string
	if cfg.Endpoint != "" && cfg.Provider != "ollama" {
		if !chatCompletionProviders[cfg.Provider] {
			return nil, fmt.Errorf("provider %s does not support a custom endpoint", cfg.Provider)
		}
		url = chatCompletionsURL(cfg.Endpoint)
	}

	registry := providers.NewProviderRegistry(cfg.Provider)
	registry.Register(cfg.Provider, func(apiKey, model string, extraHeaders map[string]string) providers.Provider {
		p := constructor(apiKey, model, extraHeaders)
		p.SetLogger(glog)
		if url != "" {
			return &endpointProvider{Provider: p, url: url}
		}
		return p
	})
	return registry, nil
}

func newClient(cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
		gollm.SetMaxRetries(0),
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, gollm.SetMaxTokens(cfg.MaxTokens))
	}
	if cfg.Provider == "ollama" {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOllamaEndpoint
		}
		opts = append(opts, gollm.SetOllamaEndpoint(endpoint))
	}

	// Built from cfg alone. gollm.NewLLM would read LLM_* and *_API_KEY
	// variables and use its own provider registry.
	gcfg := gollm.NewConfig()
	gollm.ApplyOptions(gcfg, opts...)

	glog := newGollmLogger(logger)
	registry, err := newRegistry(cfg, glog)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewLLM(gcfg, glog, registry)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	if cfg.Endpoint != "" {
		logger.Debug("using custom endpoint",
			zap.String("provider", cfg.Provider),
			zap.String("endpoint", cfg.Endpoint),
		)
	}
	return client, nil
}

func (g *Gateway) client() (Generator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generator != nil {
		return g.generator, nil
	}
	gen, err := g.newGenerator()
	if err != nil {
		return nil, err
	}
	g.generator = gen
	return gen, nil
}

// Complete sends prompt as a single user message and returns the model's
// raw text. template labels the call in logs and metrics.
func (g *Gateway) Complete(ctx context.Context, template, prompt string) (string, error) {
	start := time.Now()

	var out string
	call := func() error {
		gen, err := g.client()
		if err != nil {
			return err
		}
		// Input only: providers send Prompt.String() as the user message,
		// and that is exactly Input when nothing else is set.
		out, err = gen.Generate(ctx, &gollm.Prompt{Input: prompt})
		// gollm reports a failed attempt without its cause
		if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(call)
	} else {
		err = call()
	}

	duration := time.Since(start)
	outcome := outcomeOf(err)
	if g.metrics != nil {
		g.metrics.LLMRequestsTotal.WithLabelValues(template, outcome).Inc()
		g.metrics.LLMRequestDuration.WithLabelValues(template).Observe(duration.Seconds())
	}

	if err != nil {
		g.logger.Warn("completion failed",
			zap.String("template", template),
			zap.String("outcome", outcome),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return "", err
		}
		return "", fmt.Errorf("generate: %w", err)
	}

	g.logger.Debug("completion finished",
		zap.String("template", template),
		zap.Duration("duration", duration),
		zap.Int("response_length", len(out)),
	)
	return out, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
