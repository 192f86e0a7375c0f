package processing

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-hendrie/explain-that-code/config"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

// ErrPromptTooLarge is returned when a rendered prompt is over the
// configured token limit. The gateway is not called.
var ErrPromptTooLarge = errors.New("prompt exceeds token limit")

// Completer sends one prompt to the model and returns its raw text.
// The template name is used for labelling only.
type Completer interface {
	Complete(ctx context.Context, template, prompt string) (string, error)
}

// TokenCounter counts prompt tokens for the configured model.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// Processor runs prompts through the gateway: render, check, complete,
// then shape the result. It keeps no per-request state.
type Processor struct {
	gateway  Completer
	builder  *Builder
	splitter *Splitter

	counter         TokenCounter
	maxPromptTokens int

	formatting config.ResponseFormattingConfig
	logger     *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithTokenLimit rejects prompts longer than max tokens as counted by
// counter. A max of zero or less disables the check.
func WithTokenLimit(counter TokenCounter, max int) Option {
	return func(p *Processor) {
		p.counter = counter
		p.maxPromptTokens = max
	}
}

// WithLogger sets the processor's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a processor from the processing config. Template
// overrides are parsed here so a broken override fails at startup.
func NewProcessor(cfg *config.ProcessingConfig, gateway Completer, opts ...Option) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("processing config is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	builder, err := NewBuilder(cfg.Templates)
	if err != nil {
		return nil, err
	}

	tag := cfg.ReasoningTag
	if tag == "" {
		tag = DefaultReasoningTag
	}

	p := &Processor{
		gateway:    gateway,
		builder:    builder,
		splitter:   NewSplitter(tag),
		formatting: cfg.ResponseFormatting,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GenerateSnippet asks the model for a snippet in language and splits the
// reasoning region off the answer.
func (p *Processor) GenerateSnippet(ctx context.Context, language string) (*Snippet, error) {
	raw, err := p.complete(ctx, TemplateGenerate, map[string]string{
		"language": language,
	})
	if err != nil {
		return nil, err
	}

	split := p.splitter.Split(raw)
	p.logger.Debug("snippet generated",
		zap.String("language", language),
		zap.Int("think_length", len(split.Think)),
		zap.Int("snippet_length", len(split.Response)),
	)

	return &Snippet{
		Language:     language,
		ThinkContent: split.Think,
		CodeSnippet:  split.Response,
	}, nil
}

// GradeExplanation asks the model to grade a learner's explanation.
// The feedback is returned as the model produced it unless fence cleaning
// is enabled. When feedback parsing is enabled a well-formed rubric is
// attached; malformed feedback is logged and otherwise ignored.
func (p *Processor) GradeExplanation(ctx context.Context, req *CodeExplanationRequest) (*CodeExplanationResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	feedback, err := p.complete(ctx, TemplateGrade, map[string]string{
		"language":         req.Language,
		"code_snippet":     req.Snippet(),
		"user_explanation": req.Explanation(),
	})
	if err != nil {
		return nil, err
	}

	if p.formatting.CleanJSON {
		feedback = gollm.CleanResponse(feedback)
	}

	resp := &CodeExplanationResponse{
		Language:        req.Language,
		CodeSnippet:     req.Snippet(),
		UserExplanation: req.Explanation(),
		AIFeedback:      feedback,
	}

	if p.formatting.ParseFeedback {
		rubric, err := ParseRubric(feedback)
		if err != nil {
			p.logger.Warn("malformed grading feedback",
				zap.Error(err),
				zap.String("language", req.Language),
			)
		} else {
			resp.Rubric = rubric
		}
	}

	return resp, nil
}

func (p *Processor) complete(ctx context.Context, name string, vars map[string]string) (string, error) {
	prompt, err := p.builder.Render(name, vars)
	if err != nil {
		return "", err
	}

	if p.counter != nil && p.maxPromptTokens > 0 {
		n, err := p.counter.CountTokens(prompt)
		if err != nil {
			return "", fmt.Errorf("count prompt tokens: %w", err)
		}
		if n > p.maxPromptTokens {
			return "", fmt.Errorf("%w: %d tokens, limit is %d", ErrPromptTooLarge, n, p.maxPromptTokens)
		}
	}

	raw, err := p.gateway.Complete(ctx, name, prompt)
	if err != nil {
		return "", fmt.Errorf("complete %s: %w", name, err)
	}
	return raw, nil
}
