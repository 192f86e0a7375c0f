package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ProcessingConfig defines how prompts are rendered and LLM output is shaped.
type ProcessingConfig struct {
	// ReasoningTag is the tag name wrapping model reasoning, e.g. "think"
	// for <think>...</think>
	ReasoningTag string `yaml:"reasoning_tag"`

	// Templates overrides the built-in prompt templates by name
	// ("generate", "grade")
	Templates map[string]string `yaml:"templates"`

	// ResponseFormatting configures how grading feedback is shaped
	ResponseFormatting ResponseFormattingConfig `yaml:"response_formatting"`
}

// ResponseFormattingConfig defines response formatting options
type ResponseFormattingConfig struct {
	// CleanJSON strips markdown fences from grading feedback using gollm
	CleanJSON bool `yaml:"clean_json"`

	// ParseFeedback attaches a parsed rubric to grading responses when
	// the feedback is well-formed
	ParseFeedback bool `yaml:"parse_feedback"`
}

// Validate checks the processing section.
func (p *ProcessingConfig) Validate() error {
	if p.ReasoningTag == "" {
		return fmt.Errorf("empty reasoning tag")
	}
	if strings.ContainsAny(p.ReasoningTag, "<>/") || strings.IndexFunc(p.ReasoningTag, unicode.IsSpace) >= 0 {
		return fmt.Errorf("invalid reasoning tag: %q", p.ReasoningTag)
	}
	for name, tmpl := range p.Templates {
		if strings.TrimSpace(tmpl) == "" {
			return fmt.Errorf("empty template override: %s", name)
		}
	}
	return nil
}
