package processing

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"text/template"
)

// Template names.
const (
	TemplateGenerate = "generate"
	TemplateGrade    = "grade"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ErrUnknownTemplate is returned for a template name the Builder does not know.
var ErrUnknownTemplate = errors.New("unknown template")

// RenderError reports a template that failed to execute, most often
// because a variable it references was not supplied.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Builder renders prompts from named templates.
//
// Templates are parsed once in NewBuilder and use missingkey=error, so
// rendering with a missing variable fails instead of sending "<no value>"
// to the model. A Builder is read-only after construction.
type Builder struct {
	templates map[string]*template.Template
}

// NewBuilder parses the built-in templates and applies overrides on top of
// them. Overrides may only replace templates that already exist.
func NewBuilder(overrides map[string]string) (*Builder, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	sources := make(map[string]string, len(entries))
	for _, entry := range entries {
		data, err := templateFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read embedded template %s: %w", entry.Name(), err)
		}
		sources[strings.TrimSuffix(entry.Name(), ".tmpl")] = string(data)
	}

	for name, src := range overrides {
		if _, ok := sources[name]; !ok {
			return nil, fmt.Errorf("override %q: %w", name, ErrUnknownTemplate)
		}
		sources[name] = src
	}

	b := &Builder{templates: make(map[string]*template.Template, len(sources))}
	for name, src := range sources {
		t, err := template.New(name).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		b.templates[name] = t
	}
	return b, nil
}

// Render executes the named template against vars.
func (b *Builder) Render(name string, vars map[string]string) (string, error) {
	t, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", &RenderError{Template: name, Err: err}
	}
	return buf.String(), nil
}

// Names returns the known template names in sorted order.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.templates))
	for name := range b.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
