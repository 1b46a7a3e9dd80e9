// Package prompt builds the model prompt from a validated question and the
// grounding document.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// Data is the value set a prompt template may reference.
type Data struct {
	Question     string
	Document     string
	DefaultLimit int
	MaxLimit     int
}

// Composer renders a parsed template. It holds no mutable state and is safe
// for concurrent use.
type Composer struct {
	tmpl *template.Template
}

// NewComposer parses text and dry-runs it so that unknown fields fail at
// start rather than per request.
func NewComposer(text string) (*Composer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("op=prompt.NewComposer: empty template")
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("op=prompt.NewComposer: %w", err)
	}
	c := &Composer{tmpl: tmpl}
	if _, err := c.Compose("q", "d", 1, 2); err != nil {
		return nil, fmt.Errorf("op=prompt.NewComposer: dry run: %w", err)
	}
	return c, nil
}

// NewDefaultComposer picks the built-in grounded or ungrounded template.
func NewDefaultComposer(grounded bool) *Composer {
	text := UngroundedTemplate
	if grounded {
		text = GroundedTemplate
	}
	c, err := NewComposer(text)
	if err != nil {
		panic(err) // built-in templates are covered by tests
	}
	return c
}

// Compose substitutes the inputs verbatim. The question and document are
// template data, so braces inside them are never interpreted.
func (c *Composer) Compose(question, document string, defaultLimit, maxLimit int) (string, error) {
	var b strings.Builder
	err := c.tmpl.Execute(&b, Data{
		Question:     question,
		Document:     document,
		DefaultLimit: defaultLimit,
		MaxLimit:     maxLimit,
	})
	if err != nil {
		return "", fmt.Errorf("op=prompt.Compose: %w", err)
	}
	return b.String(), nil
}
