package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptPolicy holds the text-heavy prompt settings that do not fit in
// environment variables. Empty fields keep the built-in defaults.
type PromptPolicy struct {
	Template            string   `yaml:"template"`
	ElaborationKeywords []string `yaml:"elaboration_keywords"`
}

// LoadPromptPolicy reads a PromptPolicy from a YAML file.
// An empty path yields the zero policy.
func LoadPromptPolicy(path string) (PromptPolicy, error) {
	var p PromptPolicy
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return p, fmt.Errorf("op=config.LoadPromptPolicy: %w", err)
	}
	b, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied path
	if err != nil {
		return p, fmt.Errorf("op=config.LoadPromptPolicy: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return PromptPolicy{}, fmt.Errorf("op=config.LoadPromptPolicy: parse %s: %w", filepath.Base(absPath), err)
	}
	kw := p.ElaborationKeywords[:0]
	for _, k := range p.ElaborationKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	p.ElaborationKeywords = kw
	return p, nil
}
