// Package params maps a model file name to launch parameters for the chat
// server. Rules are matched as case-insensitive substrings of the base file
// name, in table order; the first hit wins.
package params

import (
	"path/filepath"
	"strings"
)

// DefaultContextLength is used when no context rule matches.
const DefaultContextLength = 4096

// TemplateRule selects a chat template for model names containing Match.
type TemplateRule struct {
	Match    string `json:"match" yaml:"match" toml:"match"`
	Template string `json:"template" yaml:"template" toml:"template"`
}

// ContextRule selects a context length for model names containing Match.
type ContextRule struct {
	Match         string `json:"match" yaml:"match" toml:"match"`
	ContextLength int    `json:"context_length" yaml:"context_length" toml:"context_length"`
}

// Params are the resolved per-model launch parameters.
// An empty ChatTemplate means the server uses the template embedded in the model.
type Params struct {
	ChatTemplate  string
	ContextLength int
}

// Resolver holds immutable rule tables. It is safe for concurrent use.
type Resolver struct {
	templates []TemplateRule
	contexts  []ContextRule
}

// DefaultTemplateRules are the built-in chat template overrides. Most GGUF files
// embed a usable template; these cover models known to ship without one.
var DefaultTemplateRules = []TemplateRule{
	{Match: "Moistral", Template: "vicuna"},
	{Match: "WizardLM-2", Template: "vicuna"},
	{Match: "llama-3", Template: "llama3"},
	{Match: "phi-3", Template: "phi3"},
	{Match: "gemma", Template: "gemma"},
}

// DefaultContextRules are the built-in context length overrides.
var DefaultContextRules = []ContextRule{
	{Match: "llama-3", ContextLength: 8192},
	{Match: "gemma", ContextLength: 8192},
	{Match: "mistral", ContextLength: 32768},
	{Match: "phi-3", ContextLength: 4096},
}

// New builds a resolver from the given tables. The slices are copied and rules
// with an empty Match are dropped.
func New(templates []TemplateRule, contexts []ContextRule) *Resolver {
	r := &Resolver{}
	for _, t := range templates {
		if strings.TrimSpace(t.Match) == "" || strings.TrimSpace(t.Template) == "" {
			continue
		}
		r.templates = append(r.templates, t)
	}
	for _, c := range contexts {
		if strings.TrimSpace(c.Match) == "" || c.ContextLength <= 0 {
			continue
		}
		r.contexts = append(r.contexts, c)
	}
	return r
}

// NewDefault returns a resolver over the built-in tables with extra rules
// taking precedence over the defaults.
func NewDefault(extraTemplates []TemplateRule, extraContexts []ContextRule) *Resolver {
	t := append(append([]TemplateRule(nil), extraTemplates...), DefaultTemplateRules...)
	c := append(append([]ContextRule(nil), extraContexts...), DefaultContextRules...)
	return New(t, c)
}

// Resolve returns launch parameters for modelPath.
func (r *Resolver) Resolve(modelPath string) Params {
	return Params{
		ChatTemplate:  r.ChatTemplate(modelPath),
		ContextLength: r.ContextLength(modelPath),
	}
}

// ChatTemplate returns the template of the first matching rule or "".
func (r *Resolver) ChatTemplate(modelPath string) string {
	name := fileName(modelPath)
	for _, t := range r.templates {
		if strings.Contains(name, strings.ToLower(t.Match)) {
			return t.Template
		}
	}
	return ""
}

// ContextLength returns the context length of the first matching rule or
// DefaultContextLength.
func (r *Resolver) ContextLength(modelPath string) int {
	name := fileName(modelPath)
	for _, c := range r.contexts {
		if strings.Contains(name, strings.ToLower(c.Match)) {
			return c.ContextLength
		}
	}
	return DefaultContextLength
}

func fileName(modelPath string) string {
	// Accept both separators; paths may come from another OS via settings.
	p := strings.ReplaceAll(modelPath, "\\", "/")
	return strings.ToLower(filepath.Base(filepath.FromSlash(p)))
}
