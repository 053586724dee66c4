package params

import "testing"

func TestResolve_LiteralTable(t *testing.T) {
	r := New(
		[]TemplateRule{{Match: "llama-3", Template: "llama3"}},
		[]ContextRule{{Match: "llama-3", ContextLength: 8192}},
	)
	got := r.Resolve("/models/chat/Meta-Llama-3-8B.gguf")
	if got.ChatTemplate != "llama3" || got.ContextLength != 8192 {
		t.Fatalf("unexpected params: %+v", got)
	}
}

func TestResolve_NoMatchUsesDefaults(t *testing.T) {
	r := New(
		[]TemplateRule{{Match: "llama-3", Template: "llama3"}},
		[]ContextRule{{Match: "llama-3", ContextLength: 8192}},
	)
	got := r.Resolve("/models/tinyllama-q4.gguf")
	if got.ChatTemplate != "" || got.ContextLength != DefaultContextLength {
		t.Fatalf("unexpected params: %+v", got)
	}
}

func TestResolve_FirstRuleWins(t *testing.T) {
	r := New(
		[]TemplateRule{
			{Match: "wizard", Template: "first"},
			{Match: "WizardLM-2", Template: "second"},
		},
		[]ContextRule{
			{Match: "7b", ContextLength: 2048},
			{Match: "wizard", ContextLength: 16384},
		},
	)
	got := r.Resolve("WizardLM-2-7B.Q4_K_M.gguf")
	if got.ChatTemplate != "first" {
		t.Fatalf("template=%q, want first", got.ChatTemplate)
	}
	if got.ContextLength != 2048 {
		t.Fatalf("context=%d, want 2048", got.ContextLength)
	}
}

func TestResolve_MatchesFileNameOnly(t *testing.T) {
	r := New([]TemplateRule{{Match: "gemma", Template: "gemma"}}, nil)
	if got := r.ChatTemplate("/home/u/gemma/models/mistral-7b.gguf"); got != "" {
		t.Fatalf("directory component matched: %q", got)
	}
	if got := r.ChatTemplate(`C:\Users\u\Models\gemma-2b.gguf`); got != "gemma" {
		t.Fatalf("windows path not matched: %q", got)
	}
}

func TestDefaultTables(t *testing.T) {
	r := NewDefault(nil, nil)
	cases := []struct {
		path     string
		template string
		ctx      int
	}{
		{"Moistral-11B-v3.Q4_K_M.gguf", "vicuna", DefaultContextLength},
		{"WizardLM-2-7B.Q8_0.gguf", "vicuna", DefaultContextLength},
		{"Meta-Llama-3-8B-Instruct.Q4_K_M.gguf", "llama3", 8192},
		{"Mistral-7B-Instruct-v0.2.Q4_K_M.gguf", "", 32768},
		{"unknown.gguf", "", DefaultContextLength},
	}
	for _, c := range cases {
		got := r.Resolve(c.path)
		if got.ChatTemplate != c.template || got.ContextLength != c.ctx {
			t.Fatalf("%s -> %+v, want template=%q ctx=%d", c.path, got, c.template, c.ctx)
		}
	}
}

func TestNewDefault_ExtraRulesTakePrecedence(t *testing.T) {
	r := NewDefault(
		[]TemplateRule{{Match: "Moistral", Template: "chatml"}, {Match: "", Template: "dropped"}},
		[]ContextRule{{Match: "llama-3", ContextLength: 4096}, {Match: "x", ContextLength: 0}},
	)
	if got := r.ChatTemplate("Moistral-11B.gguf"); got != "chatml" {
		t.Fatalf("template=%q", got)
	}
	if got := r.ContextLength("Meta-Llama-3-8B.gguf"); got != 4096 {
		t.Fatalf("context=%d", got)
	}
	if got := r.ContextLength("x.gguf"); got != DefaultContextLength {
		t.Fatalf("invalid rule was kept: %d", got)
	}
}
