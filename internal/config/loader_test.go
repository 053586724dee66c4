package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
data_dir: /tmp/buddy
bin_dir: /opt/bin
log_level: debug
start_timeout: 90s
binaries:
  llama.cpp: /opt/llama/llama-server
slots:
  chat:
    port: 9090
    gpu_layers: 0
    extra_args: ["--flash-attn"]
template_rules:
  - match: Hermes
    template: chatml
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.DataDir != "/tmp/buddy" || cfg.BinDir != "/opt/bin" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.StartTimeout.Duration != 90*time.Second {
		t.Fatalf("start_timeout = %v", cfg.StartTimeout)
	}
	if cfg.Binaries["llama.cpp"] != "/opt/llama/llama-server" {
		t.Fatalf("binaries = %v", cfg.Binaries)
	}
	chat := cfg.Slots["chat"]
	if chat.Port != 9090 || chat.GPULayers == nil || *chat.GPULayers != 0 || len(chat.ExtraArgs) != 1 {
		t.Fatalf("slot override = %+v", chat)
	}
	if len(cfg.TemplateRules) != 1 || cfg.TemplateRules[0].Template != "chatml" {
		t.Fatalf("template rules = %+v", cfg.TemplateRules)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","stop_timeout":"2s","cors_origins":["http://localhost:3000"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.StopTimeout.Duration != 2*time.Second || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	// Unspecified fields get defaults.
	if cfg.LogLevel != "info" || cfg.ShutdownTimeout.Duration != DefaultShutdownTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `addr = ":8081"
data_dir = "/x"
start_timeout = "45s"

[slots.stt]
binary = "whisper-server-cuda"
gpu_layers = 1

[[context_rules]]
match = "qwen"
context_length = 32768
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.DataDir != "/x" || cfg.BinDir != filepath.Join("/x", "bin") {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Slots["stt"].Binary != "whisper-server-cuda" || cfg.StartTimeout.Duration != 45*time.Second {
		t.Fatalf("unexpected slots: %+v", cfg.Slots)
	}
	if len(cfg.ContextRules) != 1 || cfg.ContextRules[0].ContextLength != 32768 {
		t.Fatalf("context rules = %+v", cfg.ContextRules)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	p = writeTempFile(t, d, "dur.yaml", "start_timeout: soon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
