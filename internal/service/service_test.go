package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"buddyd/internal/httpapi"
	"buddyd/internal/procstat"
	"buddyd/internal/settings"
	"buddyd/internal/supervisor"
)

var _ httpapi.Service = (*Service)(nil)

func newService(t *testing.T, modelsDir string) (*Service, *settings.MemoryStore) {
	t.Helper()
	known := settings.Defaults(supervisor.DefaultSlots)
	store := settings.NewMemoryStore(known)
	reg, err := supervisor.NewRegistry(supervisor.DefaultSpecs(), supervisor.Deps{Settings: store, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(reg, store, known, modelsDir, zerolog.Nop()), store
}

func TestService_UnknownSlot(t *testing.T) {
	s, _ := newService(t, "")
	if _, err := s.Status("video"); !supervisor.IsUnknownSlot(err) {
		t.Fatalf("expected unknown slot, got %v", err)
	}
	if _, err := s.Stop(context.Background(), "video"); !supervisor.IsUnknownSlot(err) {
		t.Fatalf("expected unknown slot, got %v", err)
	}
}

func TestService_IdleSlots(t *testing.T) {
	s, _ := newService(t, "")
	st, err := s.Status(supervisor.SlotChat)
	if err != nil || st.IsRunning {
		t.Fatalf("status: %+v %v", st, err)
	}
	out, err := s.Stop(context.Background(), supervisor.SlotTTS)
	if err != nil || out.WasRunning {
		t.Fatalf("stop idle: %+v %v", out, err)
	}
	resp := s.Slots()
	if len(resp.Slots) != 4 || resp.Slots[0].State != "idle" {
		t.Fatalf("slots: %+v", resp)
	}
	u, err := s.Usage(context.Background(), supervisor.SlotChat)
	if err != nil || u.Running {
		t.Fatalf("usage idle: %+v %v", u, err)
	}
	if s.Ready() {
		t.Fatalf("ready before MarkReady")
	}
	s.MarkReady()
	if !s.Ready() {
		t.Fatalf("not ready after MarkReady")
	}
}

func TestService_Settings(t *testing.T) {
	s, _ := newService(t, "")
	ctx := context.Background()
	all, err := s.GetSettings(ctx, nil)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all[settings.ProviderKey(supervisor.SlotChat)] != settings.ProviderLocal {
		t.Fatalf("defaults missing: %v", all)
	}
	if _, err := s.GetSettings(ctx, []string{"nope"}); !settings.IsUnknownKey(err) {
		t.Fatalf("expected unknown key, got %v", err)
	}
	if err := s.SetSettings(ctx, map[string]string{"nope": "1"}); !settings.IsUnknownKey(err) {
		t.Fatalf("expected unknown key on set, got %v", err)
	}
	if err := s.SetSettings(ctx, map[string]string{settings.KeyExternalAPIKey: "sk"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ := s.GetSettings(ctx, []string{settings.KeyExternalAPIKey})
	if got[settings.KeyExternalAPIKey] != "sk" {
		t.Fatalf("value not stored: %v", got)
	}
}

func TestService_ModelsUsesSettingDirectory(t *testing.T) {
	fallback := t.TempDir()
	s, store := newService(t, fallback)
	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(fallback, "a.gguf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	resp, err := s.Models(ctx, supervisor.SlotChat)
	if err != nil || len(resp.Models) != 1 || resp.Dir != fallback {
		t.Fatalf("fallback dir: %+v %v", resp, err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ggml-base.en.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = store.Set(ctx, map[string]string{settings.KeyLocalModelDirectory: dir})
	resp, err = s.Models(ctx, supervisor.SlotSTT)
	if err != nil || len(resp.Models) != 1 || resp.Models[0].ID != "ggml-base.en.bin" {
		t.Fatalf("stt models: %+v %v", resp, err)
	}
	resp, err = s.Models(ctx, supervisor.SlotChat)
	if err != nil || len(resp.Models) != 0 {
		t.Fatalf("chat models in stt dir: %+v %v", resp, err)
	}

	_ = store.Set(ctx, map[string]string{settings.KeyLocalModelDirectory: filepath.Join(dir, "missing")})
	resp, err = s.Models(ctx, supervisor.SlotChat)
	if err != nil || len(resp.Models) != 0 {
		t.Fatalf("missing dir: %+v %v", resp, err)
	}
}

func TestService_UsageSampler(t *testing.T) {
	s, _ := newService(t, "")
	s.sample = func(context.Context, int) (procstat.Usage, error) {
		return procstat.Usage{PID: 7, RSSBytes: 1024}, nil
	}
	// No live process: the sampler must not be consulted.
	u, _ := s.Usage(context.Background(), supervisor.SlotImage)
	if u.Running || u.RSSBytes != 0 {
		t.Fatalf("unexpected usage for idle slot: %+v", u)
	}
}
