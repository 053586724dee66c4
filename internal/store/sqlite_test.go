package store

import (
	"context"
	"testing"

	"buddyd/internal/settings"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(t.TempDir(), settings.Defaults([]string{"chat", "tts"}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSettings_DefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if v, err := s.Get(ctx, settings.ProviderKey("chat")); err != nil || v != settings.ProviderLocal {
		t.Fatalf("default provider=%q err=%v", v, err)
	}
	if v, err := s.Get(ctx, "never-set"); err != nil || v != "" {
		t.Fatalf("unknown key=%q err=%v", v, err)
	}

	err := s.Set(ctx, map[string]string{
		settings.ProviderKey("chat"): settings.ProviderExternal,
		settings.KeyExternalAPIKey:   "sk-test",
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	// overwrite one key
	if err := s.Set(ctx, map[string]string{settings.KeyExternalAPIKey: "sk-2"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	snap, err := s.GetSettings(ctx, settings.ProviderKey("chat"), settings.KeyExternalAPIKey, settings.ModelKey("chat"))
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if snap[settings.ProviderKey("chat")] != settings.ProviderExternal || snap[settings.KeyExternalAPIKey] != "sk-2" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if v, ok := snap[settings.ModelKey("chat")]; !ok || v != "" {
		t.Fatalf("missing default for model key: %+v", snap)
	}

	all, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all[settings.ProviderKey("tts")] != settings.ProviderLocal {
		t.Fatalf("defaults missing from full snapshot: %+v", all)
	}
}

func TestUpdateModel_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.UpdateModel(ctx, "chat", "/m/a.gguf"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateModel(ctx, "tts", "/m/voice.onnx"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateModel(ctx, "chat", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err := s.ActiveModels(ctx)
	if err != nil {
		t.Fatalf("active models: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %+v", got)
	}
	if got[0].Slot != "chat" || got[0].Model != "" {
		t.Fatalf("chat record not cleared: %+v", got[0])
	}
	if got[1].Slot != "tts" || got[1].Model != "/m/voice.onnx" || got[1].UpdatedAt.IsZero() {
		t.Fatalf("unexpected tts record: %+v", got[1])
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, map[string]string{settings.KeyLocalModelDirectory: "/models"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = s.Close()

	s2, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, _ := s2.Get(ctx, settings.KeyLocalModelDirectory); v != "/models" {
		t.Fatalf("value not persisted: %q", v)
	}
}

func TestActiveModelsBySlot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_ = s.UpdateModel(ctx, "chat", "/m/a.gguf")
	_ = s.UpdateModel(ctx, "stt", "")
	got, err := s.ActiveModelsBySlot(ctx)
	if err != nil {
		t.Fatalf("by slot: %v", err)
	}
	if got["chat"] != "/m/a.gguf" || len(got) != 2 {
		t.Fatalf("unexpected map: %v", got)
	}
	if v, ok := got["stt"]; !ok || v != "" {
		t.Fatalf("stt entry missing or non-empty: %q %v", v, ok)
	}
}
