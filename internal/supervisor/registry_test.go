package supervisor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type activeLister map[string]string

func (a activeLister) ActiveModelsBySlot(context.Context) (map[string]string, error) { return a, nil }

func TestRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry(DefaultSpecs(), Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	names := r.Names()
	if len(names) != 4 || names[0] != SlotChat || names[3] != SlotSTT {
		t.Fatalf("names = %v", names)
	}
	s, err := r.Get(SlotTTS)
	if err != nil || s.Name() != SlotTTS {
		t.Fatalf("get tts: %v", err)
	}
	if _, err := r.Get("video"); !IsUnknownSlot(err) {
		t.Fatalf("expected unknown slot, got %v", err)
	}
	for _, snap := range r.Snapshots() {
		if snap.State != StateIdle {
			t.Fatalf("%s not idle", snap.Name)
		}
	}
}

func TestRegistry_RejectsBadSpecs(t *testing.T) {
	if _, err := NewRegistry([]SlotSpec{{Name: "chat"}, {Name: "chat"}}, Deps{}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := NewRegistry([]SlotSpec{{Name: " "}}, Deps{}); err == nil {
		t.Fatalf("expected empty name error")
	}
}

func TestRegistry_ReconcileClearsStaleModels(t *testing.T) {
	rec := &recorder{}
	r, err := NewRegistry(DefaultSpecs(), Deps{Recorder: rec, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	err = r.Reconcile(context.Background(), activeLister{SlotChat: "/m/a.gguf", SlotTTS: ""})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "chat=" {
		t.Fatalf("recorder calls = %v", rec.calls)
	}
}
