package supervisor

import (
	"context"
	"fmt"
	"strings"
)

// ActiveModelLister reports persisted active models, used to reconcile state
// left behind by a previous run.
type ActiveModelLister interface {
	ActiveModelsBySlot(ctx context.Context) (map[string]string, error)
}

// Registry holds one Supervisor per slot name, in registration order.
type Registry struct {
	order []string
	slots map[string]*Supervisor
	deps  Deps
}

// NewRegistry builds a supervisor for every spec. Names must be unique and non-empty.
func NewRegistry(specs []SlotSpec, deps Deps) (*Registry, error) {
	r := &Registry{slots: make(map[string]*Supervisor, len(specs)), deps: deps}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("slot spec without a name")
		}
		if _, dup := r.slots[name]; dup {
			return nil, fmt.Errorf("duplicate slot %q", name)
		}
		spec.Name = name
		r.slots[name] = New(spec, deps)
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns the supervisor for name or an unknown slot error.
func (r *Registry) Get(name string) (*Supervisor, error) {
	if s, ok := r.slots[name]; ok {
		return s, nil
	}
	return nil, ErrUnknownSlot(name)
}

// Names returns slot names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the supervisors in registration order.
func (r *Registry) All() []*Supervisor {
	out := make([]*Supervisor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.slots[n])
	}
	return out
}

// Snapshots returns a snapshot of every slot.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.order))
	for _, s := range r.All() {
		out = append(out, s.Snapshot())
	}
	return out
}

// Reconcile clears persisted active models: no process survives a daemon
// restart, so anything recorded by a previous run is stale.
func (r *Registry) Reconcile(ctx context.Context, lister ActiveModelLister) error {
	if lister == nil || r.deps.Recorder == nil {
		return nil
	}
	active, err := lister.ActiveModelsBySlot(ctx)
	if err != nil {
		return fmt.Errorf("list active models: %w", err)
	}
	for slot, model := range active {
		if model == "" {
			continue
		}
		r.deps.Logger.Info().Str("slot", slot).Str("model", model).Msg("clearing stale active model")
		if err := r.deps.Recorder.UpdateModel(ctx, slot, ""); err != nil {
			return fmt.Errorf("clear %s: %w", slot, err)
		}
	}
	return nil
}
