package supervisor

// Event names emitted by a Supervisor.
const (
	EventSpawnStart = "spawn_start"
	EventSpawnReady = "spawn_ready"
	EventSpawnError = "spawn_error"
	EventSpawnExit  = "spawn_exit"
	EventCrash      = "crash"
	EventStop       = "stop"
	EventExternal   = "external"
)

// Event represents a slot lifecycle event.
// Minimal and stable: name + slot + model and optional fields via key/values.
type Event struct {
	Name   string
	Slot   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from supervisors. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
