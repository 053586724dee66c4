// Package supervisor owns the lifecycle of local model-server processes. It is
// structured into small files by concern:
//
//   - supervisor.go: Supervisor type, Start/Stop/Status/LastModel.
//   - spec.go: SlotSpec, launch parameters and the per-slot argument builders.
//   - watcher.go: readiness watcher scanning child output for the ready marker.
//   - registry.go: Registry holding one Supervisor per slot.
//   - process_*.go: platform process attributes and forced kill.
//   - errors.go: error types and helpers (IsConfiguration, IsSpawn, ...).
//   - events.go, eventpub_memory.go: lifecycle events for observers and tests.
//   - metrics.go: Prometheus collectors for slot state and start outcomes.
//
// State machine per slot:
//
//	idle -> starting -> ready -> stopping -> idle
//	starting -> idle   (spawn error, early exit, timeout, cancellation)
//	starting -> stopping -> idle   (Stop during Start, before or after spawn)
//	ready -> idle      (process crashed; no automatic restart)
//
// A slot is starting from the moment Start commits to it, before settings are
// read, so Stop always sees an in-flight Start and cancels it.
//
// The persisted active model is written after every transition that changes
// it. Writes are serialized and always store the state at write time.
//
// Status reports the in-memory state only. A crash becomes visible once the
// waiter goroutine observes the exit, so callers should treat Status as
// eventually consistent.
package supervisor
