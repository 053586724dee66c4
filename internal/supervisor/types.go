package supervisor

import (
	"os/exec"
	"time"
)

// Built-in slot names.
const (
	SlotChat  = "chat"
	SlotImage = "image"
	SlotTTS   = "tts"
	SlotSTT   = "stt"
)

// DefaultSlots lists the built-in slots in registry order.
var DefaultSlots = []string{SlotChat, SlotImage, SlotTTS, SlotSTT}

// State represents the lifecycle state of a slot.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateStopping State = "stopping"
)

var allStates = []State{StateIdle, StateStarting, StateReady, StateStopping}

// StartRequest asks a slot to serve ModelPath. A nil GPULayers selects the
// slot default; zero is a valid request for CPU-only inference.
type StartRequest struct {
	ModelPath string
	GPULayers *int
}

// StartOutcome describes a successful Start.
type StartOutcome struct {
	Message string
	// Model is the normalized model path (or the external model id).
	Model string
	PID   int
	// AlreadyRunning is set when the slot was ready and nothing was done.
	AlreadyRunning bool
	// External is set when the slot's provider is external and no process was spawned.
	External bool
}

// StopOutcome describes a Stop. Stop never fails.
type StopOutcome struct {
	Message    string
	WasRunning bool
}

// StatusResult is the readiness flag of a slot.
type StatusResult struct {
	IsRunning bool
}

// Snapshot is a read-only projection of a slot.
type Snapshot struct {
	Name        string
	State       State
	PID         int
	ActiveModel string
	LastModel   string
	StartedAt   time.Time
	ReadyAt     time.Time
	LastError   string
	Spawns      int
}

// process is the live child owned by a slot.
type process struct {
	cmd     *exec.Cmd
	pid     int
	attempt string
	watcher *readinessWatcher
	// done is closed after cmd.Wait returns; waitErr is valid afterwards.
	done    chan struct{}
	waitErr error
}
