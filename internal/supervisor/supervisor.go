package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"buddyd/internal/common/fsutil"
	"buddyd/internal/params"
	"buddyd/internal/settings"
)

const (
	defaultStopTimeout = 5 * time.Second
	waitDelay          = 2 * time.Second
	persistTimeout     = 5 * time.Second
)

// SettingsReader is the part of the settings store a supervisor needs.
type SettingsReader interface {
	GetSettings(ctx context.Context, keys ...string) (map[string]string, error)
}

// BinaryLocator resolves a tool's executable.
type BinaryLocator interface {
	FindBinaryPath(tool, binary string) (string, error)
}

// ModelRecorder persists the active model of a slot ("" when idle).
type ModelRecorder interface {
	UpdateModel(ctx context.Context, slot, model string) error
}

// ParamResolver derives chat template and context length from a model path.
type ParamResolver interface {
	Resolve(modelPath string) params.Params
}

// Deps are the collaborators shared by all supervisors.
type Deps struct {
	Settings  SettingsReader
	Locator   BinaryLocator
	Resolver  ParamResolver
	Recorder  ModelRecorder
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// Supervisor owns at most one model-server process for a slot.
type Supervisor struct {
	spec       SlotSpec
	deps       Deps
	log        zerolog.Logger
	newCommand func(name string, args ...string) *exec.Cmd

	// startMu serializes Start calls; Stop does not take it.
	startMu sync.Mutex

	mu          sync.RWMutex
	state       State
	proc        *process
	activeModel string
	lastModel   string
	lastErr     string
	startedAt   time.Time
	readyAt     time.Time
	spawns      int
	// pending is the in-flight Start. It is set before Start's first blocking
	// call so Stop can cancel it.
	pending *pendingStart

	// recordMu orders persistence writes.
	recordMu sync.Mutex
}

type pendingStart struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Supervisor for spec.
func New(spec SlotSpec, deps Deps) *Supervisor {
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.Resolver == nil {
		deps.Resolver = params.NewDefault(nil, nil)
	}
	if spec.Args == nil {
		spec.Args = GenericArgs
	}
	if spec.StopTimeout <= 0 {
		spec.StopTimeout = defaultStopTimeout
	}
	s := &Supervisor{
		spec:       spec,
		deps:       deps,
		log:        deps.Logger.With().Str("slot", spec.Name).Logger(),
		newCommand: exec.Command,
		state:      StateIdle,
	}
	observeState(spec.Name, StateIdle)
	return s
}

func (s *Supervisor) Name() string   { return s.spec.Name }
func (s *Supervisor) Spec() SlotSpec { return s.spec }

// Start brings the slot's server to readiness for req.ModelPath. It is a no-op
// when the slot is already ready.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (StartOutcome, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	requested := strings.TrimSpace(req.ModelPath)
	s.mu.Lock()
	if s.state == StateReady {
		active := s.activeModel
		s.mu.Unlock()
		slotStartsTotal.WithLabelValues(s.spec.Name, outcomeAlreadyRunning).Inc()
		return StartOutcome{Message: "Server already running", Model: active, AlreadyRunning: true}, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	ps := &pendingStart{cancel: cancel, done: make(chan struct{})}
	s.pending = ps
	prev := s.proc
	if prev == nil {
		s.setState(StateStarting)
	}
	s.lastModel = requested
	s.lastErr = ""
	s.mu.Unlock()
	defer s.finishStart(ps)

	// A stop that could not confirm exit leaves the old process attached.
	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "previous process still exiting", cause: ctx.Err()}, requested)
		}
		s.mu.Lock()
		if s.proc == nil {
			s.setState(StateStarting)
		}
		s.mu.Unlock()
	}

	snap, err := s.readSettings(ctx)
	if cerr := ctx.Err(); cerr != nil {
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "start canceled", cause: cerr}, requested)
	}
	if err != nil {
		return StartOutcome{}, s.rejectConfig(err.Error())
	}
	if strings.EqualFold(snap[settings.ProviderKey(s.spec.Name)], settings.ProviderExternal) {
		return s.startExternal(snap)
	}

	if requested == "" {
		slotStartsTotal.WithLabelValues(s.spec.Name, outcomeConfigError).Inc()
		return StartOutcome{}, invalidRequestError{msg: "model path is empty"}
	}
	modelPath, err := fsutil.NormalizePath(snap[settings.KeyLocalModelDirectory], requested)
	if err != nil {
		slotStartsTotal.WithLabelValues(s.spec.Name, outcomeConfigError).Inc()
		return StartOutcome{}, invalidRequestError{msg: err.Error()}
	}
	lp := s.launchParams(modelPath, req.GPULayers)

	if s.deps.Locator == nil {
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "no binary locator configured"}, "")
	}
	bin, err := s.deps.Locator.FindBinaryPath(s.spec.Tool, s.spec.Binary)
	if err != nil {
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "locate binary", cause: err}, modelPath)
	}
	args := append(s.spec.Args(lp), s.spec.ExtraArgs...)
	return s.spawn(ctx, bin, args, lp)
}

// finishStart clears the pending marker and returns a slot that never got a
// process back to idle.
func (s *Supervisor) finishStart(ps *pendingStart) {
	ps.cancel()
	s.mu.Lock()
	if s.pending == ps {
		s.pending = nil
	}
	if s.proc == nil && s.state != StateIdle {
		s.setState(StateIdle)
	}
	s.mu.Unlock()
	close(ps.done)
}

func (s *Supervisor) readSettings(ctx context.Context) (map[string]string, error) {
	if s.deps.Settings == nil {
		return map[string]string{}, nil
	}
	snap, err := s.deps.Settings.GetSettings(ctx,
		settings.ProviderKey(s.spec.Name),
		settings.KeyExternalAPIKey,
		settings.ModelKey(s.spec.Name),
		settings.KeyLocalModelDirectory,
	)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Supervisor) startExternal(snap map[string]string) (StartOutcome, error) {
	if strings.TrimSpace(snap[settings.KeyExternalAPIKey]) == "" {
		return StartOutcome{}, s.rejectConfig("external provider selected but no API key is set")
	}
	model := strings.TrimSpace(snap[settings.ModelKey(s.spec.Name)])
	if model == "" {
		return StartOutcome{}, s.rejectConfig("external provider selected but no model is set")
	}
	s.log.Info().Str("event", EventExternal).Str("model", model).Msg("external provider selected; nothing to spawn")
	s.deps.Publisher.Publish(Event{Name: EventExternal, Slot: s.spec.Name, Model: model})
	slotStartsTotal.WithLabelValues(s.spec.Name, outcomeExternal).Inc()
	return StartOutcome{Message: "Using external provider", Model: model, External: true}, nil
}

func (s *Supervisor) launchParams(modelPath string, gpuLayers *int) LaunchParams {
	lp := LaunchParams{
		ModelPath:     modelPath,
		GPULayers:     s.spec.DefaultGPULayers,
		ContextLength: params.DefaultContextLength,
		Host:          s.spec.Host,
		Port:          s.spec.Port,
	}
	if gpuLayers != nil && *gpuLayers >= 0 {
		lp.GPULayers = *gpuLayers
	}
	if s.spec.UsesParams {
		p := s.deps.Resolver.Resolve(modelPath)
		lp.ChatTemplate = p.ChatTemplate
		lp.ContextLength = p.ContextLength
	}
	return lp
}

func (s *Supervisor) spawn(ctx context.Context, bin string, args []string, lp LaunchParams) (StartOutcome, error) {
	attempt := uuid.NewString()
	log := s.log.With().Str("attempt", attempt).Str("model", lp.ModelPath).Logger()
	w := newReadinessWatcher(s.spec.ReadyMarker, func(line string) {
		log.Debug().Str("stream", "child").Msg(line)
	})

	cmd := s.newCommand(bin, args...)
	cmd.Stdin = nil
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	// Stop cancels ctx; past this point the select below observes it.
	if err := ctx.Err(); err != nil {
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "start canceled", cause: err}, lp.ModelPath)
	}
	begin := time.Now()
	if err := cmd.Start(); err != nil {
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "start " + bin, cause: err}, lp.ModelPath)
	}
	p := &process{cmd: cmd, pid: cmd.Process.Pid, attempt: attempt, watcher: w, done: make(chan struct{})}
	s.mu.Lock()
	s.proc = p
	s.spawns++
	s.startedAt = begin
	s.mu.Unlock()
	log.Info().Str("event", EventSpawnStart).Int("pid", p.pid).Str("bin", bin).Strs("args", args).Msg("process spawned")
	s.deps.Publisher.Publish(Event{Name: EventSpawnStart, Slot: s.spec.Name, Model: lp.ModelPath, Fields: map[string]any{"pid": p.pid, "attempt": attempt}})
	go s.wait(p, lp.ModelPath)

	var timeout <-chan time.Time
	if s.spec.StartTimeout > 0 {
		t := time.NewTimer(s.spec.StartTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-w.Ready():
		s.mu.Lock()
		if s.proc != p || s.state != StateStarting {
			s.mu.Unlock()
			s.abort(p)
			return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "stopped before becoming ready"}, lp.ModelPath)
		}
		s.setState(StateReady)
		s.activeModel = lp.ModelPath
		s.readyAt = time.Now()
		s.mu.Unlock()

		elapsed := time.Since(begin)
		slotReadySeconds.WithLabelValues(s.spec.Name).Observe(elapsed.Seconds())
		slotStartsTotal.WithLabelValues(s.spec.Name, outcomeReady).Inc()
		log.Info().Str("event", EventSpawnReady).Int("pid", p.pid).Dur("elapsed", elapsed).Msg("process ready")
		s.deps.Publisher.Publish(Event{Name: EventSpawnReady, Slot: s.spec.Name, Model: lp.ModelPath, Fields: map[string]any{"pid": p.pid, "attempt": attempt}})
		s.persist(ctx)
		return StartOutcome{Message: "Server started", Model: lp.ModelPath, PID: p.pid}, nil

	case <-p.done:
		msg := "exited before ready"
		if tail := w.Tail(); tail != "" {
			msg += " (output: " + lastLine(tail) + ")"
		}
		s.deps.Publisher.Publish(Event{Name: EventSpawnExit, Slot: s.spec.Name, Model: lp.ModelPath, Fields: map[string]any{"attempt": attempt}})
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: msg, cause: p.waitErr}, lp.ModelPath)

	case <-ctx.Done():
		s.abort(p)
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "start canceled", cause: ctx.Err()}, lp.ModelPath)

	case <-timeout:
		s.abort(p)
		return StartOutcome{}, s.rejectSpawn(spawnError{slot: s.spec.Name, msg: "not ready within " + s.spec.StartTimeout.String()}, lp.ModelPath)
	}
}

// wait owns cmd.Wait for p. When p is still the slot's process it resets the
// slot to idle; an exit while ready is reported as a crash.
func (s *Supervisor) wait(p *process, model string) {
	err := p.cmd.Wait()

	s.mu.Lock()
	p.waitErr = err
	crashed := false
	if s.proc == p {
		crashed = s.state == StateReady
		s.proc = nil
		s.activeModel = ""
		s.setState(StateIdle)
		if crashed {
			s.lastErr = exitText(err)
		}
	}
	s.mu.Unlock()
	close(p.done)

	if !crashed {
		s.log.Debug().Str("attempt", p.attempt).Int("pid", p.pid).Str("exit", exitText(err)).Msg("process exited")
		return
	}
	slotCrashesTotal.WithLabelValues(s.spec.Name).Inc()
	s.log.Error().Str("event", EventCrash).Str("attempt", p.attempt).Int("pid", p.pid).Str("model", model).Str("exit", exitText(err)).Msg("process exited while ready")
	s.deps.Publisher.Publish(Event{Name: EventCrash, Slot: s.spec.Name, Model: model, Fields: map[string]any{"pid": p.pid, "exit": exitText(err)}})
	s.persist(context.Background())
}

// abort kills a process that never became ready and waits for its exit.
func (s *Supervisor) abort(p *process) {
	if err := killProcess(p.cmd); err != nil {
		s.log.Warn().Err(err).Int("pid", p.pid).Msg("kill failed")
	}
	select {
	case <-p.done:
	case <-time.After(s.spec.StopTimeout):
		// The waiter goroutine resets the slot once the exit is observed.
		s.mu.Lock()
		if s.proc == p {
			s.setState(StateStopping)
		}
		s.mu.Unlock()
		s.log.Warn().Int("pid", p.pid).Msg("exit not confirmed after kill; slot stays stopping")
	}
}

// Stop kills the slot's process, including one that is still starting, and
// cancels a Start that has not spawned yet. It is a no-op when the slot is idle
// and never fails.
func (s *Supervisor) Stop(ctx context.Context) StopOutcome {
	s.mu.Lock()
	p, ps := s.proc, s.pending
	if p == nil && ps == nil {
		s.mu.Unlock()
		return StopOutcome{Message: "Server not running"}
	}
	if ps != nil {
		ps.cancel()
	}
	s.setState(StateStopping)
	model := s.activeModel
	s.mu.Unlock()

	deadline := time.NewTimer(s.spec.StopTimeout)
	defer deadline.Stop()
	confirmed := true
	pid := 0
	if p != nil {
		pid = p.pid
		if err := killProcess(p.cmd); err != nil {
			s.log.Warn().Err(err).Int("pid", p.pid).Msg("kill failed")
		}
		confirmed = waitClosed(ctx, p.done, deadline.C)
	}
	// A canceled Start returns only after any child it spawned has exited.
	if ps != nil && confirmed {
		confirmed = waitClosed(ctx, ps.done, deadline.C)
	}
	if !confirmed {
		s.log.Warn().Int("pid", pid).Msg("exit not confirmed; slot stays stopping")
	}

	s.persist(ctx)
	s.log.Info().Str("event", EventStop).Int("pid", pid).Str("model", model).Msg("process stopped")
	s.deps.Publisher.Publish(Event{Name: EventStop, Slot: s.spec.Name, Model: model, Fields: map[string]any{"pid": pid, "confirmed": confirmed}})
	return StopOutcome{Message: "Server stopped", WasRunning: true}
}

func waitClosed(ctx context.Context, done <-chan struct{}, timeout <-chan time.Time) bool {
	select {
	case <-done:
		return true
	case <-timeout:
		return false
	case <-ctx.Done():
		return false
	}
}

// Status reports the in-memory readiness flag without probing the process.
func (s *Supervisor) Status() StatusResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusResult{IsRunning: s.state == StateReady}
}

// LastModel returns the most recently requested model path; it survives Stop.
func (s *Supervisor) LastModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastModel
}

// PID returns the live child's pid, or 0.
func (s *Supervisor) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.pid
}

// Snapshot returns a read-only view of the slot.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Name:        s.spec.Name,
		State:       s.state,
		ActiveModel: s.activeModel,
		LastModel:   s.lastModel,
		StartedAt:   s.startedAt,
		ReadyAt:     s.readyAt,
		LastError:   s.lastErr,
		Spawns:      s.spawns,
	}
	if s.proc != nil {
		snap.PID = s.proc.pid
	}
	return snap
}

// setState must be called with mu held.
func (s *Supervisor) setState(st State) {
	s.state = st
	observeState(s.spec.Name, st)
}

func (s *Supervisor) rejectConfig(msg string) error {
	slotStartsTotal.WithLabelValues(s.spec.Name, outcomeConfigError).Inc()
	s.log.Warn().Str("event", "config_error").Msg(msg)
	return ErrConfiguration(s.spec.Name, "%s", msg)
}

// rejectSpawn records a failed start. The slot is left idle unless another
// process has taken over in the meantime.
func (s *Supervisor) rejectSpawn(err spawnError, model string) error {
	s.mu.Lock()
	s.lastErr = err.Error()
	if s.proc == nil && s.state != StateIdle {
		s.setState(StateIdle)
	}
	s.mu.Unlock()
	slotStartsTotal.WithLabelValues(s.spec.Name, outcomeSpawnError).Inc()
	s.log.Error().Str("event", EventSpawnError).Str("model", model).Err(err).Msg("start failed")
	s.deps.Publisher.Publish(Event{Name: EventSpawnError, Slot: s.spec.Name, Model: model, Fields: map[string]any{"error": err.Error()}})
	return err
}

// persist writes the slot's active model, "" unless ready. Writes are
// serialized and each one reads the state when it runs, so the last write
// matches the final state. The write outlives the caller's ctx.
func (s *Supervisor) persist(ctx context.Context) {
	if s.deps.Recorder == nil {
		return
	}
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	s.mu.RLock()
	model := ""
	if s.state == StateReady {
		model = s.activeModel
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.deps.Recorder.UpdateModel(ctx, s.spec.Name, model); err != nil {
		s.log.Warn().Err(err).Str("model", model).Msg("persist active model failed")
	}
}

func exitText(err error) string {
	if err == nil {
		return "exit status 0"
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.String()
	}
	return err.Error()
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
