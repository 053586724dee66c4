// Package lifecycle ties slot processes to the daemon's own lifetime: every
// termination path (signal, panic, normal return) stops all slots once.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"buddyd/internal/supervisor"
)

// Stopper is a slot that can be stopped. *supervisor.Supervisor implements it.
type Stopper interface {
	Name() string
	Stop(ctx context.Context) supervisor.StopOutcome
}

// Coordinator stops every registered slot exactly once per process lifetime.
type Coordinator struct {
	log     zerolog.Logger
	timeout time.Duration
	slots   []Stopper

	mu    sync.Mutex
	hooks []func(context.Context) error

	once sync.Once
	done chan struct{}
	err  error
}

// New returns a coordinator for slots. timeout bounds the whole shutdown
// (0 means no bound beyond each slot's own stop timeout).
func New(log zerolog.Logger, timeout time.Duration, slots ...Stopper) *Coordinator {
	return &Coordinator{log: log, timeout: timeout, slots: slots, done: make(chan struct{})}
}

// FromRegistry returns a coordinator owning every slot in reg.
func FromRegistry(log zerolog.Logger, timeout time.Duration, reg *supervisor.Registry) *Coordinator {
	all := reg.All()
	slots := make([]Stopper, 0, len(all))
	for _, s := range all {
		slots = append(slots, s)
	}
	return New(log, timeout, slots...)
}

// OnShutdown registers fn to run after all slots are stopped. Hooks run in
// reverse registration order.
func (c *Coordinator) OnShutdown(fn func(context.Context) error) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Done is closed once Shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Shutdown stops all slots in parallel and then runs the hooks. Only the first
// call does work; later and concurrent calls wait for it and return its result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.shutdown(ctx)
		close(c.done)
	})
	<-c.done
	return c.err
}

func (c *Coordinator) shutdown(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.slots {
		s := s
		g.Go(func() error {
			out := s.Stop(gctx)
			if out.WasRunning {
				c.log.Info().Str("slot", s.Name()).Msg("slot stopped on shutdown")
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	hooks := append([]func(context.Context) error(nil), c.hooks...)
	c.mu.Unlock()
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.log.Info().Dur("elapsed", time.Since(start)).Int("slots", len(c.slots)).Msg("shutdown complete")
	return errors.Join(errs...)
}

// Run blocks until a termination signal arrives or ctx is done, then shuts
// down. The received signal is returned (nil when ctx ended the wait).
func (c *Coordinator) Run(ctx context.Context) (os.Signal, error) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, shutdownSignals...)
	defer signal.Stop(sigc)

	var sig os.Signal
	select {
	case sig = <-sigc:
		c.log.Info().Str("signal", sig.String()).Msg("termination signal received")
	case <-ctx.Done():
	case <-c.done:
	}
	return sig, c.Shutdown(context.Background())
}

// Recover must be deferred directly. On panic it stops every slot and
// re-panics so the crash is still reported.
func (c *Coordinator) Recover() {
	if r := recover(); r != nil {
		c.log.Error().Interface("panic", r).Msg("panic; stopping all slots")
		_ = c.Shutdown(context.Background())
		panic(r)
	}
}

// ExitCode maps a terminating signal to the conventional 128+signo status.
func ExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	if sig != nil {
		return 1
	}
	return 0
}
