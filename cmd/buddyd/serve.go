package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"buddyd/internal/binlocator"
	"buddyd/internal/httpapi"
	"buddyd/internal/lifecycle"
	"buddyd/internal/service"
	"buddyd/internal/settings"
	"buddyd/internal/store"
	"buddyd/internal/supervisor"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := serve(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

// serve runs the daemon until a termination signal and returns the exit code
// that signal maps to.
func serve(ctx context.Context, opts *rootOptions) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return 1, fmt.Errorf("config: %w", err)
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return 1, fmt.Errorf("data dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.DataDir, "buddyd.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return 1, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return 1, fmt.Errorf("another buddyd is running (lock %s)", lock.Path())
	}

	specs := cfg.SlotSpecs()
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	known := settings.Defaults(names)

	st, err := store.Open(cfg.DataDir, known)
	if err != nil {
		_ = lock.Unlock()
		return 1, err
	}
	reg, err := supervisor.NewRegistry(specs, supervisor.Deps{
		Settings: st,
		Locator:  binlocator.New(cfg.BinDir, cfg.Binaries),
		Resolver: cfg.Resolver(),
		Recorder: st,
		Logger:   log,
	})
	if err != nil {
		_ = st.Close()
		_ = lock.Unlock()
		return 1, err
	}

	coord := lifecycle.FromRegistry(log, cfg.ShutdownTimeout.Duration, reg)
	defer coord.Recover()
	coord.OnShutdown(func(context.Context) error { return lock.Unlock() })
	coord.OnShutdown(func(context.Context) error { return st.Close() })

	if err := reg.Reconcile(ctx, st); err != nil {
		log.Warn().Err(err).Msg("reconcile persisted models")
	}

	svc := service.New(reg, st, known, cfg.ModelsDir, log)
	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpapi.SetBaseContext(baseCtx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		cancelBase()
		_ = coord.Shutdown(context.Background())
		return 1, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	coord.OnShutdown(func(ctx context.Context) error {
		cancelBase()
		return srv.Shutdown(ctx)
	})

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	var serveErr error
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
			log.Error().Err(err).Msg("http server failed")
			stopRun()
		}
	}()

	svc.MarkReady()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("data_dir", cfg.DataDir).
		Strs("slots", names).
		Msg("buddyd listening")

	sig, err := coord.Run(runCtx)
	<-served
	if err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	if serveErr != nil {
		return 1, serveErr
	}
	return lifecycle.ExitCode(sig), nil
}
