// Package service adapts the slot registry, settings store, model scanner and
// process sampler to the HTTP API.
package service

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"buddyd/internal/procstat"
	"buddyd/internal/registry"
	"buddyd/internal/settings"
	"buddyd/internal/supervisor"
	"buddyd/pkg/types"
)

// Service implements httpapi.Service.
type Service struct {
	reg       *supervisor.Registry
	store     settings.Store
	known     map[string]string
	modelsDir string
	log       zerolog.Logger
	started   time.Time
	ready     atomic.Bool

	// sample is replaced in tests.
	sample func(ctx context.Context, pid int) (procstat.Usage, error)
}

// New returns a service over reg and store. known lists every accepted
// settings key (with its default); modelsDir is used when
// local_model_directory is unset.
func New(reg *supervisor.Registry, store settings.Store, known map[string]string, modelsDir string, log zerolog.Logger) *Service {
	return &Service{
		reg:       reg,
		store:     store,
		known:     known,
		modelsDir: modelsDir,
		log:       log,
		started:   time.Now(),
		sample:    procstat.Sample,
	}
}

// MarkReady flips /readyz once startup reconciliation is done.
func (s *Service) MarkReady() { s.ready.Store(true) }

func (s *Service) Ready() bool { return s.ready.Load() }

func (s *Service) Start(ctx context.Context, slot string, req supervisor.StartRequest) (supervisor.StartOutcome, error) {
	sup, err := s.reg.Get(slot)
	if err != nil {
		return supervisor.StartOutcome{}, err
	}
	return sup.Start(ctx, req)
}

func (s *Service) Stop(ctx context.Context, slot string) (supervisor.StopOutcome, error) {
	sup, err := s.reg.Get(slot)
	if err != nil {
		return supervisor.StopOutcome{}, err
	}
	return sup.Stop(ctx), nil
}

func (s *Service) Status(slot string) (supervisor.StatusResult, error) {
	sup, err := s.reg.Get(slot)
	if err != nil {
		return supervisor.StatusResult{}, err
	}
	return sup.Status(), nil
}

func (s *Service) LastModel(slot string) (string, error) {
	sup, err := s.reg.Get(slot)
	if err != nil {
		return "", err
	}
	return sup.LastModel(), nil
}

func (s *Service) Slots() types.SlotsResponse {
	snaps := s.reg.Snapshots()
	out := types.SlotsResponse{
		Slots:          make([]types.SlotStatus, 0, len(snaps)),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	for _, sn := range snaps {
		out.Slots = append(out.Slots, types.SlotStatus{
			Name:          sn.Name,
			State:         string(sn.State),
			PID:           sn.PID,
			ActiveModel:   sn.ActiveModel,
			LastModel:     sn.LastModel,
			StartedAtUnix: unixOrZero(sn.StartedAt),
			ReadyAtUnix:   unixOrZero(sn.ReadyAt),
			LastError:     sn.LastError,
			Spawns:        sn.Spawns,
		})
	}
	return out
}

// Models lists files under the model directory matching the slot's
// extensions. A missing directory yields an empty list.
func (s *Service) Models(ctx context.Context, slot string) (types.ModelsResponse, error) {
	sup, err := s.reg.Get(slot)
	if err != nil {
		return types.ModelsResponse{}, err
	}
	dir, err := s.store.Get(ctx, settings.KeyLocalModelDirectory)
	if err != nil {
		return types.ModelsResponse{}, err
	}
	if strings.TrimSpace(dir) == "" {
		dir = s.modelsDir
	}
	resp := types.ModelsResponse{Slot: slot, Dir: dir, Models: []types.Model{}}
	if strings.TrimSpace(dir) == "" {
		return resp, nil
	}
	models, err := registry.NewScanner(sup.Spec().Extensions...).Scan(dir)
	if err != nil {
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return resp, nil
		}
		return resp, err
	}
	if models != nil {
		resp.Models = models
	}
	return resp, nil
}

func (s *Service) Usage(ctx context.Context, slot string) (types.UsageResponse, error) {
	sup, err := s.reg.Get(slot)
	if err != nil {
		return types.UsageResponse{}, err
	}
	resp := types.UsageResponse{Slot: slot}
	pid := sup.PID()
	if pid == 0 {
		return resp, nil
	}
	u, err := s.sample(ctx, pid)
	if err != nil {
		// The process may have exited between PID() and sampling.
		s.log.Debug().Err(err).Str("slot", slot).Int("pid", pid).Msg("usage sample failed")
		return resp, nil
	}
	resp.Running = true
	resp.PID = u.PID
	resp.RSSBytes = u.RSSBytes
	resp.CPUPercent = u.CPUPercent
	resp.NumThreads = u.NumThreads
	resp.Processes = u.Processes
	resp.SystemMemoryPercent = u.SystemMemoryPercent
	return resp, nil
}

// GetSettings returns the requested keys, or every known key when keys is
// empty. Unknown keys are rejected.
func (s *Service) GetSettings(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		keys = s.knownKeys()
	}
	if unknown := settings.UnknownKeys(s.known, keys); len(unknown) > 0 {
		return nil, settings.UnknownKeyError{Keys: unknown}
	}
	return s.store.GetSettings(ctx, keys...)
}

// SetSettings writes values after rejecting unknown keys.
func (s *Service) SetSettings(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	if unknown := settings.UnknownKeys(s.known, keys); len(unknown) > 0 {
		return settings.UnknownKeyError{Keys: unknown}
	}
	if err := s.store.Set(ctx, values); err != nil {
		return err
	}
	s.log.Info().Strs("keys", keys).Msg("settings updated")
	return nil
}

func (s *Service) knownKeys() []string {
	out := make([]string, 0, len(s.known))
	for k := range s.known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
