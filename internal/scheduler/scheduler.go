// Package scheduler runs the two cron-style triggers that drive
// unattended scanning: a periodic full scan and a periodic deep
// discovery pass, each independently enabled/disabled and re-armed
// whenever their interval setting changes.
package scheduler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bmetallica/netcatalog/internal/neterr"
	"github.com/bmetallica/netcatalog/internal/scanengine"
	"github.com/bmetallica/netcatalog/internal/store"
)

const (
	defaultScanInterval      = 60 * time.Minute
	defaultDiscoveryInterval = 240 * time.Minute

	// settingsPollInterval is how often a disabled trigger rechecks
	// whether it has since been re-enabled.
	settingsPollInterval = 30 * time.Second
)

// Scheduler owns the two background ticker loops. A zero-value Scheduler
// is not usable; construct with New.
type Scheduler struct {
	store  *store.Store
	engine *scanengine.Engine
	logger zerolog.Logger

	mu              sync.Mutex
	cancel          context.CancelFunc
	scanRestart     chan struct{}
	discoveryRestart chan struct{}
	wg              sync.WaitGroup
}

func New(st *store.Store, eng *scanengine.Engine) *Scheduler {
	return &Scheduler{
		store:  st,
		engine: eng,
		logger: log.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches both loops in the background. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.scanRestart = make(chan struct{}, 1)
	s.discoveryRestart = make(chan struct{}, 1)
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runLoop(ctx, "scan", s.scanRestart, "scan_enabled", "scan_interval", defaultScanInterval, func(c context.Context) error {
		_, err := s.engine.RunScan(c)
		return err
	})
	go s.runLoop(ctx, "deep_discovery", s.discoveryRestart, "deep_discovery_enabled", "deep_discovery_interval", defaultDiscoveryInterval, func(c context.Context) error {
		return s.engine.RunDeepDiscoveryStandalone(c, s.logger)
	})

	s.logger.Info().Msg("scheduler started")
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Reload signals both loops to re-read their settings and re-arm their
// timers immediately, used right after a settings write so an interval
// change takes effect without waiting out the old ticker.
func (s *Scheduler) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	nonBlockingSend(s.scanRestart)
	nonBlockingSend(s.discoveryRestart)
}

func nonBlockingSend(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Scheduler) runLoop(ctx context.Context, name string, restart chan struct{}, enabledKey, intervalKey string, fallback time.Duration, run func(context.Context) error) {
	defer s.wg.Done()

	for {
		enabled, interval := s.readTrigger(enabledKey, intervalKey, fallback)

		if !enabled {
			select {
			case <-ctx.Done():
				return
			case <-restart:
				continue
			case <-time.After(settingsPollInterval):
				continue
			}
		}

		ticker := time.NewTicker(interval)
		select {
		case <-ctx.Done():
			ticker.Stop()
			return
		case <-restart:
			ticker.Stop()
			continue
		case <-ticker.C:
			ticker.Stop()
			s.fire(ctx, name, run)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		if neterr.IsKind(err, neterr.KindSingletonBusy) {
			s.logger.Debug().Str("trigger", name).Msg("skipped, already running")
			return
		}
		s.logger.Error().Err(err).Str("trigger", name).Msg("scheduled run failed")
	}
}

func (s *Scheduler) readTrigger(enabledKey, intervalKey string, fallback time.Duration) (bool, time.Duration) {
	settings, err := s.store.GetSettings()
	if err != nil {
		return true, fallback
	}

	enabled := settings[enabledKey] != "false"

	interval := fallback
	if raw, ok := settings[intervalKey]; ok {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			interval = time.Duration(minutes) * time.Minute
		}
	}
	return enabled, interval
}
