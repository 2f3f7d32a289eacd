package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrScanInFlight is returned by RunNow when a scan is already executing.
var ErrScanInFlight = errors.New("a reminder scan is already in flight")

// SchedulerConfig holds the cadence settings for the scan loop.
type SchedulerConfig struct {
	// Period is the fixed interval between scans.
	Period time.Duration
	// WarmupDelay schedules one near-immediate scan after startup so a
	// fresh instance doesn't wait a full period.
	WarmupDelay time.Duration
	// MisfireGrace is how late a tick may arrive and still run as if on
	// time. A tick later than that is logged as a misfire and dropped.
	MisfireGrace time.Duration
}

// DefaultSchedulerConfig returns the documented defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Period:       60 * time.Second,
		WarmupDelay:  10 * time.Second,
		MisfireGrace: 30 * time.Second,
	}
}

// Scheduler drives the scanner on a fixed period, guaranteeing at most one
// scan in flight at a time.
type Scheduler struct {
	config  SchedulerConfig
	scanner *Scanner
	logger  *zerolog.Logger

	mu       sync.Mutex
	running  bool
	scanning bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler for the given scanner.
func NewScheduler(config SchedulerConfig, scanner *Scanner, logger *zerolog.Logger) *Scheduler {
	if config.Period <= 0 {
		config.Period = 60 * time.Second
	}
	if config.WarmupDelay <= 0 {
		config.WarmupDelay = 10 * time.Second
	}
	if config.MisfireGrace <= 0 {
		config.MisfireGrace = 30 * time.Second
	}
	return &Scheduler{
		config:  config,
		scanner: scanner,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the scan loop in a background goroutine. Calling Start on
// a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Dur("period", s.config.Period).
		Dur("warmup", s.config.WarmupDelay).
		Msg("reminder scheduler started")

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the loop and waits for any in-flight scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("reminder scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow triggers one scan immediately, for operational testing. It refuses
// to overlap a scan already in flight.
func (s *Scheduler) RunNow(ctx context.Context) (ScanStats, error) {
	s.logger.Info().Msg("manual reminder scan triggered")
	stats, ran := s.tryScan(ctx)
	if !ran {
		return ScanStats{}, ErrScanInFlight
	}
	return stats, nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	warmup := time.NewTimer(s.config.WarmupDelay)
	defer warmup.Stop()

	ticker := time.NewTicker(s.config.Period)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped by context")
			return
		case <-s.stopCh:
			return
		case <-warmup.C:
			s.tryScan(ctx)
		case now := <-ticker.C:
			// A tick can arrive late when a previous scan ran long or the
			// process was starved. Within the grace window it still runs as
			// if on time; beyond it the run is dropped as a misfire.
			late := now.Sub(lastTick) - s.config.Period
			lastTick = now
			if late > s.config.MisfireGrace {
				s.logger.Warn().Dur("late", late).Msg("tick misfired beyond grace, skipping run")
				ticksSkipped.Inc()
				continue
			}
			s.tryScan(ctx)
		}
	}
}

// tryScan runs one scan unless another is in flight, in which case the tick
// is suppressed rather than queued. Panics inside a scan are recovered so a
// bad run never kills the loop.
func (s *Scheduler) tryScan(ctx context.Context) (stats ScanStats, ran bool) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		s.logger.Warn().Msg("scan already in flight, skipping tick")
		ticksSkipped.Inc()
		return ScanStats{}, false
	}
	s.scanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()

		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("recovered panic in reminder scan")
			scansTotal.WithLabelValues("panic").Inc()
			stats, ran = ScanStats{}, true
		}
	}()

	return s.scanner.RunOnce(ctx), true
}
