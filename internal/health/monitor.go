// Package health watches for the moments a stream silently dies:
// the player surface returning to visibility and the host waking from
// sleep. Both trigger a stream health check that re-runs the fast
// restore flow when playback should be active but is not.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/internal/stream"
)

// EngineProbe is the read-only slice of the continuity engine the
// monitor consults. Satisfied by *stream.Engine.
type EngineProbe interface {
	State() stream.State
}

// RestoreRunner re-establishes playback when a check finds it missing.
// Satisfied by *state.Manager.
type RestoreRunner interface {
	FastRestore(ctx context.Context) (bool, error)
}

// Monitor runs the stream health checks.
type Monitor struct {
	engine  EngineProbe
	restore RestoreRunner
	cfg     config.StreamConfig
	logger  *slog.Logger

	mu      sync.Mutex
	visible bool
	settle  *time.Timer
}

// NewMonitor creates the health monitor. The player surface is assumed
// visible until told otherwise.
func NewMonitor(engine EngineProbe, restore RestoreRunner, cfg config.StreamConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		engine:  engine,
		restore: restore,
		cfg:     cfg,
		logger:  logger,
		visible: true,
	}
}

// OnVisibility records a visibility change. The hidden→visible edge
// schedules a health check after a short settle delay, giving a
// suspended connection time to recover on its own first.
func (m *Monitor) OnVisibility(ctx context.Context, visible bool) {
	m.mu.Lock()
	wasVisible := m.visible
	m.visible = visible
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	if visible && !wasVisible {
		m.logger.Debug("player surface visible again, scheduling health check",
			slog.Duration("settle", m.cfg.HealthSettleDelay))
		m.settle = time.AfterFunc(m.cfg.HealthSettleDelay, func() {
			m.Check(context.WithoutCancel(ctx))
		})
	}
	m.mu.Unlock()
}

// Run drives the wake-from-sleep detector until ctx is done. A tick
// arriving far later than scheduled means the host clock jumped, which
// is the only signal of a suspend this process gets.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.ResumeCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if gap := now.Sub(last); gap > 2*interval {
				m.logger.Info("clock jump detected, host likely resumed from sleep",
					slog.Duration("gap", gap))
				m.Check(ctx)
			}
			last = now
		}
	}
}

// Check verifies stream health and re-runs the fast restore flow when
// playback should be active but the connection is gone. In-flight
// connections are left alone, as is a session the user paused: its
// source is still attached, so there is nothing to heal.
func (m *Monitor) Check(ctx context.Context) {
	if state := m.engine.State(); state.InFlight() || state == stream.StatePaused {
		m.logger.Debug("health check skipped, session still attached",
			slog.String("state", state.String()))
		return
	}

	started, err := m.restore.FastRestore(ctx)
	switch {
	case err != nil:
		m.logger.Warn("health check restore failed", slog.Any("error", err))
	case started:
		m.logger.Info("health check restarted playback")
	default:
		m.logger.Debug("health check found nothing to restore")
	}
}
