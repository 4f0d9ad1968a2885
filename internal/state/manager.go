package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiolink/wavebridge/internal/backend"
	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/internal/player"
	"github.com/audiolink/wavebridge/internal/sink"
	"github.com/audiolink/wavebridge/internal/stream"
)

// Restorer is the slice of the continuity engine the manager drives.
// Satisfied by *stream.Engine.
type Restorer interface {
	BeginRestoration()
	StartStream(ctx context.Context, preferred codec.ID) error
	Pause() error
	State() stream.State
}

// PlaylistSelector restores the playlist context a session was using.
type PlaylistSelector interface {
	CurrentPlaylist() string
	SelectPlaylist(ctx context.Context, id string) error
}

// StatusProber is the diagnostic slice of the backend client.
// Satisfied by *backend.Client.
type StatusProber interface {
	StreamStatus(ctx context.Context) (*backend.StreamStatus, error)
}

// Manager owns snapshot persistence and the two restoration flows.
// FastRestore covers the restart-in-place case inside a short window;
// FullRestore rebuilds the wider session context inside a longer one.
type Manager struct {
	store     *Store
	engine    Restorer
	sink      sink.AudioSink
	family    player.Family
	playlists PlaylistSelector
	prober    StatusProber
	cfg       config.StreamConfig
	logger    *slog.Logger
}

// NewManager creates the restoration manager. playlists and prober may
// be nil; the flows that use them degrade to skipping those steps.
func NewManager(
	store *Store,
	engine Restorer,
	audioSink sink.AudioSink,
	family player.Family,
	playlists PlaylistSelector,
	prober StatusProber,
	cfg config.StreamConfig,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		engine:    engine,
		sink:      audioSink,
		family:    family,
		playlists: playlists,
		prober:    prober,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetIntent records whether the user wants audio playing. Turning
// intent off also discards the snapshot, so a later restart does not
// resurrect a stream the user stopped.
func (m *Manager) SetIntent(ctx context.Context, active bool) error {
	if !active {
		if err := m.store.Set(ctx, KeyStreamActive, "false"); err != nil {
			return err
		}
		if err := m.store.Delete(ctx, KeyStreamState); err != nil {
			return err
		}
		return m.store.Delete(ctx, KeyStreamFormat)
	}
	return m.store.Set(ctx, KeyStreamActive, "true")
}

// Intent reports the persisted playback intent.
func (m *Manager) Intent(ctx context.Context) (bool, error) {
	val, ok, err := m.store.Get(ctx, KeyStreamActive)
	if err != nil {
		return false, err
	}
	return ok && val == "true", nil
}

// SaveSnapshot persists the current session state. The write happens
// only when intent is on and the sink has a source; a paused sink with
// a source is still a restorable session and is captured too.
func (m *Manager) SaveSnapshot(ctx context.Context, format codec.ID) error {
	active, err := m.Intent(ctx)
	if err != nil {
		return err
	}
	if !active || !m.sink.HasSource() {
		return nil
	}

	snap := Snapshot{
		Format:    format,
		Timestamp: time.Now(),
		IsPlaying: !m.sink.Paused(),
	}
	if m.playlists != nil {
		snap.PlaylistID = m.playlists.CurrentPlaylist()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := m.store.Set(ctx, KeyStreamState, string(data)); err != nil {
		return err
	}
	if err := m.store.Set(ctx, KeyStreamFormat, string(format)); err != nil {
		return err
	}

	m.logger.Debug("session snapshot saved",
		slog.String("format", string(format)),
		slog.Bool("is_playing", snap.IsPlaying),
	)
	return nil
}

// Snapshot loads the persisted snapshot. The second return is false
// when none exists or it cannot be decoded.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, bool, error) {
	raw, ok, err := m.store.Get(ctx, KeyStreamState)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		m.logger.Warn("discarding undecodable snapshot", slog.Any("error", err))
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// FastRestore resumes playback after a quick restart. Preconditions
// are checked in order: a snapshot exists, intent is on, and the
// snapshot is inside the fast window. A session captured while paused
// is re-attached paused rather than auto-played. Returns whether a
// restore was started.
func (m *Manager) FastRestore(ctx context.Context) (bool, error) {
	snap, ok, err := m.Snapshot(ctx)
	if err != nil || !ok {
		return false, err
	}

	active, err := m.Intent(ctx)
	if err != nil {
		return false, err
	}
	if !active {
		m.logger.Debug("fast restore skipped, no playback intent")
		return false, nil
	}

	age := snap.Age(time.Now())
	if age >= m.cfg.FastRestoreWindow {
		m.logger.Info("fast restore skipped, snapshot too old",
			slog.Duration("age", age),
			slog.Duration("window", m.cfg.FastRestoreWindow),
		)
		return false, nil
	}

	m.logger.Info("fast restore starting",
		slog.String("format", string(snap.Format)),
		slog.Duration("age", age),
		slog.Bool("was_playing", snap.IsPlaying),
	)

	// The guard keeps stale stop requests from tearing this down; it
	// clears on its own after the grace period.
	m.engine.BeginRestoration()

	// Players need a beat after process start before audio can open.
	if delay := player.StartupDelay(m.family); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	m.startFromSnapshot(ctx, snap)
	return true, nil
}

// FullRestore rebuilds the session context after a longer gap. It
// restores the playlist selection, logs backend diagnostics, and
// re-attaches the session (paused when the snapshot was paused).
// Skipped entirely when a connection is already in flight.
func (m *Manager) FullRestore(ctx context.Context) (bool, error) {
	if m.engine.State().InFlight() {
		m.logger.Debug("full restore skipped, connection in flight")
		return false, nil
	}

	snap, ok, err := m.Snapshot(ctx)
	if err != nil || !ok {
		return false, err
	}

	active, err := m.Intent(ctx)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}

	age := snap.Age(time.Now())
	if age >= m.cfg.FullRestoreWindow {
		m.logger.Info("full restore skipped, snapshot too old",
			slog.Duration("age", age),
			slog.Duration("window", m.cfg.FullRestoreWindow),
		)
		return false, nil
	}

	if m.playlists != nil && snap.PlaylistID != "" {
		if err := m.playlists.SelectPlaylist(ctx, snap.PlaylistID); err != nil {
			m.logger.Warn("restoring playlist selection failed",
				slog.String("playlist_id", snap.PlaylistID),
				slog.Any("error", err),
			)
		}
	}

	if m.prober != nil {
		// Diagnostic only; restore decisions never depend on it.
		if status, err := m.prober.StreamStatus(ctx); err != nil {
			m.logger.Debug("backend status unavailable", slog.Any("error", err))
		} else {
			m.logger.Info("backend stream status",
				slog.Bool("is_active", status.IsActive),
				slog.String("status", status.StatusText),
			)
		}
	}

	m.logger.Info("full restore starting",
		slog.String("format", string(snap.Format)),
		slog.Duration("age", age),
		slog.Bool("was_playing", snap.IsPlaying),
	)
	m.engine.BeginRestoration()
	m.startFromSnapshot(ctx, snap)
	return true, nil
}

// startFromSnapshot re-attaches the session a snapshot describes. A
// snapshot captured while paused comes back paused, not auto-playing;
// the user resumes it. When the initial connect fails the reconnect
// loop owns recovery, so any re-pause is skipped.
func (m *Manager) startFromSnapshot(ctx context.Context, snap Snapshot) {
	if err := m.engine.StartStream(ctx, snap.Format); err != nil {
		m.logger.Warn("restore connect failed, reconnect loop owns it",
			slog.Any("error", err))
		return
	}
	if !snap.IsPlaying {
		if err := m.engine.Pause(); err != nil {
			m.logger.Warn("re-pausing restored session failed",
				slog.Any("error", err))
		}
	}
}

// PruneStale discards a snapshot beyond the full restore window. Run
// periodically so a dead session cannot linger forever.
func (m *Manager) PruneStale(ctx context.Context) error {
	snap, ok, err := m.Snapshot(ctx)
	if err != nil || !ok {
		return err
	}
	if age := snap.Age(time.Now()); age >= m.cfg.FullRestoreWindow {
		m.logger.Info("pruning stale snapshot", slog.Duration("age", age))
		return m.store.Delete(ctx, KeyStreamState)
	}
	return nil
}
