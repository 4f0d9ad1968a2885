package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/internal/sink"
	"github.com/audiolink/wavebridge/internal/transport"
)

// ErrNotStreaming is returned by Pause when no stream is playing.
var ErrNotStreaming = errors.New("no active stream to pause")

// ErrNotPaused is returned by Resume when the stream is not paused.
var ErrNotPaused = errors.New("stream is not paused")

// errEpisodeAbandoned aborts a reconnect loop whose episode was
// superseded by a stop or a fresh start.
var errEpisodeAbandoned = errors.New("reconnect episode abandoned")

// Session is a snapshot of the current connection.
type Session struct {
	// ID identifies this session (one StartStream through its stop).
	ID string
	// EpisodeID identifies the current disconnection episode; empty
	// while the connection is healthy.
	EpisodeID string
	// Preferred is the format the session was started with.
	Preferred codec.ID
	// Format is the negotiated format actually in use.
	Format codec.ID
	// Mode is the transport carrying audio.
	Mode transport.Mode
	// State is the connection lifecycle state.
	State State
	// ReconnectAttempts counts attempts in the current episode.
	ReconnectAttempts int
	// StartedAt is when the session was started.
	StartedAt time.Time
}

// Notifier surfaces stream lifecycle changes to the user. Notices are
// rate-limited by the engine to one per disconnection episode.
type Notifier interface {
	Notice(message string)
	SetIndicator(active bool)
}

type noopNotifier struct{}

func (noopNotifier) Notice(string)     {}
func (noopNotifier) SetIndicator(bool) {}

// TransportSelector is the slice of the transport selector the engine
// drives. Satisfied by *transport.Selector.
type TransportSelector interface {
	Start(ctx context.Context, preferred codec.ID, hooks transport.Hooks) (transport.Route, error)
	Stop()
}

// StateListener observes lifecycle transitions. Listeners are invoked
// synchronously with the engine lock held and must not call back into
// the engine.
type StateListener func(old, new State, session Session)

// Engine owns the connection lifecycle: it drives transport selection,
// pumps sink events, runs the bounded reconnect loop, and holds the
// restoration guard.
type Engine struct {
	selector TransportSelector
	sink     sink.AudioSink
	cfg      config.StreamConfig
	notifier Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	session   Session
	gen       uint64
	listeners []StateListener

	pumpCancel      context.CancelFunc
	reconnectCancel context.CancelFunc

	restoring  atomic.Bool
	guardMu    sync.Mutex
	guardTimer *time.Timer
}

// NewEngine creates the continuity engine. notifier may be nil.
func NewEngine(
	selector TransportSelector,
	audioSink sink.AudioSink,
	cfg config.StreamConfig,
	notifier Notifier,
	logger *slog.Logger,
) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		selector: selector,
		sink:     audioSink,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
	}
}

// OnStateChange registers a lifecycle listener. Must be called before
// the engine starts serving.
func (e *Engine) OnStateChange(l StateListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Session returns a copy of the current session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.State
}

// StartStream begins playback with the preferred format. A no-op when
// a connection is already in flight; resumes when paused. The initial
// connect error is returned, but a failed connect still enters the
// reconnect loop like any other transport drop.
func (e *Engine) StartStream(ctx context.Context, preferred codec.ID) error {
	e.mu.Lock()
	switch {
	case e.session.State == StatePaused:
		e.mu.Unlock()
		return e.Resume(ctx)
	case e.session.State.InFlight():
		e.logger.Debug("start ignored, stream already active",
			slog.String("state", e.session.State.String()))
		e.mu.Unlock()
		return nil
	}

	gen := e.gen
	old := e.session.State
	e.session = Session{
		ID:        uuid.NewString(),
		Preferred: preferred,
		StartedAt: time.Now(),
		State:     old,
	}
	sessionID := e.session.ID
	e.setStateLocked(StateConnecting)
	e.mu.Unlock()

	e.logger.Info("starting stream",
		slog.String("session_id", sessionID),
		slog.String("preferred_format", string(preferred)),
	)

	if err := e.connect(ctx, gen, preferred); err != nil {
		e.beginEpisode(gen, fmt.Errorf("initial connect: %w", err))
		return err
	}
	return nil
}

// StopStream tears the stream down and returns to idle. Idempotent.
// While the restoration guard is set the stop is suppressed entirely,
// so a stale teardown cannot race a restore flow.
func (e *Engine) StopStream() error {
	if e.restoring.Load() {
		e.logger.Info("stop suppressed, restoration in progress")
		return nil
	}

	e.mu.Lock()
	if e.session.State == StateIdle {
		e.mu.Unlock()
		return nil
	}
	e.teardownLocked()
	e.setStateLocked(StateIdle)
	e.mu.Unlock()

	e.notifier.SetIndicator(false)
	e.logger.Info("stream stopped")
	return nil
}

// Pause halts playback but keeps the source attached, so the session
// stays restorable.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State != StateStreaming {
		return ErrNotStreaming
	}
	e.sink.Pause()
	e.setStateLocked(StatePaused)
	return nil
}

// Resume restarts playback of a paused stream.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.session.State != StatePaused {
		e.mu.Unlock()
		return ErrNotPaused
	}
	gen := e.gen
	e.mu.Unlock()

	if err := e.sink.Play(ctx); err != nil {
		e.beginEpisode(gen, fmt.Errorf("resume: %w", err))
		return err
	}

	e.mu.Lock()
	if e.gen == gen {
		e.setStateLocked(StateStreaming)
	}
	e.mu.Unlock()
	return nil
}

// BeginRestoration raises the restoration guard. The guard suppresses
// StopStream and is cleared unconditionally after the configured grace
// period, whether or not the restore succeeded.
func (e *Engine) BeginRestoration() {
	e.guardMu.Lock()
	defer e.guardMu.Unlock()
	if e.guardTimer != nil {
		e.guardTimer.Stop()
	}
	e.restoring.Store(true)
	e.logger.Debug("restoration guard raised",
		slog.Duration("grace", e.cfg.GuardGrace))
	e.guardTimer = time.AfterFunc(e.cfg.GuardGrace, func() {
		e.restoring.Store(false)
		e.logger.Debug("restoration guard cleared")
	})
}

// Restoring reports whether the restoration guard is set.
func (e *Engine) Restoring() bool {
	return e.restoring.Load()
}

// Close stops the stream and releases the guard timer.
func (e *Engine) Close() error {
	e.guardMu.Lock()
	if e.guardTimer != nil {
		e.guardTimer.Stop()
	}
	e.restoring.Store(false)
	e.guardMu.Unlock()
	return e.StopStream()
}

// connect runs transport selection and brings the sink up. On success
// the session is finalized in streaming state and the event pump for
// this generation is running.
func (e *Engine) connect(ctx context.Context, gen uint64, preferred codec.ID) error {
	hooks := transport.Hooks{
		OnStateChange: func(state string) {
			e.logger.Debug("realtime connection state", slog.String("state", state))
		},
		OnAudioReady: func(track sink.RemoteTrack) {
			if err := e.sink.AttachTrack(track); err != nil {
				e.logger.Error("attaching realtime track", slog.Any("error", err))
				return
			}
			if err := e.sink.Play(context.Background()); err != nil {
				e.beginEpisode(gen, fmt.Errorf("realtime playback: %w", err))
			}
		},
		OnError: func(err error) {
			e.beginEpisode(gen, fmt.Errorf("realtime transport: %w", err))
		},
	}

	route, err := e.selector.Start(ctx, preferred, hooks)
	if err != nil {
		return err
	}

	if route.Mode == transport.ModeFallback {
		profile, _ := codec.Lookup(route.Format)
		if err := e.sink.AttachURL(route.ConnectionTarget, profile.ChunkSize); err != nil {
			return fmt.Errorf("attaching chunked source: %w", err)
		}
		playCtx, cancel := context.WithTimeout(ctx, route.Buffer.ConnectTimeout)
		defer cancel()
		if err := e.sink.Play(playCtx); err != nil {
			e.sink.Detach()
			return fmt.Errorf("chunked playback: %w", err)
		}
	}

	e.mu.Lock()
	if e.gen != gen {
		// Torn down while we were connecting.
		e.mu.Unlock()
		e.selector.Stop()
		e.sink.Detach()
		return errEpisodeAbandoned
	}
	e.session.Mode = route.Mode
	e.session.Format = route.Format
	e.session.EpisodeID = ""
	e.session.ReconnectAttempts = 0
	e.setStateLocked(StateStreaming)
	if e.pumpCancel == nil {
		pumpCtx, cancel := context.WithCancel(context.Background())
		e.pumpCancel = cancel
		go e.pumpEvents(pumpCtx, gen)
	}
	e.mu.Unlock()

	e.notifier.SetIndicator(true)
	e.logger.Info("stream connected",
		slog.String("mode", route.Mode.String()),
		slog.String("format", string(route.Format)),
	)
	return nil
}

// pumpEvents forwards sink events into the state machine. One pump
// runs per connection generation.
func (e *Engine) pumpEvents(ctx context.Context, gen uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.sink.Events():
			e.handleSinkEvent(gen, ev)
		}
	}
}

func (e *Engine) handleSinkEvent(gen uint64, ev sink.Event) {
	switch ev.Kind {
	case sink.EventStalled:
		// Informational only. Stalls recover on their own often enough
		// that reacting causes more interruptions than it prevents.
		e.logger.Warn("stream stalled", slog.Any("error", ev.Err))
	case sink.EventEnded:
		e.beginEpisode(gen, errors.New("stream ended by remote"))
	case sink.EventError, sink.EventAbort:
		e.beginEpisode(gen, fmt.Errorf("sink %s: %w", ev.Kind, ev.Err))
	}
}

// beginEpisode opens a disconnection episode and starts the bounded
// reconnect loop. The user is notified once per episode. Stale
// generations and duplicate drops are ignored.
func (e *Engine) beginEpisode(gen uint64, cause error) {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	switch e.session.State {
	case StateConnecting, StateStreaming, StatePaused:
	default:
		// Already handling a drop or stopped.
		e.mu.Unlock()
		return
	}

	e.session.EpisodeID = ulid.Make().String()
	e.session.ReconnectAttempts = 0
	e.setStateLocked(StateDisconnected)

	rcCtx, cancel := context.WithCancel(context.Background())
	e.reconnectCancel = cancel
	episode := e.session.EpisodeID
	preferred := e.session.Preferred
	e.mu.Unlock()

	e.logger.Warn("stream disconnected",
		slog.String("episode_id", episode),
		slog.Any("cause", cause),
	)
	e.notifier.Notice("Audio stream interrupted, reconnecting...")
	e.notifier.SetIndicator(false)

	go e.reconnectLoop(rcCtx, gen, episode, preferred)
}

// reconnectLoop retries the connect with exponential backoff, bounded
// by the configured attempt budget. Exhaustion lands in failed state.
func (e *Engine) reconnectLoop(ctx context.Context, gen uint64, episode string, preferred codec.ID) {
	maxAttempts := e.cfg.MaxReconnectAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.ReconnectDelay
	bo.MaxElapsedTime = 0

	attempt := func() error {
		e.mu.Lock()
		if e.gen != gen || e.session.EpisodeID != episode {
			e.mu.Unlock()
			return backoff.Permanent(errEpisodeAbandoned)
		}
		e.session.ReconnectAttempts++
		n := e.session.ReconnectAttempts
		e.setStateLocked(StateReconnecting)
		e.mu.Unlock()

		e.logger.Info("reconnect attempt",
			slog.String("episode_id", episode),
			slog.Int("attempt", n),
			slog.Int("max_attempts", maxAttempts),
		)

		if err := e.connect(ctx, gen, preferred); err != nil {
			e.mu.Lock()
			if e.gen == gen && e.session.State == StateReconnecting {
				e.setStateLocked(StateDisconnected)
			}
			e.mu.Unlock()
			return err
		}
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(maxAttempts-1)), ctx))
	if err == nil || errors.Is(err, errEpisodeAbandoned) || ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	if e.gen != gen || e.session.EpisodeID != episode {
		e.mu.Unlock()
		return
	}
	e.setStateLocked(StateFailed)
	e.mu.Unlock()

	e.logger.Error("reconnect attempts exhausted",
		slog.String("episode_id", episode),
		slog.Int("attempts", maxAttempts),
		slog.Any("error", err),
	)
	e.notifier.Notice("Playback stopped: unable to reconnect")
	e.notifier.SetIndicator(false)
}

// teardownLocked invalidates the current generation and releases the
// transport and sink. Callers hold e.mu.
func (e *Engine) teardownLocked() {
	e.gen++
	if e.pumpCancel != nil {
		e.pumpCancel()
		e.pumpCancel = nil
	}
	if e.reconnectCancel != nil {
		e.reconnectCancel()
		e.reconnectCancel = nil
	}
	e.selector.Stop()
	e.sink.Detach()
}

func (e *Engine) setStateLocked(next State) {
	old := e.session.State
	if old == next {
		return
	}
	if !canTransition(old, next) {
		e.logger.Warn("unexpected state transition",
			slog.String("from", old.String()),
			slog.String("to", next.String()),
		)
	}
	e.session.State = next
	for _, l := range e.listeners {
		l(old, next, e.session)
	}
}
