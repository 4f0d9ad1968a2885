package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/internal/player"
	"github.com/audiolink/wavebridge/internal/sink"
	"github.com/audiolink/wavebridge/internal/transport"
)

type fakeSelector struct {
	mu       sync.Mutex
	starts   int
	stops    int
	failures int // number of leading Start calls that fail
	route    transport.Route
}

func newFakeSelector() *fakeSelector {
	return &fakeSelector{
		route: transport.Route{
			Mode:             transport.ModeFallback,
			Format:           codec.MP3,
			ConnectionTarget: "http://backend/stream/play?format=mp3",
			Buffer:           player.BufferProfile{QueueDepth: 8, ConnectTimeout: time.Second},
		},
	}
}

func (f *fakeSelector) Start(ctx context.Context, preferred codec.ID, hooks transport.Hooks) (transport.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.starts <= f.failures {
		return transport.Route{}, errors.New("transport unavailable")
	}
	return f.route, nil
}

func (f *fakeSelector) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSelector) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeSink struct {
	mu        sync.Mutex
	url       string
	hasSource bool
	paused    bool
	playErr   error
	detaches  int
	events    chan sink.Event
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(chan sink.Event, 16)}
}

func (f *fakeSink) AttachURL(url string, chunkSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.hasSource = true
	return nil
}

func (f *fakeSink) AttachTrack(track sink.RemoteTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasSource = true
	return nil
}

func (f *fakeSink) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.paused = false
	return nil
}

func (f *fakeSink) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *fakeSink) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasSource = false
	f.detaches++
}

func (f *fakeSink) HasSource() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasSource
}

func (f *fakeSink) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeSink) Events() <-chan sink.Event { return f.events }

type fakeNotifier struct {
	mu        sync.Mutex
	notices   []string
	indicator bool
}

func (f *fakeNotifier) Notice(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, msg)
}

func (f *fakeNotifier) SetIndicator(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indicator = active
}

func (f *fakeNotifier) noticeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

func testStreamConfig() config.StreamConfig {
	return config.StreamConfig{
		MaxReconnectAttempts: 3,
		ReconnectDelay:       10 * time.Millisecond,
		FastRestoreWindow:    30 * time.Second,
		FullRestoreWindow:    5 * time.Minute,
		GuardGrace:           80 * time.Millisecond,
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeSelector, *fakeSink, *fakeNotifier) {
	t.Helper()
	sel := newFakeSelector()
	snk := newFakeSink()
	not := &fakeNotifier{}
	eng := NewEngine(sel, snk, testStreamConfig(), not, nil)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, sel, snk, not
}

func TestStartStream_Fallback(t *testing.T) {
	eng, sel, snk, not := newTestEngine(t)

	err := eng.StartStream(context.Background(), codec.MP3)
	require.NoError(t, err)

	sess := eng.Session()
	assert.Equal(t, StateStreaming, sess.State)
	assert.Equal(t, transport.ModeFallback, sess.Mode)
	assert.Equal(t, codec.MP3, sess.Format)
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.EpisodeID)

	assert.Equal(t, 1, sel.startCount())
	assert.Equal(t, "http://backend/stream/play?format=mp3", snk.url)
	assert.True(t, not.indicator)
}

func TestStartStream_AlreadyActiveIsNoop(t *testing.T) {
	eng, sel, _, _ := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	require.NoError(t, eng.StartStream(context.Background(), codec.AAC))

	assert.Equal(t, 1, sel.startCount())
	assert.Equal(t, codec.MP3, eng.Session().Preferred)
}

func TestStopStream_Idempotent(t *testing.T) {
	eng, _, snk, not := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	require.NoError(t, eng.StopStream())
	require.NoError(t, eng.StopStream())

	assert.Equal(t, StateIdle, eng.State())
	assert.False(t, snk.HasSource())
	assert.False(t, not.indicator)
}

func TestStopStream_SuppressedDuringRestoration(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	eng.BeginRestoration()
	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))

	// A stale stop must not tear down the restore in flight.
	require.NoError(t, eng.StopStream())
	assert.Equal(t, StateStreaming, eng.State())

	// After the grace period stops work again.
	require.Eventually(t, func() bool { return !eng.Restoring() },
		time.Second, 10*time.Millisecond)
	require.NoError(t, eng.StopStream())
	assert.Equal(t, StateIdle, eng.State())
}

func TestRestorationGuard_ClearedUnconditionally(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	// Guard clears even when no restore ever starts a stream.
	eng.BeginRestoration()
	assert.True(t, eng.Restoring())
	require.Eventually(t, func() bool { return !eng.Restoring() },
		time.Second, 10*time.Millisecond)
}

func TestPauseResume(t *testing.T) {
	eng, _, snk, _ := newTestEngine(t)

	assert.ErrorIs(t, eng.Pause(), ErrNotStreaming)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	require.NoError(t, eng.Pause())
	assert.Equal(t, StatePaused, eng.State())
	assert.True(t, snk.Paused())
	assert.True(t, snk.HasSource(), "paused sink keeps its source")

	require.NoError(t, eng.Resume(context.Background()))
	assert.Equal(t, StateStreaming, eng.State())
	assert.False(t, snk.Paused())

	assert.ErrorIs(t, eng.Resume(context.Background()), ErrNotPaused)
}

func TestStartStream_WhilePausedResumes(t *testing.T) {
	eng, sel, _, _ := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	require.NoError(t, eng.Pause())
	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))

	assert.Equal(t, StateStreaming, eng.State())
	assert.Equal(t, 1, sel.startCount(), "resume must not renegotiate the transport")
}

func TestSinkError_Reconnects(t *testing.T) {
	eng, sel, snk, not := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))

	snk.events <- sink.Event{Kind: sink.EventError, Err: errors.New("read reset")}

	require.Eventually(t, func() bool {
		s := eng.Session()
		return s.State == StateStreaming && s.ReconnectAttempts == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, sel.startCount())
	assert.Equal(t, 1, not.noticeCount(), "one notice per episode")
	assert.Empty(t, eng.Session().EpisodeID, "episode closes on reconnect")
}

func TestStreamEnded_Reconnects(t *testing.T) {
	eng, _, snk, not := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	snk.events <- sink.Event{Kind: sink.EventEnded}

	require.Eventually(t, func() bool {
		return eng.State() == StateStreaming && eng.Session().ReconnectAttempts == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, not.noticeCount())
}

func TestStalled_IsInformationalOnly(t *testing.T) {
	eng, sel, snk, not := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	snk.events <- sink.Event{Kind: sink.EventStalled}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateStreaming, eng.State())
	assert.Equal(t, 1, sel.startCount())
	assert.Zero(t, not.noticeCount())
}

func TestReconnect_Exhausted(t *testing.T) {
	eng, sel, _, not := newTestEngine(t)
	sel.failures = 100 // never recovers

	err := eng.StartStream(context.Background(), codec.MP3)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return eng.State() == StateFailed
	}, 5*time.Second, 10*time.Millisecond)

	sess := eng.Session()
	assert.Equal(t, 3, sess.ReconnectAttempts)
	assert.Equal(t, 4, sel.startCount(), "initial attempt plus three retries")
	// Interrupted notice plus the terminal failure notice.
	assert.Equal(t, 2, not.noticeCount())
	assert.False(t, not.indicator)
}

func TestReconnect_AbandonedByStop(t *testing.T) {
	eng, sel, snk, _ := newTestEngine(t)

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	sel.mu.Lock()
	sel.failures = 100
	sel.mu.Unlock()

	snk.events <- sink.Event{Kind: sink.EventError, Err: errors.New("gone")}
	require.Eventually(t, func() bool {
		s := eng.State()
		return s == StateDisconnected || s == StateReconnecting
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, eng.StopStream())
	assert.Equal(t, StateIdle, eng.State())

	// The abandoned loop must not drag the engine back out of idle.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateIdle, eng.State())
}

func TestStateListener_SeesTransitions(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	var mu sync.Mutex
	var seen []State
	eng.OnStateChange(func(old, next State, _ Session) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, next)
	})

	require.NoError(t, eng.StartStream(context.Background(), codec.MP3))
	require.NoError(t, eng.StopStream())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateStreaming, StateIdle}, seen)
}
