package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/internal/stream"
)

type stubEngine struct {
	mu    sync.Mutex
	state stream.State
}

func (s *stubEngine) State() stream.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

type stubRestorer struct {
	mu    sync.Mutex
	calls int
}

func (s *stubRestorer) FastRestore(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return true, nil
}

func (s *stubRestorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestMonitor(state stream.State) (*Monitor, *stubEngine, *stubRestorer) {
	eng := &stubEngine{state: state}
	res := &stubRestorer{}
	cfg := config.StreamConfig{
		HealthSettleDelay:   20 * time.Millisecond,
		ResumeCheckInterval: 30 * time.Second,
	}
	return NewMonitor(eng, res, cfg, nil), eng, res
}

func TestCheck_RestoresWhenIdle(t *testing.T) {
	mon, _, res := newTestMonitor(stream.StateIdle)

	mon.Check(context.Background())
	assert.Equal(t, 1, res.callCount())
}

func TestCheck_SkipsAttachedStates(t *testing.T) {
	for _, state := range []stream.State{
		stream.StateConnecting, stream.StateStreaming,
		stream.StateReconnecting, stream.StatePaused,
	} {
		mon, _, res := newTestMonitor(state)
		mon.Check(context.Background())
		assert.Zero(t, res.callCount(), "state %s must not trigger a restore", state)
	}
}

func TestOnVisibility_ReturnTriggersCheckAfterSettle(t *testing.T) {
	mon, _, res := newTestMonitor(stream.StateIdle)
	ctx := context.Background()

	mon.OnVisibility(ctx, false)
	assert.Zero(t, res.callCount(), "going hidden must not check")

	mon.OnVisibility(ctx, true)
	assert.Zero(t, res.callCount(), "check waits for the settle delay")

	require.Eventually(t, func() bool { return res.callCount() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestOnVisibility_VisibleWhileVisibleIsNoop(t *testing.T) {
	mon, _, res := newTestMonitor(stream.StateIdle)
	ctx := context.Background()

	mon.OnVisibility(ctx, true)
	mon.OnVisibility(ctx, true)

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, res.callCount())
}

func TestOnVisibility_HiddenCancelsPendingCheck(t *testing.T) {
	mon, _, res := newTestMonitor(stream.StateIdle)
	ctx := context.Background()

	mon.OnVisibility(ctx, false)
	mon.OnVisibility(ctx, true)
	mon.OnVisibility(ctx, false) // hide again before the settle elapses

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, res.callCount())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	mon, _, _ := newTestMonitor(stream.StateIdle)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
