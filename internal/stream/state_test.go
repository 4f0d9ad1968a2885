package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:         "idle",
		StateConnecting:   "connecting",
		StateStreaming:    "streaming",
		StatePaused:       "paused",
		StateDisconnected: "disconnected",
		StateReconnecting: "reconnecting",
		StateFailed:       "failed",
		State(42):         "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		ok   bool
	}{
		{"idle to connecting", StateIdle, StateConnecting, true},
		{"connecting to streaming", StateConnecting, StateStreaming, true},
		{"connecting to disconnected", StateConnecting, StateDisconnected, true},
		{"streaming to paused", StateStreaming, StatePaused, true},
		{"streaming to disconnected", StateStreaming, StateDisconnected, true},
		{"paused to streaming", StatePaused, StateStreaming, true},
		{"disconnected to reconnecting", StateDisconnected, StateReconnecting, true},
		{"reconnecting to streaming", StateReconnecting, StateStreaming, true},
		{"reconnecting to failed", StateReconnecting, StateFailed, true},
		{"failed to connecting", StateFailed, StateConnecting, true},
		{"anything to idle", StateFailed, StateIdle, true},
		{"idle to streaming", StateIdle, StateStreaming, false},
		{"streaming to reconnecting", StateStreaming, StateReconnecting, false},
		{"idle to failed", StateIdle, StateFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, canTransition(tt.from, tt.to))
		})
	}
}

func TestStateInFlight(t *testing.T) {
	assert.True(t, StateConnecting.InFlight())
	assert.True(t, StateStreaming.InFlight())
	assert.True(t, StateReconnecting.InFlight())
	assert.False(t, StateIdle.InFlight())
	assert.False(t, StatePaused.InFlight())
	assert.False(t, StateDisconnected.InFlight())
	assert.False(t, StateFailed.InFlight())
}
