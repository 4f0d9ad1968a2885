// Package transport selects and drives the audio transports: the
// realtime peer connection tried first, and the chunked HTTP fallback
// it degrades to.
package transport

import (
	"context"

	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/player"
	"github.com/audiolink/wavebridge/internal/sink"
)

// Mode identifies which transport carries audio.
type Mode int

// Transport modes.
const (
	ModeNone Mode = iota
	ModeRealtime
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeRealtime:
		return "realtime"
	case ModeFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Route is the result of transport selection.
type Route struct {
	Mode   Mode
	Format codec.ID
	// ConnectionTarget is the chunked transport URL; empty in realtime
	// mode, where the peer connection itself carries the audio.
	ConnectionTarget string
	// Buffer holds the (family, format) buffering parameters; zero in
	// realtime mode.
	Buffer player.BufferProfile
}

// Hooks are the three callback categories the realtime transport exposes.
type Hooks struct {
	OnStateChange func(state string)
	OnAudioReady  func(track sink.RemoteTrack)
	OnError       func(err error)
}

// RealtimeTransport is the client-visible contract of the realtime
// signaling handshake.
type RealtimeTransport interface {
	// Connect runs the handshake. On failure no callbacks remain
	// registered and no partial state is left behind.
	Connect(ctx context.Context, hooks Hooks) error
	// Disconnect tears the peer connection down. Idempotent.
	Disconnect()
}
