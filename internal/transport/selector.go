package transport

import (
	"context"
	"log/slog"

	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/player"
)

// Backend is the slice of the backend client the selector needs.
type Backend interface {
	RealtimeSupported(ctx context.Context) bool
	StreamURL(id codec.ID) string
}

// Selector decides which transport carries audio: realtime first when
// enabled and advertised, chunked fallback otherwise. Exactly one mode
// is active at a time; the engine guarantees a stop between switches.
type Selector struct {
	backend    Backend
	realtime   RealtimeTransport
	negotiator *codec.Negotiator
	family     player.Family
	enabled    bool
	logger     *slog.Logger
}

// NewSelector creates a Selector. realtime may be nil when the realtime
// transport is disabled by configuration.
func NewSelector(
	be Backend,
	realtime RealtimeTransport,
	negotiator *codec.Negotiator,
	family player.Family,
	realtimeEnabled bool,
	logger *slog.Logger,
) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		backend:    be,
		realtime:   realtime,
		negotiator: negotiator,
		family:     family,
		enabled:    realtimeEnabled,
		logger:     logger,
	}
}

// Start picks a transport and returns the resulting route. The realtime
// handshake is run here; the chunked connection is NOT opened here — the
// sink collaborator opens it from the returned target.
func (s *Selector) Start(ctx context.Context, preferred codec.ID, hooks Hooks) (Route, error) {
	if s.enabled && s.realtime != nil && s.backend.RealtimeSupported(ctx) {
		err := s.realtime.Connect(ctx, hooks)
		if err == nil {
			s.logger.Info("realtime transport connected")
			return Route{Mode: ModeRealtime, Format: codec.Opus}, nil
		}
		// Handshake failure degrades to the chunked transport and is
		// not surfaced to the user.
		s.logger.Warn("realtime handshake failed, falling back",
			slog.String("error", err.Error()),
		)
	}

	id := s.negotiator.PickFormat(preferred)
	buffer := player.BufferProfileFor(s.family, id)
	route := Route{
		Mode:             ModeFallback,
		Format:           id,
		ConnectionTarget: s.backend.StreamURL(id),
		Buffer:           buffer,
	}
	s.logger.Info("fallback transport selected",
		slog.String("format", string(id)),
		slog.String("family", string(s.family)),
		slog.Int("queue_depth", buffer.QueueDepth),
	)
	return route, nil
}

// Stop tears down the realtime transport if it is up. Safe to call in
// any mode.
func (s *Selector) Stop() {
	if s.realtime != nil {
		s.realtime.Disconnect()
	}
}
