// Package handlers provides the control API handlers for wavebridge.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/stream"
)

// StreamController is the slice of the continuity engine the stream
// handler drives. Satisfied by *stream.Engine.
type StreamController interface {
	StartStream(ctx context.Context, preferred codec.ID) error
	StopStream() error
	Pause() error
	Resume(ctx context.Context) error
	Session() stream.Session
}

// IntentRecorder persists playback intent and snapshots. Satisfied by
// *state.Manager.
type IntentRecorder interface {
	SetIntent(ctx context.Context, active bool) error
	SaveSnapshot(ctx context.Context, format codec.ID) error
}

// VisibilityReceiver consumes player surface visibility events.
// Satisfied by *health.Monitor.
type VisibilityReceiver interface {
	OnVisibility(ctx context.Context, visible bool)
}

// StreamHandler exposes the stream lifecycle operations.
type StreamHandler struct {
	engine        StreamController
	intents       IntentRecorder
	visibility    VisibilityReceiver
	defaultFormat codec.ID
	logger        *slog.Logger
}

// NewStreamHandler creates the stream lifecycle handler.
func NewStreamHandler(
	engine StreamController,
	intents IntentRecorder,
	visibility VisibilityReceiver,
	defaultFormat codec.ID,
	logger *slog.Logger,
) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		engine:        engine,
		intents:       intents,
		visibility:    visibility,
		defaultFormat: defaultFormat,
		logger:        logger,
	}
}

// SessionBody is the wire representation of a stream session.
type SessionBody struct {
	ID                string    `json:"id,omitempty" doc:"Session identifier"`
	State             string    `json:"state" doc:"Connection lifecycle state"`
	Mode              string    `json:"mode" doc:"Transport mode carrying audio"`
	Format            string    `json:"format,omitempty" doc:"Negotiated audio format"`
	EpisodeID         string    `json:"episode_id,omitempty" doc:"Current disconnection episode, if any"`
	ReconnectAttempts int       `json:"reconnect_attempts" doc:"Attempts in the current episode"`
	StartedAt         time.Time `json:"started_at,omitempty" doc:"When the session was started"`
}

func sessionBody(s stream.Session) SessionBody {
	return SessionBody{
		ID:                s.ID,
		State:             s.State.String(),
		Mode:              s.Mode.String(),
		Format:            string(s.Format),
		EpisodeID:         s.EpisodeID,
		ReconnectAttempts: s.ReconnectAttempts,
		StartedAt:         s.StartedAt,
	}
}

// StartStreamInput is the input for the stream start operation.
type StartStreamInput struct {
	Body struct {
		Format string `json:"format,omitempty" doc:"Preferred audio format (mp3, aac, flac)"`
	}
}

// SessionOutput wraps a session response body.
type SessionOutput struct {
	Body SessionBody
}

// VisibilityInput is the input for the visibility event operation.
type VisibilityInput struct {
	Body struct {
		Visible bool `json:"visible" doc:"Whether the player surface is visible"`
	}
}

// VisibilityOutput is the (empty) visibility event response.
type VisibilityOutput struct {
	Body struct {
		Accepted bool `json:"accepted"`
	}
}

// Register registers the stream routes with the API.
func (h *StreamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "startStream",
		Method:      "POST",
		Path:        "/api/v1/stream/start",
		Summary:     "Start streaming",
		Description: "Records playback intent and starts the stream with the preferred format",
		Tags:        []string{"Stream"},
	}, h.StartStream)

	huma.Register(api, huma.Operation{
		OperationID: "stopStream",
		Method:      "POST",
		Path:        "/api/v1/stream/stop",
		Summary:     "Stop streaming",
		Description: "Clears playback intent and tears the stream down",
		Tags:        []string{"Stream"},
	}, h.StopStream)

	huma.Register(api, huma.Operation{
		OperationID: "pauseStream",
		Method:      "POST",
		Path:        "/api/v1/stream/pause",
		Summary:     "Pause playback",
		Tags:        []string{"Stream"},
	}, h.PauseStream)

	huma.Register(api, huma.Operation{
		OperationID: "resumeStream",
		Method:      "POST",
		Path:        "/api/v1/stream/resume",
		Summary:     "Resume paused playback",
		Tags:        []string{"Stream"},
	}, h.ResumeStream)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      "GET",
		Path:        "/api/v1/stream/session",
		Summary:     "Get the current stream session",
		Tags:        []string{"Stream"},
	}, h.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "postVisibilityEvent",
		Method:      "POST",
		Path:        "/api/v1/events/visibility",
		Summary:     "Report a player surface visibility change",
		Tags:        []string{"Events"},
	}, h.PostVisibility)
}

// StartStream records intent and starts the stream.
func (h *StreamHandler) StartStream(ctx context.Context, input *StartStreamInput) (*SessionOutput, error) {
	preferred := h.defaultFormat
	if input.Body.Format != "" {
		id, ok := codec.Parse(input.Body.Format)
		if !ok {
			return nil, huma.Error400BadRequest("unknown audio format: " + input.Body.Format)
		}
		preferred = id
	}

	if err := h.intents.SetIntent(ctx, true); err != nil {
		return nil, huma.Error500InternalServerError("persisting playback intent", err)
	}

	if err := h.engine.StartStream(ctx, preferred); err != nil {
		// The engine owns recovery from here; report the session as-is.
		h.logger.Warn("stream start failed", slog.Any("error", err))
	}

	sess := h.engine.Session()
	if err := h.intents.SaveSnapshot(ctx, sess.Format); err != nil {
		h.logger.Warn("saving snapshot after start", slog.Any("error", err))
	}
	return &SessionOutput{Body: sessionBody(sess)}, nil
}

// StopStream clears intent and tears the stream down.
func (h *StreamHandler) StopStream(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	if err := h.intents.SetIntent(ctx, false); err != nil {
		return nil, huma.Error500InternalServerError("clearing playback intent", err)
	}
	if err := h.engine.StopStream(); err != nil {
		return nil, huma.Error500InternalServerError("stopping stream", err)
	}
	return &SessionOutput{Body: sessionBody(h.engine.Session())}, nil
}

// PauseStream pauses playback, keeping the session restorable.
func (h *StreamHandler) PauseStream(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	if err := h.engine.Pause(); err != nil {
		if errors.Is(err, stream.ErrNotStreaming) {
			return nil, huma.Error409Conflict("no active stream to pause")
		}
		return nil, huma.Error500InternalServerError("pausing stream", err)
	}

	sess := h.engine.Session()
	if err := h.intents.SaveSnapshot(ctx, sess.Format); err != nil {
		h.logger.Warn("saving snapshot after pause", slog.Any("error", err))
	}
	return &SessionOutput{Body: sessionBody(sess)}, nil
}

// ResumeStream resumes paused playback.
func (h *StreamHandler) ResumeStream(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	if err := h.engine.Resume(ctx); err != nil {
		if errors.Is(err, stream.ErrNotPaused) {
			return nil, huma.Error409Conflict("stream is not paused")
		}
		return nil, huma.Error500InternalServerError("resuming stream", err)
	}
	return &SessionOutput{Body: sessionBody(h.engine.Session())}, nil
}

// GetSession returns the current stream session.
func (h *StreamHandler) GetSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	return &SessionOutput{Body: sessionBody(h.engine.Session())}, nil
}

// PostVisibility forwards a visibility change to the health monitor.
func (h *StreamHandler) PostVisibility(ctx context.Context, input *VisibilityInput) (*VisibilityOutput, error) {
	h.visibility.OnVisibility(ctx, input.Body.Visible)
	out := &VisibilityOutput{}
	out.Body.Accepted = true
	return out, nil
}
