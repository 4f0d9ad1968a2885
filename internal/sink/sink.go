// Package sink defines the audio sink contract consumed by the stream
// continuity engine, and an HTTP implementation that pulls the chunked
// fallback transport and feeds a local player pipe.
package sink

import "context"

// EventKind classifies sink events.
type EventKind int

// Sink event kinds. Stalled is informational only: momentary buffering
// underrun is common and must not look like a disconnect.
const (
	EventError EventKind = iota
	EventAbort
	EventStalled
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventError:
		return "error"
	case EventAbort:
		return "abort"
	case EventStalled:
		return "stalled"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a playback event surfaced by the sink.
type Event struct {
	Kind EventKind
	Err  error
}

// RemoteTrack is the realtime audio source handed to the sink. It is
// satisfied by pion's TrackRemote.
type RemoteTrack interface {
	ID() string
}

// AudioSink is the single playback output of a session. Exactly one
// source (chunked URL or realtime track) is assigned at a time.
type AudioSink interface {
	// AttachURL assigns a chunked transport URL as the source. chunkSize
	// is the read granularity for the pull loop.
	AttachURL(url string, chunkSize int) error
	// AttachTrack assigns a realtime track as the source.
	AttachTrack(track RemoteTrack) error
	// Play starts (or resumes) playback of the assigned source.
	Play(ctx context.Context) error
	// Pause halts playback but keeps the source assigned. A paused sink
	// with a source is still considered restorable.
	Pause()
	// Detach drops the source and stops playback.
	Detach()
	// HasSource reports whether a source is currently assigned.
	HasSource() bool
	// Paused reports whether playback is paused.
	Paused() bool
	// Events delivers error/abort/stalled/ended events.
	Events() <-chan Event
}
