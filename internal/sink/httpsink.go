package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// stallThreshold is how long a chunk read may take before the sink
// reports a stalled event.
const stallThreshold = 5 * time.Second

// eventBuffer bounds the event channel; events beyond it are dropped
// rather than blocking the copy loop.
const eventBuffer = 16

// ErrNoSource is returned when Play is called without an assigned source.
var ErrNoSource = errors.New("no source assigned to sink")

// HTTPSink pulls chunked audio over HTTP and copies it to a local writer,
// typically a FIFO the player process reads. TCP flow control provides
// the pacing; the sink never rate-limits on its own.
//
// Play establishes the connection synchronously so a connect timeout
// surfaces as an error to the caller; audio then flows on a background
// copy loop that reports failures through Events.
type HTTPSink struct {
	out    io.Writer
	http   *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	sourceURL string
	track     RemoteTrack
	chunkSize int
	paused    bool
	cancel    context.CancelFunc

	events chan Event
}

// NewHTTPSink creates a sink writing audio bytes to out.
func NewHTTPSink(out io.Writer, logger *slog.Logger) *HTTPSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSink{
		out:    out,
		http:   &http.Client{}, // no overall timeout: the stream is endless
		logger: logger,
		events: make(chan Event, eventBuffer),
	}
}

// AttachURL implements AudioSink.
func (s *HTTPSink) AttachURL(url string, chunkSize int) error {
	if url == "" {
		return errors.New("empty source url")
	}
	if chunkSize <= 0 {
		chunkSize = 16 * 1024
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.sourceURL = url
	s.track = nil
	s.chunkSize = chunkSize
	s.paused = false
	return nil
}

// AttachTrack implements AudioSink. Realtime audio is delivered by the
// transport itself; the sink only records that a source is assigned.
func (s *HTTPSink) AttachTrack(track RemoteTrack) error {
	if track == nil {
		return errors.New("nil track")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.track = track
	s.sourceURL = ""
	s.paused = false
	return nil
}

// Play implements AudioSink. ctx bounds connection establishment only;
// a ctx deadline is the transport connect timeout.
func (s *HTTPSink) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.sourceURL == "" && s.track == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	s.paused = false

	if s.track != nil || s.cancel != nil {
		s.mu.Unlock()
		return nil // realtime source, or copy loop already running
	}
	url, chunkSize := s.sourceURL, s.chunkSize
	s.mu.Unlock()

	// The copy loop must outlive ctx, which only bounds the connect.
	pullCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	req, err := http.NewRequestWithContext(pullCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("building stream request: %w", err)
	}

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.http.Do(req)
		done <- result{resp, err}
	}()

	var resp *http.Response
	select {
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("opening stream: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			cancel()
			return fmt.Errorf("opening stream: %w", r.err)
		}
		resp = r.resp
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("opening stream: unexpected status %d", resp.StatusCode)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.copyLoop(pullCtx, resp.Body, chunkSize)
	return nil
}

// Pause implements AudioSink. The source stays assigned.
func (s *HTTPSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.stopLocked()
}

// Detach implements AudioSink.
func (s *HTTPSink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.sourceURL = ""
	s.track = nil
	s.paused = false
}

// HasSource implements AudioSink.
func (s *HTTPSink) HasSource() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceURL != "" || s.track != nil
}

// Paused implements AudioSink.
func (s *HTTPSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Events implements AudioSink.
func (s *HTTPSink) Events() <-chan Event { return s.events }

// stopLocked cancels an active copy loop. Callers hold s.mu.
func (s *HTTPSink) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// copyLoop reads the chunked stream and copies it to the output writer
// until the context is cancelled, the stream ends, or an error occurs.
func (s *HTTPSink) copyLoop(ctx context.Context, body io.ReadCloser, chunkSize int) {
	defer body.Close()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	buf := make([]byte, chunkSize)
	for {
		readStart := time.Now()
		n, err := body.Read(buf)
		if n > 0 {
			if took := time.Since(readStart); took > stallThreshold {
				// Slow chunk: informational only, never a transition.
				s.emit(Event{Kind: EventStalled})
				s.logger.Debug("stream stalled", slog.Duration("chunk_wait", took))
			}
			if _, werr := s.out.Write(buf[:n]); werr != nil {
				s.emit(Event{Kind: EventError, Err: fmt.Errorf("writing to player: %w", werr)})
				return
			}
		}
		if err == io.EOF {
			s.emit(Event{Kind: EventEnded})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return // deliberate pause/detach, not an abort
			}
			s.emit(Event{Kind: EventError, Err: fmt.Errorf("reading stream: %w", err)})
			return
		}
	}
}

// emit delivers an event without ever blocking the copy loop.
func (s *HTTPSink) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("sink event dropped", slog.String("kind", ev.Kind.String()))
	}
}
