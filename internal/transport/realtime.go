package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// handshakeTimeout bounds the full offer/answer/ICE sequence when the
// caller's context carries no deadline.
const handshakeTimeout = 20 * time.Second

// signalMessage is the envelope exchanged with the backend signaler.
// The protocol beyond offer/answer is the backend's business.
type signalMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp,omitempty"`
}

// Realtime is the pion-backed realtime transport. Audio arrives on a
// receive-only transceiver; the offer/answer exchange runs over a
// websocket to the backend signaler.
type Realtime struct {
	signalURL string
	dialer    *websocket.Dialer
	logger    *slog.Logger

	mu sync.Mutex
	pc *webrtc.PeerConnection
}

// NewRealtime creates a realtime transport signaling against signalURL.
func NewRealtime(signalURL string, logger *slog.Logger) *Realtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Realtime{
		signalURL: signalURL,
		dialer:    websocket.DefaultDialer,
		logger:    logger,
	}
}

// Connect implements RealtimeTransport.
func (r *Realtime) Connect(ctx context.Context, hooks Hooks) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, handshakeTimeout)
		defer cancel()
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return fmt.Errorf("creating peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return fmt.Errorf("adding audio transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		r.logger.Debug("realtime audio track ready",
			slog.String("track_id", track.ID()),
			slog.String("codec", track.Codec().MimeType),
		)
		if hooks.OnAudioReady != nil {
			hooks.OnAudioReady(track)
		}
	})

	connected := make(chan struct{})
	var connectedOnce sync.Once
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		r.logger.Debug("realtime connection state", slog.String("state", st.String()))
		if hooks.OnStateChange != nil {
			hooks.OnStateChange(st.String())
		}
		switch st {
		case webrtc.PeerConnectionStateConnected:
			connectedOnce.Do(func() { close(connected) })
		case webrtc.PeerConnectionStateFailed:
			if hooks.OnError != nil {
				hooks.OnError(fmt.Errorf("peer connection failed"))
			}
		}
	})

	if err := r.handshake(ctx, pc); err != nil {
		pc.Close() // no partial state left registered
		return err
	}

	select {
	case <-connected:
	case <-ctx.Done():
		pc.Close()
		return fmt.Errorf("waiting for peer connection: %w", ctx.Err())
	}

	r.mu.Lock()
	if r.pc != nil {
		r.pc.Close()
	}
	r.pc = pc
	r.mu.Unlock()
	return nil
}

// handshake performs the non-trickle offer/answer exchange.
func (r *Realtime) handshake(ctx context.Context, pc *webrtc.PeerConnection) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fmt.Errorf("gathering ICE candidates: %w", ctx.Err())
	}

	conn, _, err := r.dialer.DialContext(ctx, r.signalURL, nil)
	if err != nil {
		return fmt.Errorf("dialing signaler: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	local := pc.LocalDescription()
	if err := conn.WriteJSON(signalMessage{Type: "offer", SDP: local.SDP}); err != nil {
		return fmt.Errorf("sending offer: %w", err)
	}

	var answer signalMessage
	for {
		if err := conn.ReadJSON(&answer); err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}
		if answer.Type == "answer" {
			break
		}
		// Skip keepalives or other signaler chatter.
		r.logger.Debug("ignoring signal message", slog.String("type", answer.Type))
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer.SDP,
	}); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}

// Disconnect implements RealtimeTransport.
func (r *Realtime) Disconnect() {
	r.mu.Lock()
	pc := r.pc
	r.pc = nil
	r.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			r.logger.Warn("closing peer connection", slog.String("error", err.Error()))
		}
	}
}
