package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSignaler upgrades to a websocket and answers the first offer with
// the provided messages.
func fakeSignaler(t *testing.T, replies []signalMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var offer signalMessage
		if err := conn.ReadJSON(&offer); err != nil {
			return
		}
		if offer.Type != "offer" || offer.SDP == "" {
			t.Errorf("expected non-empty offer, got %+v", offer)
		}
		for _, msg := range replies {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnect_BadAnswerSDP(t *testing.T) {
	srv := fakeSignaler(t, []signalMessage{{Type: "answer", SDP: "not an sdp"}})
	defer srv.Close()

	rt := NewRealtime(wsURL(srv), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := rt.Connect(ctx, Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote description")
}

func TestConnect_SkipsSignalerChatter(t *testing.T) {
	srv := fakeSignaler(t, []signalMessage{
		{Type: "ping"},
		{Type: "answer", SDP: "still not an sdp"},
	})
	defer srv.Close()

	rt := NewRealtime(wsURL(srv), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The ping must be skipped and the bogus answer must be the failure.
	err := rt.Connect(ctx, Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote description")
}

func TestConnect_SignalerUnreachable(t *testing.T) {
	rt := NewRealtime("ws://127.0.0.1:1/signal", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := rt.Connect(ctx, Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialing signaler")
}

func TestDisconnect_Idempotent(t *testing.T) {
	rt := NewRealtime("ws://unused", nil)
	rt.Disconnect()
	rt.Disconnect()
}
