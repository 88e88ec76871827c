package simulator

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishAndReceive(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	received := make(chan ClientMessage, 1)
	hub.OnMessage(func(m ClientMessage) { received <- m })

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(Message{Type: MessageCommand, PlayerID: LocalPlayerID, Data: Command{Action: "play"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got struct {
		Type      string  `json:"type"`
		PlayerID  string  `json:"player_id"`
		Data      Command `json:"data"`
		Timestamp int64   `json:"timestamp"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, MessageCommand, got.Type)
	assert.Equal(t, LocalPlayerID, got.PlayerID)
	assert.Equal(t, Command{Action: "play"}, got.Data)
	assert.NotZero(t, got.Timestamp)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "event", PlayerID: RemotePlayerID, Event: "waiting"}))
	select {
	case m := <-received:
		assert.Equal(t, RemotePlayerID, m.PlayerID)
		assert.Equal(t, "waiting", m.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer message not delivered")
	}
}

func TestHub_DisconnectRemovesViewer(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Viewers() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Publishing with nobody connected is a no-op.
	hub.Publish(Message{Type: MessageState})
}

func TestHub_CloseRejectsNewViewers(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}
