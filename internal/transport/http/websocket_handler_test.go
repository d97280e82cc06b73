package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	"salesdash/internal/shared/testutil"
	ws "salesdash/internal/websocket"
	"salesdash/pkg/contracts/events"
)

func newTestHub(t *testing.T) *ws.Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := ws.NewHub(config.Default().WebSocket, nil, logger)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func readMessage(t *testing.T, conn *websocket.Conn) events.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg events.WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketHandler_ReceivesDatasetEvents(t *testing.T) {
	hub := newTestHub(t)
	handler := NewWebSocketHandler(hub, config.Default().WebSocket, []string{"http://localhost:8080"}, nil)
	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost:8080"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	hello := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeConnect, hello.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(string(events.MessageTypeDatasetReloaded), events.DatasetReloaded{Source: "csv", Rows: 3})

	msg := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeDatasetReloaded, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["rows"])
}

func TestWebSocketHandler_RejectsForeignOrigin(t *testing.T) {
	hub := newTestHub(t)
	server := httptest.NewServer(NewWebSocketHandler(hub, config.Default().WebSocket, []string{"http://localhost:8080"}, nil))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}
