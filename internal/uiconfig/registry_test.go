package uiconfig

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yegors/whse-session/internal/websocket"
	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

var _ whse.Publisher = (*Registry)(nil)

type mockBroadcaster struct{ mock.Mock }

func (m *mockBroadcaster) PublishUIConfig(key string, payload map[string]any) {
	m.Called(key, payload)
}

func TestRegistry_PublishAndGet(t *testing.T) {
	payload := map[string]any{"whse": map[string]any{"id": "01"}}

	b := &mockBroadcaster{}
	b.On("PublishUIConfig", "session", payload).Once()

	r := NewRegistry(b, logger.NewNop())
	r.Publish("session", payload)

	got, ok := r.Get("session")
	assert.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, []string{"session"}, r.Keys())
	b.AssertExpectations(t)

	_, ok = r.Get("other")
	assert.False(t, ok)
}

func TestRegistry_PublishReplaces(t *testing.T) {
	r := NewRegistry(nil, logger.NewNop())
	r.Publish("session", map[string]any{"v": 1})
	r.Publish("session", map[string]any{"v": 2})

	got, _ := r.Get("session")
	assert.Equal(t, 2, got["v"])
}

func TestRegistry_AnswersUIConfigRequest(t *testing.T) {
	hub := websocket.NewServer(logger.NewNop())
	r := NewRegistry(hub, logger.NewNop())
	hub.SetMessageHandler(r)
	go hub.Run()
	defer hub.Stop()

	r.Publish("session", map[string]any{"whse": "01"})

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	defer srv.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.Message{
		Type: websocket.MessageTypeUIConfigRequest,
		Data: map[string]any{"key": "session"},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.MessageTypeUIConfig, msg.Type)
	assert.Equal(t, "session", msg.Data["key"])
	assert.Equal(t, map[string]any{"whse": "01"}, msg.Data["payload"])
}
