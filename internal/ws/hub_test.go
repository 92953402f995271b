package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

// serveClients поднимает тестовый сервер, который подписывает каждое соединение от имени actor.
func serveClients(t *testing.T, ctx context.Context, hub *Hub, actor models.Actor) (*websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, hub, actor).Run(ctx)
	}))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestHub_BroadcastToUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	userID := uuid.New()
	conn, cleanup := serveClients(t, ctx, hub, models.Actor{ID: userID, Role: models.RoleUser})
	defer cleanup()

	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastToUser(userID, "dispute.resolved", map[string]string{"resolution": "refund_buyer"}))
	// Чужому пользователю сообщение не уходит.
	require.NoError(t, hub.BroadcastToUser(uuid.New(), "dispute.resolved", nil))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, 0, hub.StaffConnected())
	assert.Equal(t, "dispute.resolved", msg.Type)
	assert.Equal(t, "refund_buyer", msg.Data["resolution"])

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connected(userID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastDoesNotBlockWithoutRun(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = hub.BroadcastToUser(uuid.New(), "refund.approved", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastToUser заблокировался")
	}
}

func TestHub_BroadcastToStaff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	mediator := models.Actor{ID: uuid.New(), Role: models.RoleMediator}
	staffConn, cleanupStaff := serveClients(t, ctx, hub, mediator)
	defer cleanupStaff()

	buyer := models.Actor{ID: uuid.New(), Role: models.RoleUser}
	userConn, cleanupUser := serveClients(t, ctx, hub, buyer)
	defer cleanupUser()

	require.Eventually(t, func() bool {
		return hub.StaffConnected() == 1 && hub.Connected(buyer.ID) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastToStaff("fraud.flagged", map[string]string{"band": "high"}))

	_ = staffConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := staffConn.ReadMessage()
	require.NoError(t, err)

	var msg Notification
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "fraud.flagged", msg.Type)

	// Покупатель ленту персонала не получает.
	_ = userConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = userConn.ReadMessage()
	assert.Error(t, err)
}
