package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Клиент ничего не присылает кроме control фреймов.
	maxInboundSize = 4 * 1024
	sendBuffer     = 16
)

// Client подписка участника сделки или сотрудника на уведомления.
type Client struct {
	conn  *websocket.Conn
	hub   *Hub
	actor models.Actor
	send  chan []byte
	log   *logrus.Entry
}

func NewClient(conn *websocket.Conn, hub *Hub, actor models.Actor) *Client {
	return &Client{
		conn:  conn,
		hub:   hub,
		actor: actor,
		send:  make(chan []byte, sendBuffer),
		log:   hub.log.WithFields(logrus.Fields{"user_id": actor.ID, "role": actor.Role}),
	}
}

// Run регистрирует клиента в хабе и держит соединение до разрыва или отмены ctx.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	c.log.Debug("Подписка на уведомления открыта")

	go c.deliver()
	c.drain(ctx)
}

// drain читает входящие фреймы только ради pong и обнаружения разрыва.
func (c *Client) drain(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Debug("Подписка оборвалась")
			}
			return
		}
	}
}

// deliver пишет уведомления из очереди и пингует клиента.
func (c *Client) deliver() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("Паника при доставке уведомлений: %v", r)
		}
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, payload)
}
