package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/goroutine"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
)

// Hub рассылает уведомления участникам сделок и ленту персонала (admin, mediator).
type Hub struct {
	mu         sync.RWMutex
	byUser     map[uuid.UUID]map[*Client]struct{}
	staff      map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	outbox     chan envelope
	done       chan struct{}
	log        *logrus.Entry
}

// envelope адресуется либо одному пользователю, либо всему персоналу.
type envelope struct {
	userID  uuid.UUID
	staff   bool
	payload []byte
}

// Notification формат сообщения в сокете.
type Notification struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		byUser:     make(map[uuid.UUID]map[*Client]struct{}),
		staff:      make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbox:     make(chan envelope, 256),
		done:       make(chan struct{}),
		log:        logger.Component("ws"),
	}
}

// Run обслуживает подписки и рассылку до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.outbox:
			h.dispatch(env)
		}
	}
}

// Register и Unregister не блокируются после остановки хаба.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastToUser ставит уведомление пользователю в очередь. При переполнении очереди уведомление отбрасывается.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	return h.enqueue(envelope{userID: userID}, event, data)
}

// BroadcastToStaff уведомляет все подключённые сессии персонала.
func (h *Hub) BroadcastToStaff(event string, data any) error {
	return h.enqueue(envelope{staff: true}, event, data)
}

func (h *Hub) enqueue(env envelope, event string, data any) error {
	raw, err := json.Marshal(Notification{Type: event, Data: data})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать %s: %w", event, err)
	}
	env.payload = raw

	select {
	case h.outbox <- env:
	default:
		h.log.WithFields(logrus.Fields{
			"event":   event,
			"user_id": env.userID,
			"staff":   env.staff,
		}).Warn("Очередь уведомлений переполнена, сообщение отброшено")
	}
	return nil
}

// Connected количество открытых подписок пользователя.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// StaffConnected количество открытых подписок персонала.
func (h *Hub) StaffConnected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.staff)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.byUser[c.actor.ID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[c.actor.ID] = set
	}
	set[c] = struct{}{}
	if c.actor.IsStaff() {
		h.staff[c] = struct{}{}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.byUser[c.actor.ID]
	if !ok {
		return
	}
	if _, present := set[c]; present {
		delete(set, c)
		delete(h.staff, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.byUser, c.actor.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.byUser {
		for c := range set {
			close(c.send)
		}
		delete(h.byUser, userID)
	}
	h.staff = make(map[*Client]struct{})
}

func (h *Hub) dispatch(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.byUser[env.userID]
	if env.staff {
		targets = h.staff
	}
	for c := range targets {
		select {
		case c.send <- env.payload:
		default:
			// Медленный клиент отключается.
			slow := c
			goroutine.SafeGo(func() { h.Unregister(slow) })
		}
	}
}
