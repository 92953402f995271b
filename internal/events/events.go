// Package events публикует доменные события сделок во внешнюю шину.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Типы событий.
const (
	DisputeOpened          = "dispute.opened"
	DisputeMediation       = "dispute.mediation"
	DisputeResolved        = "dispute.resolved"
	TransactionFunded      = "transaction.funded"
	TransactionReleased    = "transaction.released"
	TransactionRefunded    = "transaction.refunded"
	RefundRequested        = "refund.requested"
	RefundApproved         = "refund.approved"
	RefundRejected         = "refund.rejected"
	RefundProcessed        = "refund.processed"
	FraudFlagged           = "fraud.flagged"
	FraudReviewed          = "fraud.reviewed"
	BackgroundCheckUpdated = "background_check.updated"
)

// Event сообщение шины. Key задаёт партицию: события одной сделки идут по порядку.
type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	ActorID    uuid.UUID      `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New создаёт событие с текущим временем.
func New(eventType string, key uuid.UUID, actorID uuid.UUID, payload map[string]any) Event {
	return Event{
		Type:       eventType,
		Key:        key.String(),
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher используется, когда брокеры не настроены.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
