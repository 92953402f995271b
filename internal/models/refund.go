package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
)

// RefundRequest запрос на возврат средств покупателю, не обязательно связанный со спором.
type RefundRequest struct {
	ID            uuid.UUID                `db:"id" json:"id"`
	TransactionID uuid.UUID                `db:"transaction_id" json:"transaction_id"`
	RequesterID   uuid.UUID                `db:"requester_id" json:"requester_id"`
	Reason        string                   `db:"reason" json:"reason"`
	RefundAmount  decimal.Decimal          `db:"refund_amount" json:"refund_amount"`
	RefundType    valueobject.RefundType   `db:"refund_type" json:"refund_type"`
	Status        valueobject.RefundStatus `db:"status" json:"status"`
	AdminNotes    *string                  `db:"admin_notes" json:"admin_notes,omitempty"`
	ProcessedBy   *uuid.UUID               `db:"processed_by" json:"processed_by,omitempty"`
	ReviewedAt    *time.Time               `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ProcessorRef  *string                  `db:"processor_ref" json:"processor_ref,omitempty"`
	ProcessedAt   *time.Time               `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt     time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                `db:"updated_at" json:"updated_at"`
}

// RefundFilter фильтр очереди запросов на возврат.
type RefundFilter struct {
	Status        *valueobject.RefundStatus
	TransactionID *uuid.UUID
}

// RefundDecision изменение статуса запроса администратором.
type RefundDecision struct {
	From        valueobject.RefundStatus
	To          valueobject.RefundStatus
	AdminNotes  *string
	ProcessedBy uuid.UUID
	At          time.Time
}
