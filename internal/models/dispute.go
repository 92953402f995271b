package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
)

// Dispute запись о споре по сделке. Активным может быть только один спор на сделку.
type Dispute struct {
	ID              uuid.UUID                 `db:"id" json:"id"`
	CaseNumber      string                    `db:"case_number" json:"case_number"`
	TransactionID   uuid.UUID                 `db:"transaction_id" json:"transaction_id"`
	OpenedBy        uuid.UUID                 `db:"opened_by" json:"opened_by"`
	Reason          string                    `db:"reason" json:"reason"`
	Status          valueobject.DisputeStatus `db:"status" json:"status"`
	Resolution      *valueobject.Resolution   `db:"resolution" json:"resolution,omitempty"`
	ResolutionNotes *string                   `db:"resolution_notes" json:"resolution_notes,omitempty"`
	RefundAmount    decimal.NullDecimal       `db:"refund_amount" json:"refund_amount"`
	ResolvedBy      *uuid.UUID                `db:"resolved_by" json:"resolved_by,omitempty"`
	SettlementRef   *string                   `db:"settlement_ref" json:"settlement_ref,omitempty"`
	Evidence        StringList                `db:"evidence" json:"evidence"`
	CreatedAt       time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                 `db:"updated_at" json:"updated_at"`
	ResolvedAt      *time.Time                `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DisputeResolution итог разрешения спора.
type DisputeResolution struct {
	Transaction     *EscrowTransaction  `json:"transaction"`
	Dispute         *Dispute            `json:"dispute,omitempty"`
	Payout          *valueobject.Payout `json:"payout,omitempty"`
	AlreadyResolved bool                `json:"already_resolved"`
}

// StringList список строк, хранимый в JSON колонке.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("string list: неподдерживаемый тип %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = out
	return nil
}
