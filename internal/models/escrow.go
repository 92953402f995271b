package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
)

// EscrowTransaction сделка, в рамках которой платформа удерживает оплату покупателя до подтверждения обеими сторонами.
type EscrowTransaction struct {
	ID                  uuid.UUID                `db:"id" json:"id"`
	ListingID           uuid.UUID                `db:"listing_id" json:"listing_id"`
	BuyerID             uuid.UUID                `db:"buyer_id" json:"buyer_id"`
	SellerID            uuid.UUID                `db:"seller_id" json:"seller_id"`
	Amount              decimal.Decimal          `db:"amount" json:"amount"`
	Currency            string                   `db:"currency" json:"currency"`
	CommissionRate      decimal.Decimal          `db:"commission_rate" json:"commission_rate"`
	CommissionAmount    decimal.Decimal          `db:"commission_amount" json:"commission_amount"`
	SellerAmount        decimal.Decimal          `db:"seller_amount" json:"seller_amount"`
	RefundedAmount      decimal.Decimal          `db:"refunded_amount" json:"refunded_amount"`
	Status              valueobject.EscrowStatus `db:"status" json:"status"`
	PaymentIntentID     *string                  `db:"payment_intent_id" json:"-"`
	SellerPayoutAccount *string                  `db:"seller_payout_account" json:"-"`
	BuyerConfirmedAt    *time.Time               `db:"buyer_confirmed_at" json:"buyer_confirmed_at,omitempty"`
	SellerConfirmedAt   *time.Time               `db:"seller_confirmed_at" json:"seller_confirmed_at,omitempty"`
	DisputeReason       *string                  `db:"dispute_reason" json:"dispute_reason,omitempty"`
	DisputeCreatedAt    *time.Time               `db:"dispute_created_at" json:"dispute_created_at,omitempty"`
	DisputeResolvedAt   *time.Time               `db:"dispute_resolved_at" json:"dispute_resolved_at,omitempty"`
	Resolution          *valueobject.Resolution  `db:"resolution" json:"resolution,omitempty"`
	ResolutionNotes     *string                  `db:"resolution_notes" json:"resolution_notes,omitempty"`
	SettlementRef       *string                  `db:"settlement_ref" json:"settlement_ref,omitempty"`
	MeetingLocation     *string                  `db:"meeting_location" json:"meeting_location,omitempty"`
	MeetingScheduledAt  *time.Time               `db:"meeting_scheduled_at" json:"meeting_scheduled_at,omitempty"`
	ResolvingBy         *uuid.UUID               `db:"resolving_by" json:"resolving_by,omitempty"`
	LockedAt            *time.Time               `db:"locked_at" json:"locked_at,omitempty"`
	Version             int64                    `db:"version" json:"version"`
	CreatedAt           time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time                `db:"updated_at" json:"updated_at"`
}

// IsParticipant сообщает, является ли пользователь покупателем или продавцом.
func (t *EscrowTransaction) IsParticipant(userID uuid.UUID) bool {
	return userID == t.BuyerID || userID == t.SellerID
}

// CanView: участники сделки и персонал.
func (t *EscrowTransaction) CanView(actor Actor) bool {
	return actor.IsStaff() || actor.IsSystem() || t.IsParticipant(actor.ID)
}

// Counterparty возвращает вторую сторону сделки.
func (t *EscrowTransaction) Counterparty(userID uuid.UUID) uuid.UUID {
	if userID == t.BuyerID {
		return t.SellerID
	}
	return t.BuyerID
}

// Remaining остаток суммы, ещё не возвращённый покупателю.
// processedRefunds сумма исполненных запросов на возврат по сделке.
func (t *EscrowTransaction) Remaining(processedRefunds decimal.Decimal) decimal.Decimal {
	remaining := t.Amount.Sub(t.RefundedAmount).Sub(processedRefunds)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsResolved: решение по спору уже исполнено.
func (t *EscrowTransaction) IsResolved() bool {
	return t.DisputeResolvedAt != nil
}

// ClaimedBy сообщает, удерживает ли сотрудник блокировку разрешения спора и не устарела ли она.
func (t *EscrowTransaction) ClaimedBy(now time.Time, ttl time.Duration) (uuid.UUID, bool) {
	if t.ResolvingBy == nil || t.LockedAt == nil {
		return uuid.Nil, false
	}
	if now.Sub(*t.LockedAt) > ttl {
		return uuid.Nil, false
	}
	return *t.ResolvingBy, true
}

// EscrowFilter фильтр административного списка сделок.
type EscrowFilter struct {
	Status *valueobject.EscrowStatus
}
