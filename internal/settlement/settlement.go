// Package settlement описывает внешний расчёт по сделкам: возвраты покупателю и выплаты продавцу.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
)

var (
	ErrNothingToSettle   = errors.New("settlement: нечего рассчитывать")
	ErrMissingPayment    = errors.New("settlement: у сделки нет платежа для возврата")
	ErrMissingPayout     = errors.New("settlement: у продавца не указан счёт для выплаты")
	ErrRefundNotApproved = errors.New("settlement: возврат не одобрен")
	ErrNonPositiveRefund = errors.New("settlement: сумма возврата должна быть положительной")
)

// Request инструкция расчёта по сделке.
// IdempotencyKey одинаков для повторов одного решения, процессор дедуплицирует по нему.
type Request struct {
	TransactionID   uuid.UUID
	Resolution      valueobject.Resolution
	Notes           string
	RefundAmount    *decimal.Decimal
	Payout          valueobject.Payout
	Currency        string
	PaymentIntentID string
	SellerAccount   string
	IdempotencyKey  string
}

// Result ссылки процессора на выполненные операции.
type Result struct {
	Reference   string
	RefundRef   string
	TransferRef string
}

// Settler исполняет решение по сделке у платёжного процессора.
type Settler interface {
	Settle(ctx context.Context, req Request) (Result, error)
}

// RefundInstruction команда процессору вернуть средства по запросу на возврат.
type RefundInstruction struct {
	RefundRequestID uuid.UUID
	Approve         bool
	Amount          decimal.Decimal
	Currency        string
	PaymentIntentID string
	IdempotencyKey  string
}

// RefundProcessor исполняет одобренные запросы на возврат и возвращает ссылку процессора.
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, in RefundInstruction) (string, error)
}

// DisputeKey ключ идемпотентности решения по спору.
func DisputeKey(transactionID uuid.UUID, resolution valueobject.Resolution) string {
	return fmt.Sprintf("dispute:%s:%s", transactionID, resolution)
}

// ReleaseKey ключ выплаты продавцу после подтверждения обеими сторонами.
func ReleaseKey(transactionID uuid.UUID) string {
	return fmt.Sprintf("release:%s", transactionID)
}

// ForceRefundKey ключ принудительного возврата администратором.
func ForceRefundKey(transactionID uuid.UUID) string {
	return fmt.Sprintf("force-refund:%s", transactionID)
}

// RefundKey ключ исполнения запроса на возврат.
func RefundKey(refundRequestID uuid.UUID) string {
	return fmt.Sprintf("refund:%s", refundRequestID)
}

func (r Request) validate() error {
	if r.Payout.BuyerRefund.IsZero() && r.Payout.SellerPayout.IsZero() {
		return ErrNothingToSettle
	}
	if r.Payout.BuyerRefund.IsPositive() && r.PaymentIntentID == "" {
		return ErrMissingPayment
	}
	if r.Payout.SellerPayout.IsPositive() && r.SellerAccount == "" {
		return ErrMissingPayout
	}
	return nil
}

func (in RefundInstruction) validate() error {
	if !in.Approve {
		return ErrRefundNotApproved
	}
	if !in.Amount.IsPositive() {
		return ErrNonPositiveRefund
	}
	if in.PaymentIntentID == "" {
		return ErrMissingPayment
	}
	return nil
}
