package valueobject

import "github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"

// transitionTable описывает допустимые переходы конечного автомата.
type transitionTable[S comparable] map[S][]S

func (t transitionTable[S]) allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t transitionTable[S]) known(s S) bool {
	_, ok := t[s]
	return ok
}

type EscrowStatus string

const (
	EscrowStatusPendingPayment  EscrowStatus = "pending_payment"
	EscrowStatusFundsHeld       EscrowStatus = "funds_held"
	EscrowStatusBuyerConfirmed  EscrowStatus = "buyer_confirmed"
	EscrowStatusSellerConfirmed EscrowStatus = "seller_confirmed"
	EscrowStatusDisputed        EscrowStatus = "disputed"
	EscrowStatusResolved        EscrowStatus = "resolved"
	EscrowStatusRefunded        EscrowStatus = "refunded"
	EscrowStatusReleased        EscrowStatus = "released"
)

var escrowTransitions = transitionTable[EscrowStatus]{
	EscrowStatusPendingPayment:  {EscrowStatusFundsHeld},
	EscrowStatusFundsHeld:       {EscrowStatusBuyerConfirmed, EscrowStatusSellerConfirmed, EscrowStatusDisputed, EscrowStatusRefunded},
	EscrowStatusBuyerConfirmed:  {EscrowStatusReleased, EscrowStatusDisputed, EscrowStatusRefunded},
	EscrowStatusSellerConfirmed: {EscrowStatusReleased, EscrowStatusDisputed, EscrowStatusRefunded},
	EscrowStatusDisputed:        {EscrowStatusRefunded, EscrowStatusReleased, EscrowStatusResolved},
	EscrowStatusResolved:        {},
	EscrowStatusRefunded:        {},
	EscrowStatusReleased:        {},
}

func (s EscrowStatus) IsValid() bool {
	return escrowTransitions.known(s)
}

func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	return escrowTransitions.allows(s, next)
}

// IsTerminal: из resolved, refunded и released переходов нет.
func (s EscrowStatus) IsTerminal() bool {
	return s.IsValid() && len(escrowTransitions[s]) == 0
}

// CanOpenDispute сообщает, можно ли открыть спор из текущего статуса.
func (s EscrowStatus) CanOpenDispute() bool {
	return s.CanTransitionTo(EscrowStatusDisputed)
}

// TransitionTo возвращает новый статус или ErrInvalidTransition.
func (s EscrowStatus) TransitionTo(next EscrowStatus) (EscrowStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"сделка: переход "+string(s)+" → "+string(next)+" запрещён")
	}
	return next, nil
}

func NewEscrowStatus(status string) (EscrowStatus, error) {
	s := EscrowStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус сделки")
	}
	return s, nil
}

type DisputeStatus string

const (
	DisputeStatusOpen      DisputeStatus = "open"
	DisputeStatusMediation DisputeStatus = "mediation"
	DisputeStatusResolved  DisputeStatus = "resolved"
)

var disputeTransitions = transitionTable[DisputeStatus]{
	DisputeStatusOpen:      {DisputeStatusMediation, DisputeStatusResolved},
	DisputeStatusMediation: {DisputeStatusResolved},
	DisputeStatusResolved:  {},
}

func (s DisputeStatus) IsValid() bool {
	return disputeTransitions.known(s)
}

// IsActive: спор в статусе open или mediation считается активным.
func (s DisputeStatus) IsActive() bool {
	return s == DisputeStatusOpen || s == DisputeStatusMediation
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	return disputeTransitions.allows(s, next)
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус спора")
	}
	return s, nil
}

// Resolution решение администратора по спору.
type Resolution string

const (
	ResolutionRefundBuyer   Resolution = "refund_buyer"
	ResolutionPartialRefund Resolution = "partial_refund"
	ResolutionReleaseSeller Resolution = "release_seller"
	ResolutionMediation     Resolution = "mediation"
)

func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionRefundBuyer, ResolutionPartialRefund, ResolutionReleaseSeller, ResolutionMediation:
		return true
	}
	return false
}

// IsFinal: mediation не закрывает спор и не вызывает расчёт.
func (r Resolution) IsFinal() bool {
	return r.IsValid() && r != ResolutionMediation
}

// TargetEscrowStatus возвращает статус сделки после расчёта.
func (r Resolution) TargetEscrowStatus() (EscrowStatus, bool) {
	switch r {
	case ResolutionRefundBuyer:
		return EscrowStatusRefunded, true
	case ResolutionPartialRefund:
		return EscrowStatusResolved, true
	case ResolutionReleaseSeller:
		return EscrowStatusReleased, true
	}
	return "", false
}

func NewResolution(resolution string) (Resolution, error) {
	r := Resolution(resolution)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип решения по спору")
	}
	return r, nil
}

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusProcessed RefundStatus = "processed"
)

var refundTransitions = transitionTable[RefundStatus]{
	RefundStatusPending:   {RefundStatusApproved, RefundStatusRejected},
	RefundStatusApproved:  {RefundStatusProcessed},
	RefundStatusRejected:  {},
	RefundStatusProcessed: {},
}

func (s RefundStatus) IsValid() bool {
	return refundTransitions.known(s)
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	return refundTransitions.allows(s, next)
}

func (s RefundStatus) IsTerminal() bool {
	return s.IsValid() && len(refundTransitions[s]) == 0
}

func (s RefundStatus) TransitionTo(next RefundStatus) (RefundStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"возврат: переход "+string(s)+" → "+string(next)+" запрещён")
	}
	return next, nil
}

func NewRefundStatus(status string) (RefundStatus, error) {
	s := RefundStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус возврата")
	}
	return s, nil
}

type RefundType string

const (
	RefundTypeFraud           RefundType = "fraud"
	RefundTypeAdminApproved   RefundType = "admin_approved"
	RefundTypeCancelled       RefundType = "cancelled"
	RefundTypeBuyerInitiated  RefundType = "buyer_initiated"
	RefundTypeSellerInitiated RefundType = "seller_initiated"
)

func (t RefundType) IsValid() bool {
	switch t {
	case RefundTypeFraud, RefundTypeAdminApproved, RefundTypeCancelled, RefundTypeBuyerInitiated, RefundTypeSellerInitiated:
		return true
	}
	return false
}

// RequiresStaff: fraud и admin_approved создаются только системой или администратором.
func (t RefundType) RequiresStaff() bool {
	return t == RefundTypeFraud || t == RefundTypeAdminApproved
}

func NewRefundType(refundType string) (RefundType, error) {
	t := RefundType(refundType)
	if !t.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип возврата")
	}
	return t, nil
}

type FraudStatus string

const (
	FraudStatusPending       FraudStatus = "pending"
	FraudStatusConfirmed     FraudStatus = "confirmed"
	FraudStatusFalsePositive FraudStatus = "false_positive"
	FraudStatusResolved      FraudStatus = "resolved"
)

var fraudTransitions = transitionTable[FraudStatus]{
	FraudStatusPending:       {FraudStatusConfirmed, FraudStatusFalsePositive, FraudStatusResolved},
	FraudStatusConfirmed:     {FraudStatusResolved},
	FraudStatusFalsePositive: {},
	FraudStatusResolved:      {},
}

func (s FraudStatus) IsValid() bool {
	return fraudTransitions.known(s)
}

func (s FraudStatus) CanTransitionTo(next FraudStatus) bool {
	return fraudTransitions.allows(s, next)
}

func (s FraudStatus) TransitionTo(next FraudStatus) (FraudStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"событие мошенничества: переход "+string(s)+" → "+string(next)+" запрещён")
	}
	return next, nil
}

func NewFraudStatus(status string) (FraudStatus, error) {
	s := FraudStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус события мошенничества")
	}
	return s, nil
}

type CheckStatus string

const (
	CheckStatusPending    CheckStatus = "pending"
	CheckStatusInProgress CheckStatus = "in_progress"
	CheckStatusCompleted  CheckStatus = "completed"
	CheckStatusFailed     CheckStatus = "failed"
	CheckStatusExpired    CheckStatus = "expired"
)

var checkTransitions = transitionTable[CheckStatus]{
	CheckStatusPending:    {CheckStatusInProgress, CheckStatusCompleted, CheckStatusFailed, CheckStatusExpired},
	CheckStatusInProgress: {CheckStatusCompleted, CheckStatusFailed, CheckStatusExpired},
	CheckStatusCompleted:  {},
	CheckStatusFailed:     {},
	CheckStatusExpired:    {},
}

func (s CheckStatus) IsValid() bool {
	return checkTransitions.known(s)
}

func (s CheckStatus) CanTransitionTo(next CheckStatus) bool {
	return checkTransitions.allows(s, next)
}

func (s CheckStatus) IsTerminal() bool {
	return s.IsValid() && len(checkTransitions[s]) == 0
}

func (s CheckStatus) TransitionTo(next CheckStatus) (CheckStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"проверка: переход "+string(s)+" → "+string(next)+" запрещён")
	}
	return next, nil
}

func NewCheckStatus(status string) (CheckStatus, error) {
	s := CheckStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус проверки")
	}
	return s, nil
}
