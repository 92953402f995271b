package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/events"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/metrics"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/settlement"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/validation"
)

type RefundRepository interface {
	Create(ctx context.Context, req *models.RefundRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	List(ctx context.Context, filter models.RefundFilter, page models.PageRequest) (models.Page[models.RefundRequest], error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.RefundRequest, error)
	Decide(ctx context.Context, id uuid.UUID, d models.RefundDecision) error
	MarkProcessed(ctx context.Context, id uuid.UUID, processorRef string, at time.Time) error
	SumProcessed(ctx context.Context, transactionID uuid.UUID) (decimal.Decimal, error)
}

// TransactionReader чтение сделки без изменения.
type TransactionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
}

type RefundService struct {
	refunds   RefundRepository
	escrows   TransactionReader
	processor settlement.RefundProcessor
	publisher events.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *logrus.Entry
}

func NewRefundService(
	refunds RefundRepository,
	escrows TransactionReader,
	processor settlement.RefundProcessor,
	publisher events.Publisher,
	notifier Notifier,
	m *metrics.Metrics,
) *RefundService {
	return &RefundService{
		refunds:   refunds,
		escrows:   escrows,
		processor: processor,
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		now:       utcNow,
		log:       logger.Component("refund"),
	}
}

// CreateRefundInput данные запроса на возврат.
type CreateRefundInput struct {
	TransactionID uuid.UUID
	RequesterID   uuid.UUID
	Reason        string
	Amount        decimal.Decimal
	Type          valueobject.RefundType
}

// CreateRefundRequest ставит запрос на возврат в очередь. Участник сделки подаёт запрос от своего имени,
// система и администратор могут подать его за любого участника.
func (s *RefundService) CreateRefundRequest(ctx context.Context, actor models.Actor, in CreateRefundInput) (*models.RefundRequest, error) {
	if actor.ID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	privileged := actor.IsAdmin() || actor.IsSystem()
	if in.RequesterID == uuid.Nil {
		in.RequesterID = actor.ID
	}
	if in.RequesterID != actor.ID && !privileged {
		return nil, apperror.ErrForbidden
	}
	if !in.Type.IsValid() {
		return nil, apperror.Validation("некорректный тип возврата %q", in.Type)
	}
	if in.Type.RequiresStaff() && !privileged {
		return nil, apperror.ErrForbidden
	}
	reason, err := requireText("причина возврата", in.Reason, validation.MaxReasonLength)
	if err != nil {
		return nil, err
	}
	if err := valueobject.ValidatePositiveAmount("сумма возврата", in.Amount); err != nil {
		return nil, err
	}

	tx, err := s.escrows.GetByID(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(in.RequesterID) && !privileged {
		return nil, apperror.ErrForbidden
	}
	if err := s.checkRefundBounds(ctx, in.Amount, tx); err != nil {
		return nil, err
	}

	now := s.now()
	req := &models.RefundRequest{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		RequesterID:   in.RequesterID,
		Reason:        reason,
		RefundAmount:  in.Amount,
		RefundType:    in.Type,
		Status:        valueobject.RefundStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.refunds.Create(ctx, req); err != nil {
		return nil, err
	}

	s.metrics.RecordRefund(string(req.Status))
	publish(ctx, s.log, s.publisher, events.New(events.RefundRequested, tx.ID, actor.ID, map[string]any{
		"refund_request_id": req.ID,
		"amount":            req.RefundAmount.StringFixed(valueobject.CentsPlaces),
		"type":              req.RefundType,
	}))
	return req, nil
}

// ProcessRefund одобряет или отклоняет запрос в статусе pending.
func (s *RefundService) ProcessRefund(ctx context.Context, actor models.Actor, id uuid.UUID, approve bool, notes *string) (*models.RefundRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req, err := s.refunds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	target := valueobject.RefundStatusRejected
	eventType := events.RefundRejected
	if approve {
		target = valueobject.RefundStatusApproved
		eventType = events.RefundApproved
	}
	if _, err := req.Status.TransitionTo(target); err != nil {
		return nil, err
	}
	adminNotes, err := optionalText("admin_notes", notes, validation.MaxNotesLength)
	if err != nil {
		return nil, err
	}

	if err := s.refunds.Decide(ctx, id, models.RefundDecision{
		From:        req.Status,
		To:          target,
		AdminNotes:  adminNotes,
		ProcessedBy: actor.ID,
		At:          s.now(),
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordRefund(string(target))
	payload := map[string]any{"refund_request_id": req.ID, "transaction_id": req.TransactionID, "status": target}
	publish(ctx, s.log, s.publisher, events.New(eventType, req.TransactionID, actor.ID, payload))
	notify(s.log, s.notifier, eventType, payload, req.RequesterID)
	return s.refunds.GetByID(ctx, id)
}

// ExecuteRefund исполняет одобренный запрос у процессора и отмечает его исполненным.
// Ошибка процессора оставляет запрос в approved.
func (s *RefundService) ExecuteRefund(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.RefundRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req, err := s.refunds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != valueobject.RefundStatusApproved {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"исполнить можно только одобренный запрос (статус "+string(req.Status)+")")
	}
	tx, err := s.escrows.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRefundBounds(ctx, req.RefundAmount, tx); err != nil {
		return nil, err
	}

	started := time.Now()
	ref, err := s.processor.ProcessRefund(ctx, settlement.RefundInstruction{
		RefundRequestID: req.ID,
		Approve:         true,
		Amount:          req.RefundAmount,
		Currency:        tx.Currency,
		PaymentIntentID: derefString(tx.PaymentIntentID),
		IdempotencyKey:  settlement.RefundKey(req.ID),
	})
	s.metrics.ObserveSettlement("refund", started, err)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"refund_request_id": req.ID,
			"error":             err,
		}).Warn("Процессор не исполнил возврат")
		return nil, apperror.Wrap(err, apperror.ErrCodeUpstream, "платёжный процессор не выполнил возврат")
	}

	return s.markProcessed(ctx, actor, req, ref)
}

// MarkProcessed отмечает одобренный запрос исполненным по ссылке процессора.
// Сделку не меняет: исполненные запросы учитываются только в остатке для частичных возвратов.
func (s *RefundService) MarkProcessed(ctx context.Context, actor models.Actor, id uuid.UUID, processorRef string) (*models.RefundRequest, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSystem); err != nil {
		return nil, err
	}
	processorRef, err := requireText("processor_ref", processorRef, validation.MaxReferenceLength)
	if err != nil {
		return nil, err
	}
	req, err := s.refunds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := req.Status.TransitionTo(valueobject.RefundStatusProcessed); err != nil {
		return nil, err
	}
	tx, err := s.escrows.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRefundBounds(ctx, req.RefundAmount, tx); err != nil {
		return nil, err
	}
	return s.markProcessed(ctx, actor, req, processorRef)
}

func (s *RefundService) markProcessed(ctx context.Context, actor models.Actor, req *models.RefundRequest, ref string) (*models.RefundRequest, error) {
	if err := s.refunds.MarkProcessed(ctx, req.ID, ref, s.now()); err != nil {
		s.log.WithFields(logrus.Fields{
			"refund_request_id": req.ID,
			"processor_ref":     ref,
			"error":             err,
		}).Error("Возврат исполнен, но запрос не отмечен")
		return nil, err
	}

	s.metrics.RecordRefund(string(valueobject.RefundStatusProcessed))
	payload := map[string]any{"refund_request_id": req.ID, "transaction_id": req.TransactionID, "processor_ref": ref}
	publish(ctx, s.log, s.publisher, events.New(events.RefundProcessed, req.TransactionID, actor.ID, payload))
	notify(s.log, s.notifier, events.RefundProcessed, payload, req.RequesterID)
	return s.refunds.GetByID(ctx, req.ID)
}

// checkRefundBounds: 0 < amount <= сумма сделки и amount <= остаток, где остаток уже учитывает
// возврат по спору (refunded_amount) и исполненные запросы.
func (s *RefundService) checkRefundBounds(ctx context.Context, amount decimal.Decimal, tx *models.EscrowTransaction) error {
	if !amount.IsPositive() || amount.GreaterThan(tx.Amount) {
		return apperror.Validation("сумма возврата %s вне допустимого диапазона (0, %s]",
			amount.StringFixed(valueobject.CentsPlaces), tx.Amount.StringFixed(valueobject.CentsPlaces))
	}
	processed, err := s.refunds.SumProcessed(ctx, tx.ID)
	if err != nil {
		return err
	}
	if remaining := tx.Remaining(processed); amount.GreaterThan(remaining) {
		return apperror.Validation("сумма возврата %s превышает остаток по сделке %s",
			amount.StringFixed(valueobject.CentsPlaces), remaining.StringFixed(valueobject.CentsPlaces))
	}
	return nil
}

// ListRefundRequests очередь запросов для персонала.
func (s *RefundService) ListRefundRequests(ctx context.Context, actor models.Actor, filter models.RefundFilter, page models.PageRequest) (models.Page[models.RefundRequest], error) {
	if err := requireStaff(actor); err != nil {
		return models.Page[models.RefundRequest]{}, err
	}
	return s.refunds.List(ctx, filter, page)
}

// ListForTransaction запросы по сделке для её участников и персонала.
func (s *RefundService) ListForTransaction(ctx context.Context, actor models.Actor, transactionID uuid.UUID) ([]models.RefundRequest, error) {
	tx, err := s.escrows.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.CanView(actor) {
		return nil, apperror.ErrForbidden
	}
	return s.refunds.ListByTransaction(ctx, transactionID)
}

// FilterRefundsByStatus оставляет запросы с заданным статусом, сохраняя порядок.
func FilterRefundsByStatus(list []models.RefundRequest, status valueobject.RefundStatus) []models.RefundRequest {
	out := make([]models.RefundRequest, 0, len(list))
	for _, r := range list {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// PartitionRefunds делит список на ожидающие, исполненные и остальные (одобренные и отклонённые).
func PartitionRefunds(list []models.RefundRequest) (pending, processed, other []models.RefundRequest) {
	pending = make([]models.RefundRequest, 0)
	processed = make([]models.RefundRequest, 0)
	other = make([]models.RefundRequest, 0)
	for _, r := range list {
		switch r.Status {
		case valueobject.RefundStatusPending:
			pending = append(pending, r)
		case valueobject.RefundStatusProcessed:
			processed = append(processed, r)
		default:
			other = append(other, r)
		}
	}
	return pending, processed, other
}
