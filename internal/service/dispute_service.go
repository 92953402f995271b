package service

import (
	"context"
	"errors"
	"io"
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
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/repository"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/settlement"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/storage"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/validation"
)

type DisputeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error)
	GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, status *valueobject.DisputeStatus, page models.PageRequest) (models.Page[models.Dispute], error)
	MarkMediation(ctx context.Context, id uuid.UUID, notes string, at time.Time) error
	Resolve(ctx context.Context, p repository.ResolveDispute) error
	AddEvidence(ctx context.Context, id uuid.UUID, path string, at time.Time) error
}

// EvidenceStore хранилище файлов доказательств.
type EvidenceStore interface {
	Save(ctx context.Context, disputeID uuid.UUID, r io.Reader) (storage.StoredFile, error)
	Delete(ctx context.Context, relativePath string) error
}

type DisputeService struct {
	escrows   TransactionClaimer
	disputes  DisputeRepository
	refunds   ProcessedRefunds
	evidence  EvidenceStore
	runner    settleRunner
	publisher events.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *logrus.Entry
}

func NewDisputeService(
	escrows TransactionClaimer,
	disputes DisputeRepository,
	refunds ProcessedRefunds,
	evidence EvidenceStore,
	settler settlement.Settler,
	publisher events.Publisher,
	notifier Notifier,
	m *metrics.Metrics,
	claimTTL time.Duration,
) *DisputeService {
	return &DisputeService{
		escrows:   escrows,
		disputes:  disputes,
		refunds:   refunds,
		evidence:  evidence,
		runner:    newSettleRunner(escrows, settler, m, claimTTL),
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		now:       utcNow,
		log:       logger.Component("dispute"),
	}
}

// ResolveDispute выносит решение по спору и проводит расчёт у платёжного процессора.
//
// Повтор с тем же решением после успешного разрешения возвращает текущее состояние
// с AlreadyResolved=true и не обращается к процессору. Другое решение даёт конфликт.
// Расчёт выполняется под отметкой захвата сделки: параллельный сотрудник получит
// ErrDisputeLocked, проигравший гонку версий получит ErrConcurrentModification.
func (s *DisputeService) ResolveDispute(
	ctx context.Context,
	actor models.Actor,
	transactionID uuid.UUID,
	resolution valueobject.Resolution,
	notes string,
	refundAmount *decimal.Decimal,
) (*models.DisputeResolution, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if !resolution.IsValid() {
		return nil, apperror.Validation("некорректный тип решения %q", resolution)
	}
	notes, err := requireText("обоснование решения", notes, validation.MaxNotesLength)
	if err != nil {
		return nil, err
	}
	if resolution == valueobject.ResolutionPartialRefund {
		if refundAmount == nil {
			return nil, apperror.Validation("для частичного возврата требуется refund_amount")
		}
		if err := valueobject.ValidatePositiveAmount("сумма возврата", *refundAmount); err != nil {
			return nil, err
		}
	} else if refundAmount != nil {
		return nil, apperror.Validation("refund_amount допустим только для частичного возврата")
	}

	tx, err := s.escrows.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.IsResolved() {
		return s.alreadyResolved(ctx, tx, resolution)
	}
	if tx.Status != valueobject.EscrowStatusDisputed {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"сделка не находится в споре (статус "+string(tx.Status)+")")
	}
	dispute, err := s.disputes.GetActiveByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}

	if resolution == valueobject.ResolutionMediation {
		return s.mediate(ctx, actor, tx, dispute, notes)
	}

	remaining, err := s.runner.remaining(ctx, s.refunds, tx)
	if err != nil {
		return nil, err
	}
	var refund decimal.Decimal
	if refundAmount != nil {
		refund = *refundAmount
		if refund.GreaterThan(tx.Amount) {
			return nil, apperror.Validation("сумма возврата %s превышает сумму сделки %s",
				refund.StringFixed(valueobject.CentsPlaces), tx.Amount.StringFixed(valueobject.CentsPlaces))
		}
	}
	payout, err := valueobject.ComputePayout(resolution, remaining, refund, tx.CommissionRate)
	if err != nil {
		return nil, err
	}
	target, _ := resolution.TargetEscrowStatus()

	now := s.now()
	if err := s.runner.claim(ctx, tx, actor.ID, now); err != nil {
		return nil, err
	}

	res, err := s.runner.settle(ctx, "dispute", settlement.Request{
		TransactionID:   tx.ID,
		Resolution:      resolution,
		Notes:           notes,
		RefundAmount:    refundAmount,
		Payout:          payout,
		Currency:        tx.Currency,
		PaymentIntentID: derefString(tx.PaymentIntentID),
		SellerAccount:   derefString(tx.SellerPayoutAccount),
		IdempotencyKey:  settlement.DisputeKey(tx.ID, resolution),
	}, actor.ID, now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"resolution":     resolution,
			"error":          err,
		}).Warn("Расчёт по спору не выполнен")
		return nil, err
	}

	refunded := decimal.NullDecimal{}
	if payout.BuyerRefund.IsPositive() {
		refunded = decimal.NewNullDecimal(payout.BuyerRefund)
	}
	if err := s.disputes.Resolve(ctx, repository.ResolveDispute{
		DisputeID:     dispute.ID,
		TransactionID: tx.ID,
		ActorID:       actor.ID,
		Resolution:    resolution,
		Notes:         notes,
		RefundAmount:  refunded,
		Escrow: repository.SettlementUpdate{
			From:              valueobject.EscrowStatusDisputed,
			Status:            target,
			Resolution:        &resolution,
			Notes:             &notes,
			SettlementRef:     res.Reference,
			RefundedDelta:     payout.BuyerRefund,
			DisputeResolvedAt: &now,
			At:                now,
		},
	}); err != nil {
		// Расчёт уже проведён. Захват остаётся за сотрудником, повтор с тем же ключом идемпотентности безопасен.
		s.log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"dispute_id":     dispute.ID,
			"settlement_ref": res.Reference,
			"error":          err,
		}).Error("Расчёт проведён, но решение по спору не сохранено")
		return nil, err
	}

	s.metrics.RecordResolution(string(resolution))
	s.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"resolution":     resolution,
		"settlement_ref": res.Reference,
		"resolved_by":    actor.ID,
	}).Info("Спор разрешён")

	payload := map[string]any{
		"transaction_id": tx.ID,
		"dispute_id":     dispute.ID,
		"resolution":     resolution,
		"buyer_refund":   payout.BuyerRefund.StringFixed(valueobject.CentsPlaces),
		"seller_payout":  payout.SellerPayout.StringFixed(valueobject.CentsPlaces),
	}
	publish(ctx, s.log, s.publisher, events.New(events.DisputeResolved, tx.ID, actor.ID, payload))
	notify(s.log, s.notifier, events.DisputeResolved, payload, tx.BuyerID, tx.SellerID)

	updatedTx, err := s.escrows.GetByID(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	updatedDispute, err := s.disputes.GetByID(ctx, dispute.ID)
	if err != nil {
		return nil, err
	}
	return &models.DisputeResolution{Transaction: updatedTx, Dispute: updatedDispute, Payout: &payout}, nil
}

func (s *DisputeService) alreadyResolved(ctx context.Context, tx *models.EscrowTransaction, resolution valueobject.Resolution) (*models.DisputeResolution, error) {
	if tx.Resolution == nil || *tx.Resolution != resolution {
		return nil, apperror.ErrAlreadyResolvedDiffers
	}
	dispute, err := s.disputes.GetLatestByTransaction(ctx, tx.ID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	return &models.DisputeResolution{Transaction: tx, Dispute: dispute, AlreadyResolved: true}, nil
}

// mediate передаёт спор медиатору. Сделка остаётся в disputed, расчёта нет.
func (s *DisputeService) mediate(ctx context.Context, actor models.Actor, tx *models.EscrowTransaction, dispute *models.Dispute, notes string) (*models.DisputeResolution, error) {
	if dispute.Status == valueobject.DisputeStatusMediation {
		return &models.DisputeResolution{Transaction: tx, Dispute: dispute}, nil
	}
	if err := s.disputes.MarkMediation(ctx, dispute.ID, notes, s.now()); err != nil {
		return nil, err
	}

	s.metrics.RecordResolution(string(valueobject.ResolutionMediation))
	payload := map[string]any{"transaction_id": tx.ID, "dispute_id": dispute.ID}
	publish(ctx, s.log, s.publisher, events.New(events.DisputeMediation, tx.ID, actor.ID, payload))
	notify(s.log, s.notifier, events.DisputeMediation, payload, tx.BuyerID, tx.SellerID)

	updated, err := s.disputes.GetByID(ctx, dispute.ID)
	if err != nil {
		return nil, err
	}
	return &models.DisputeResolution{Transaction: tx, Dispute: updated}, nil
}

// GetDispute доступен участникам сделки и персоналу.
func (s *DisputeService) GetDispute(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Dispute, error) {
	d, _, err := s.loadForParticipant(ctx, actor, id, true)
	return d, err
}

func (s *DisputeService) ListDisputes(ctx context.Context, actor models.Actor, status *valueobject.DisputeStatus, page models.PageRequest) (models.Page[models.Dispute], error) {
	if err := requireStaff(actor); err != nil {
		return models.Page[models.Dispute]{}, err
	}
	return s.disputes.List(ctx, status, page)
}

// AttachEvidence сохраняет файл доказательства и добавляет его к активному спору.
func (s *DisputeService) AttachEvidence(ctx context.Context, actor models.Actor, disputeID uuid.UUID, file io.Reader) (*models.Dispute, error) {
	d, _, err := s.loadForParticipant(ctx, actor, disputeID, false)
	if err != nil {
		return nil, err
	}
	if !d.Status.IsActive() {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict, "спор уже закрыт")
	}

	stored, err := s.evidence.Save(ctx, d.ID, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge), errors.Is(err, storage.ErrEmptyFile):
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
	}

	if err := s.disputes.AddEvidence(ctx, d.ID, stored.Path, s.now()); err != nil {
		if delErr := s.evidence.Delete(context.WithoutCancel(ctx), stored.Path); delErr != nil {
			s.log.WithFields(logrus.Fields{"path": stored.Path, "error": delErr}).Warn("Не удалось удалить файл доказательства")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"mime":       stored.MIME,
		"size":       stored.Size,
	}).Info("Добавлено доказательство")
	return s.disputes.GetByID(ctx, d.ID)
}

// loadForParticipant загружает спор и проверяет доступ. allowStaff разрешает чтение персоналу.
func (s *DisputeService) loadForParticipant(ctx context.Context, actor models.Actor, id uuid.UUID, allowStaff bool) (*models.Dispute, *models.EscrowTransaction, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tx, err := s.escrows.GetByID(ctx, d.TransactionID)
	if err != nil {
		return nil, nil, err
	}
	if tx.IsParticipant(actor.ID) || (allowStaff && actor.IsStaff()) {
		return d, tx, nil
	}
	return nil, nil, apperror.ErrForbidden
}
