package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
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
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/validation"
)

type EscrowRepository interface {
	TransactionClaimer
	Create(ctx context.Context, t *models.EscrowTransaction) error
	List(ctx context.Context, filter models.EscrowFilter, page models.PageRequest) (models.Page[models.EscrowTransaction], error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.EscrowTransaction], error)
	UpdateStatus(ctx context.Context, u repository.EscrowStatusUpdate) error
	UpdateMeeting(ctx context.Context, id uuid.UUID, location *string, scheduledAt *time.Time, now time.Time) error
	FinalizeSettlement(ctx context.Context, id, actorID uuid.UUID, u repository.SettlementUpdate) error
}

type DisputeOpener interface {
	Open(ctx context.Context, o repository.OpenDispute) error
}

// EscrowSettings параметры сделок из конфигурации.
type EscrowSettings struct {
	CommissionRate decimal.Decimal
	Currency       string
	ClaimTTL       time.Duration
}

// caseNumber генерирует номер дела вида DSP-7K2M9QX4TB.
var caseNumber = mustGenerator("0123456789ABCDEFGHJKLMNPQRSTUVWXYZ", 10)

func mustGenerator(alphabet string, length int) func() string {
	gen, err := nanoid.CustomASCII(alphabet, length)
	if err != nil {
		panic(err)
	}
	return gen
}

type EscrowService struct {
	escrows   EscrowRepository
	disputes  DisputeOpener
	refunds   ProcessedRefunds
	runner    settleRunner
	publisher events.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	settings  EscrowSettings
	now       func() time.Time
	log       *logrus.Entry
}

func NewEscrowService(
	escrows EscrowRepository,
	disputes DisputeOpener,
	refunds ProcessedRefunds,
	settler settlement.Settler,
	publisher events.Publisher,
	notifier Notifier,
	m *metrics.Metrics,
	settings EscrowSettings,
) *EscrowService {
	return &EscrowService{
		escrows:   escrows,
		disputes:  disputes,
		refunds:   refunds,
		runner:    newSettleRunner(escrows, settler, m, settings.ClaimTTL),
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		settings:  settings,
		now:       utcNow,
		log:       logger.Component("escrow"),
	}
}

// CreateTransactionInput данные новой сделки.
type CreateTransactionInput struct {
	ListingID           uuid.UUID
	BuyerID             uuid.UUID
	SellerID            uuid.UUID
	Amount              decimal.Decimal
	Currency            string
	SellerPayoutAccount *string
	MeetingLocation     *string
	MeetingScheduledAt  *time.Time
}

// CreateTransaction создаёт сделку в статусе pending_payment. Создать её может участник либо система.
func (s *EscrowService) CreateTransaction(ctx context.Context, actor models.Actor, in CreateTransactionInput) (*models.EscrowTransaction, error) {
	if actor.ID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if actor.ID != in.BuyerID && actor.ID != in.SellerID && !actor.IsAdmin() && !actor.IsSystem() {
		return nil, apperror.ErrForbidden
	}
	if in.ListingID == uuid.Nil || in.BuyerID == uuid.Nil || in.SellerID == uuid.Nil {
		return nil, apperror.Validation("listing_id, buyer_id и seller_id обязательны")
	}
	if in.BuyerID == in.SellerID {
		return nil, apperror.Validation("покупатель и продавец должны различаться")
	}
	if err := valueobject.ValidatePositiveAmount("сумма сделки", in.Amount); err != nil {
		return nil, err
	}

	currency, err := validation.NormalizeCurrency(in.Currency, s.settings.Currency)
	if err != nil {
		return nil, invalid(err)
	}
	payout, err := optionalText("seller_payout_account", in.SellerPayoutAccount, validation.MaxReferenceLength)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePayoutAccount(payout); err != nil {
		return nil, invalid(err)
	}
	location, err := optionalText("meeting_location", in.MeetingLocation, validation.MaxMeetingLocationLength)
	if err != nil {
		return nil, err
	}
	commission, seller := valueobject.SplitCommission(in.Amount, s.settings.CommissionRate)
	now := s.now()

	tx := &models.EscrowTransaction{
		ID:                  uuid.New(),
		ListingID:           in.ListingID,
		BuyerID:             in.BuyerID,
		SellerID:            in.SellerID,
		Amount:              in.Amount,
		Currency:            currency,
		CommissionRate:      s.settings.CommissionRate,
		CommissionAmount:    commission,
		SellerAmount:        seller,
		RefundedAmount:      decimal.Zero,
		Status:              valueobject.EscrowStatusPendingPayment,
		SellerPayoutAccount: payout,
		MeetingLocation:     location,
		MeetingScheduledAt:  in.MeetingScheduledAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.escrows.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"amount":         tx.Amount.StringFixed(valueobject.CentsPlaces),
	}).Info("Создана сделка")
	return tx, nil
}

// MarkFunded фиксирует поступление оплаты покупателя.
func (s *EscrowService) MarkFunded(ctx context.Context, actor models.Actor, id uuid.UUID, paymentIntentID string) (*models.EscrowTransaction, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSystem); err != nil {
		return nil, err
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, apperror.Validation("payment_intent_id обязателен")
	}

	tx, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := tx.Status.TransitionTo(valueobject.EscrowStatusFundsHeld)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.escrows.UpdateStatus(ctx, repository.EscrowStatusUpdate{
		ID:              tx.ID,
		ExpectedVersion: tx.Version,
		From:            tx.Status,
		To:              next,
		PaymentIntentID: &paymentIntentID,
		At:              now,
		StaleBefore:     s.runner.staleBefore(now),
	}); err != nil {
		return nil, s.conflict(err)
	}

	publish(ctx, s.log, s.publisher, events.New(events.TransactionFunded, tx.ID, actor.ID, nil))
	notify(s.log, s.notifier, events.TransactionFunded, map[string]any{"transaction_id": tx.ID}, tx.SellerID)
	return s.escrows.GetByID(ctx, id)
}

// ConfirmReceipt подтверждение получения покупателем.
func (s *EscrowService) ConfirmReceipt(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error) {
	return s.confirm(ctx, actor, id, true)
}

// ConfirmHandoff подтверждение передачи продавцом.
func (s *EscrowService) ConfirmHandoff(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error) {
	return s.confirm(ctx, actor, id, false)
}

func (s *EscrowService) confirm(ctx context.Context, actor models.Actor, id uuid.UUID, byBuyer bool) (*models.EscrowTransaction, error) {
	tx, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	own, counterpart := valueobject.EscrowStatusBuyerConfirmed, valueobject.EscrowStatusSellerConfirmed
	party := tx.BuyerID
	if !byBuyer {
		own, counterpart = counterpart, own
		party = tx.SellerID
	}
	if actor.ID != party {
		return nil, apperror.ErrForbidden
	}

	now := s.now()
	switch tx.Status {
	case own:
		return tx, nil
	case counterpart:
		return s.release(ctx, actor, tx, byBuyer, now)
	}

	if _, err := tx.Status.TransitionTo(own); err != nil {
		return nil, err
	}
	update := repository.EscrowStatusUpdate{
		ID:              tx.ID,
		ExpectedVersion: tx.Version,
		From:            tx.Status,
		To:              own,
		At:              now,
		StaleBefore:     s.runner.staleBefore(now),
	}
	if byBuyer {
		update.BuyerConfirmedAt = &now
	} else {
		update.SellerConfirmedAt = &now
	}
	if err := s.escrows.UpdateStatus(ctx, update); err != nil {
		return nil, s.conflict(err)
	}

	notify(s.log, s.notifier, string(own), map[string]any{"transaction_id": tx.ID}, tx.Counterparty(actor.ID))
	return s.escrows.GetByID(ctx, id)
}

// release выплачивает продавцу остаток после подтверждения обеими сторонами.
func (s *EscrowService) release(ctx context.Context, actor models.Actor, tx *models.EscrowTransaction, byBuyer bool, now time.Time) (*models.EscrowTransaction, error) {
	remaining, err := s.runner.remaining(ctx, s.refunds, tx)
	if err != nil {
		return nil, err
	}
	payout, err := valueobject.ComputePayout(valueobject.ResolutionReleaseSeller, remaining, decimal.Zero, tx.CommissionRate)
	if err != nil {
		return nil, err
	}

	if err := s.runner.claim(ctx, tx, actor.ID, now); err != nil {
		return nil, err
	}
	res, err := s.runner.settle(ctx, "release", settlement.Request{
		TransactionID:  tx.ID,
		Resolution:     valueobject.ResolutionReleaseSeller,
		Payout:         payout,
		Currency:       tx.Currency,
		SellerAccount:  derefString(tx.SellerPayoutAccount),
		IdempotencyKey: settlement.ReleaseKey(tx.ID),
	}, actor.ID, now)
	if err != nil {
		return nil, err
	}

	update := repository.SettlementUpdate{
		From:          tx.Status,
		Status:        valueobject.EscrowStatusReleased,
		SettlementRef: res.Reference,
		At:            now,
	}
	if byBuyer {
		update.BuyerConfirmedAt = &now
	} else {
		update.SellerConfirmedAt = &now
	}
	if err := s.escrows.FinalizeSettlement(ctx, tx.ID, actor.ID, update); err != nil {
		s.log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"settlement_ref": res.Reference,
			"error":          err,
		}).Error("Выплата проведена, но сделка не обновлена")
		return nil, err
	}

	payload := map[string]any{"transaction_id": tx.ID, "seller_payout": payout.SellerPayout.StringFixed(valueobject.CentsPlaces)}
	publish(ctx, s.log, s.publisher, events.New(events.TransactionReleased, tx.ID, actor.ID, payload))
	notify(s.log, s.notifier, events.TransactionReleased, payload, tx.BuyerID, tx.SellerID)
	return s.escrows.GetByID(ctx, tx.ID)
}

// OpenDispute открывает спор по сделке от имени покупателя или продавца.
func (s *EscrowService) OpenDispute(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Dispute, error) {
	reason, err := requireText("причина спора", reason, validation.MaxReasonLength)
	if err != nil {
		return nil, err
	}

	tx, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(actor.ID) {
		return nil, apperror.ErrForbidden
	}
	if tx.Status == valueobject.EscrowStatusDisputed {
		return nil, apperror.ErrActiveDisputeExists
	}
	if !tx.Status.CanOpenDispute() {
		_, err := tx.Status.TransitionTo(valueobject.EscrowStatusDisputed)
		return nil, err
	}

	now := s.now()
	d := &models.Dispute{
		ID:            uuid.New(),
		CaseNumber:    "DSP-" + caseNumber(),
		TransactionID: tx.ID,
		OpenedBy:      actor.ID,
		Reason:        reason,
		Status:        valueobject.DisputeStatusOpen,
		Evidence:      models.StringList{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.disputes.Open(ctx, repository.OpenDispute{
		Dispute:         d,
		ExpectedVersion: tx.Version,
		From:            tx.Status,
		StaleBefore:     s.runner.staleBefore(now),
	}); err != nil {
		return nil, s.conflict(err)
	}

	s.metrics.RecordDisputeOpened()
	s.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"case_number":    d.CaseNumber,
	}).Info("Открыт спор")

	payload := map[string]any{"transaction_id": tx.ID, "dispute_id": d.ID, "case_number": d.CaseNumber}
	publish(ctx, s.log, s.publisher, events.New(events.DisputeOpened, tx.ID, actor.ID, payload))
	notify(s.log, s.notifier, events.DisputeOpened, payload, tx.Counterparty(actor.ID))
	notifyStaff(s.log, s.notifier, events.DisputeOpened, payload)
	return d, nil
}

// ForceRefund возвращает остаток покупателю по решению администратора вне спора.
func (s *EscrowService) ForceRefund(ctx context.Context, actor models.Actor, id uuid.UUID, notes string) (*models.EscrowTransaction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	notes, err := requireText("комментарий", notes, validation.MaxNotesLength)
	if err != nil {
		return nil, err
	}

	tx, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status == valueobject.EscrowStatusDisputed {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict,
			"сделка в споре, используйте разрешение спора")
	}
	if _, err := tx.Status.TransitionTo(valueobject.EscrowStatusRefunded); err != nil {
		return nil, err
	}

	remaining, err := s.runner.remaining(ctx, s.refunds, tx)
	if err != nil {
		return nil, err
	}
	payout, err := valueobject.ComputePayout(valueobject.ResolutionRefundBuyer, remaining, decimal.Zero, tx.CommissionRate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.runner.claim(ctx, tx, actor.ID, now); err != nil {
		return nil, err
	}
	res, err := s.runner.settle(ctx, "force_refund", settlement.Request{
		TransactionID:   tx.ID,
		Resolution:      valueobject.ResolutionRefundBuyer,
		Notes:           notes,
		Payout:          payout,
		Currency:        tx.Currency,
		PaymentIntentID: derefString(tx.PaymentIntentID),
		IdempotencyKey:  settlement.ForceRefundKey(tx.ID),
	}, actor.ID, now)
	if err != nil {
		return nil, err
	}

	if err := s.escrows.FinalizeSettlement(ctx, tx.ID, actor.ID, repository.SettlementUpdate{
		From:          tx.Status,
		Status:        valueobject.EscrowStatusRefunded,
		Notes:         &notes,
		SettlementRef: res.Reference,
		RefundedDelta: payout.BuyerRefund,
		At:            now,
	}); err != nil {
		s.log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"settlement_ref": res.Reference,
			"error":          err,
		}).Error("Возврат проведён, но сделка не обновлена")
		return nil, err
	}

	payload := map[string]any{"transaction_id": tx.ID, "buyer_refund": payout.BuyerRefund.StringFixed(valueobject.CentsPlaces)}
	publish(ctx, s.log, s.publisher, events.New(events.TransactionRefunded, tx.ID, actor.ID, payload))
	notify(s.log, s.notifier, events.TransactionRefunded, payload, tx.BuyerID, tx.SellerID)
	return s.escrows.GetByID(ctx, tx.ID)
}

// GetTransaction доступен участникам сделки и персоналу.
func (s *EscrowService) GetTransaction(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tx.CanView(actor) {
		return nil, apperror.ErrForbidden
	}
	return tx, nil
}

func (s *EscrowService) ListMine(ctx context.Context, actor models.Actor, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	if actor.ID == uuid.Nil {
		return models.Page[models.EscrowTransaction]{}, apperror.ErrUnauthorized
	}
	return s.escrows.ListByParticipant(ctx, actor.ID, page)
}

func (s *EscrowService) ListAll(ctx context.Context, actor models.Actor, status *valueobject.EscrowStatus, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	if err := requireStaff(actor); err != nil {
		return models.Page[models.EscrowTransaction]{}, err
	}
	return s.escrows.List(ctx, models.EscrowFilter{Status: status}, page)
}

// UpdateMeeting меняет место и время встречи. На статус сделки не влияет.
func (s *EscrowService) UpdateMeeting(ctx context.Context, actor models.Actor, id uuid.UUID, location *string, scheduledAt *time.Time) (*models.EscrowTransaction, error) {
	tx, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(actor.ID) {
		return nil, apperror.ErrForbidden
	}
	if tx.Status.IsTerminal() {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeConflict, "сделка уже завершена")
	}
	loc, err := optionalText("location", location, validation.MaxMeetingLocationLength)
	if err != nil {
		return nil, err
	}
	if err := s.escrows.UpdateMeeting(ctx, id, loc, scheduledAt, s.now()); err != nil {
		return nil, err
	}
	return s.escrows.GetByID(ctx, id)
}

// conflict учитывает проигранную гонку CAS в метриках.
func (s *EscrowService) conflict(err error) error {
	if apperror.IsConflict(err) {
		s.metrics.RecordConflict("version")
	}
	return err
}
