package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/repository/common"
)

const escrowColumns = `id, listing_id, buyer_id, seller_id, amount, currency, commission_rate, commission_amount,
	seller_amount, refunded_amount, status, payment_intent_id, seller_payout_account, buyer_confirmed_at,
	seller_confirmed_at, dispute_reason, dispute_created_at, dispute_resolved_at, resolution, resolution_notes,
	settlement_ref, meeting_location, meeting_scheduled_at, resolving_by, locked_at, version, created_at, updated_at`

var escrowTable = common.Table{Name: "escrow_transactions", Columns: escrowColumns, NotFound: apperror.ErrTransactionNotFound}

// EscrowRepository хранит сделки. Все изменения статуса выполняются через compare-and-swap по version.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) Create(ctx context.Context, t *models.EscrowTransaction) error {
	query := `
		INSERT INTO escrow_transactions (id, listing_id, buyer_id, seller_id, amount, currency, commission_rate,
			commission_amount, seller_amount, refunded_amount, status, payment_intent_id, seller_payout_account,
			meeting_location, meeting_scheduled_at, version, created_at, updated_at)
		VALUES (:id, :listing_id, :buyer_id, :seller_id, :amount, :currency, :commission_rate,
			:commission_amount, :seller_amount, :refunded_amount, :status, :payment_intent_id, :seller_payout_account,
			:meeting_location, :meeting_scheduled_at, :version, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, t); err != nil {
		return fmt.Errorf("escrow repository: create: %w", err)
	}
	return nil
}

func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return common.GetByID[models.EscrowTransaction](ctx, r.db, escrowTable, id)
}

// List возвращает сделки для административного списка.
func (r *EscrowRepository) List(ctx context.Context, filter models.EscrowFilter, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	page = page.Normalize()
	cursor, err := common.DecodeCursor(page.Cursor)
	if err != nil {
		return models.Page[models.EscrowTransaction]{}, err
	}

	var q common.Query
	if filter.Status != nil {
		q.Where(func(arg func(any) string) string { return "status = " + arg(*filter.Status) })
	}
	q.WhereCursor(cursor)
	return r.selectPage(ctx, &q, page.Limit)
}

// ListByParticipant возвращает сделки, где пользователь покупатель или продавец.
func (r *EscrowRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	page = page.Normalize()
	cursor, err := common.DecodeCursor(page.Cursor)
	if err != nil {
		return models.Page[models.EscrowTransaction]{}, err
	}

	var q common.Query
	q.Where(func(arg func(any) string) string {
		p := arg(userID)
		return "(buyer_id = " + p + " OR seller_id = " + p + ")"
	})
	q.WhereCursor(cursor)
	return r.selectPage(ctx, &q, page.Limit)
}

func (r *EscrowRepository) selectPage(ctx context.Context, q *common.Query, limit int) (models.Page[models.EscrowTransaction], error) {
	query, args := q.Build("SELECT "+escrowColumns+" FROM escrow_transactions", limit)
	var rows []models.EscrowTransaction
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.Page[models.EscrowTransaction]{}, fmt.Errorf("escrow repository: list: %w", err)
	}
	return common.Paginate(rows, limit, func(t models.EscrowTransaction) (time.Time, uuid.UUID) {
		return t.CreatedAt, t.ID
	}), nil
}

// EscrowStatusUpdate переход статуса с проверкой версии.
type EscrowStatusUpdate struct {
	ID                uuid.UUID
	ExpectedVersion   int64
	From              valueobject.EscrowStatus
	To                valueobject.EscrowStatus
	PaymentIntentID   *string
	BuyerConfirmedAt  *time.Time
	SellerConfirmedAt *time.Time
	At                time.Time
	// StaleBefore отметка захвата старше этого момента не мешает переходу.
	StaleBefore time.Time
}

// UpdateStatus выполняет переход статуса; при несовпадении версии или статуса, а также при живом захвате
// расчёта возвращает ErrConcurrentModification.
func (r *EscrowRepository) UpdateStatus(ctx context.Context, u EscrowStatusUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE escrow_transactions
		SET status = $1,
			payment_intent_id = COALESCE($2, payment_intent_id),
			buyer_confirmed_at = COALESCE($3, buyer_confirmed_at),
			seller_confirmed_at = COALESCE($4, seller_confirmed_at),
			version = version + 1,
			updated_at = $5
		WHERE id = $6 AND version = $7 AND status = $8 AND (resolving_by IS NULL OR locked_at < $9)
	`, u.To, u.PaymentIntentID, u.BuyerConfirmedAt, u.SellerConfirmedAt, u.At, u.ID, u.ExpectedVersion, u.From, u.StaleBefore)
	if err != nil {
		return fmt.Errorf("escrow repository: update status: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}

// UpdateMeeting обновляет информацию о встрече; на статус и версию не влияет.
func (r *EscrowRepository) UpdateMeeting(ctx context.Context, id uuid.UUID, location *string, scheduledAt *time.Time, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE escrow_transactions SET meeting_location = $1, meeting_scheduled_at = $2, updated_at = $3 WHERE id = $4
	`, location, scheduledAt, now, id)
	if err != nil {
		return fmt.Errorf("escrow repository: update meeting: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrTransactionNotFound)
}

// Claim устанавливает отметку resolving_by/locked_at перед вызовом расчёта.
// Захват возможен, если отметки нет, она принадлежит тому же сотруднику или устарела (locked_at < staleBefore).
func (r *EscrowRepository) Claim(ctx context.Context, id uuid.UUID, expectedVersion int64, actorID uuid.UUID, now, staleBefore time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE escrow_transactions
		SET resolving_by = $1, locked_at = $2, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 AND (resolving_by IS NULL OR resolving_by = $1 OR locked_at < $5)
	`, actorID, now, id, expectedVersion, staleBefore)
	if err != nil {
		return fmt.Errorf("escrow repository: claim: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}

// ReleaseClaim снимает отметку, если она принадлежит сотруднику.
func (r *EscrowRepository) ReleaseClaim(ctx context.Context, id, actorID uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE escrow_transactions
		SET resolving_by = NULL, locked_at = NULL, version = version + 1, updated_at = $1
		WHERE id = $2 AND resolving_by = $3
	`, now, id, actorID)
	if err != nil {
		return fmt.Errorf("escrow repository: release claim: %w", err)
	}
	return nil
}

// SettlementUpdate поля сделки после успешного расчёта.
type SettlementUpdate struct {
	// From статус сделки на момент захвата; если он изменился, запись отклоняется.
	From              valueobject.EscrowStatus
	Status            valueobject.EscrowStatus
	Resolution        *valueobject.Resolution
	Notes             *string
	SettlementRef     string
	RefundedDelta     decimal.Decimal
	DisputeResolvedAt *time.Time
	BuyerConfirmedAt  *time.Time
	SellerConfirmedAt *time.Time
	At                time.Time
}

// FinalizeSettlement записывает результат расчёта и снимает отметку захвата.
func (r *EscrowRepository) FinalizeSettlement(ctx context.Context, id, actorID uuid.UUID, u SettlementUpdate) error {
	return finalizeSettlement(ctx, r.db, id, actorID, u)
}

func finalizeSettlement(ctx context.Context, q sqlx.ExecerContext, id, actorID uuid.UUID, u SettlementUpdate) error {
	res, err := q.ExecContext(ctx, `
		UPDATE escrow_transactions
		SET status = $1,
			resolution = COALESCE($2, resolution),
			resolution_notes = COALESCE($3, resolution_notes),
			settlement_ref = $4,
			refunded_amount = refunded_amount + $5,
			dispute_resolved_at = COALESCE($6, dispute_resolved_at),
			buyer_confirmed_at = COALESCE($7, buyer_confirmed_at),
			seller_confirmed_at = COALESCE($8, seller_confirmed_at),
			resolving_by = NULL,
			locked_at = NULL,
			version = version + 1,
			updated_at = $9
		WHERE id = $10 AND resolving_by = $11 AND status = $12
	`, u.Status, u.Resolution, u.Notes, u.SettlementRef, u.RefundedDelta, u.DisputeResolvedAt,
		u.BuyerConfirmedAt, u.SellerConfirmedAt, u.At, id, actorID, u.From)
	if err != nil {
		return fmt.Errorf("escrow repository: finalize settlement: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}

// markDisputed переводит сделку в спор, если её не держит живой захват расчёта.
func markDisputed(ctx context.Context, q sqlx.ExecerContext, id uuid.UUID, expectedVersion int64, from valueobject.EscrowStatus, reason string, at, staleBefore time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE escrow_transactions
		SET status = $1, dispute_reason = $2, dispute_created_at = $3, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5 AND status = $6 AND (resolving_by IS NULL OR locked_at < $7)
	`, valueobject.EscrowStatusDisputed, reason, at, id, expectedVersion, from, staleBefore)
	if err != nil {
		return fmt.Errorf("escrow repository: mark disputed: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}
