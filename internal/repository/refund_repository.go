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

const refundColumns = `id, transaction_id, requester_id, reason, refund_amount, refund_type, status, admin_notes,
	processed_by, reviewed_at, processor_ref, processed_at, created_at, updated_at`

var refundTable = common.Table{Name: "refund_requests", Columns: refundColumns, NotFound: apperror.ErrRefundRequestNotFound}

type RefundRepository struct {
	db *sqlx.DB
}

func NewRefundRepository(db *sqlx.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, req *models.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (id, transaction_id, requester_id, reason, refund_amount, refund_type, status,
			created_at, updated_at)
		VALUES (:id, :transaction_id, :requester_id, :reason, :refund_amount, :refund_type, :status,
			:created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, req); err != nil {
		return fmt.Errorf("refund repository: create: %w", err)
	}
	return nil
}

func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	return common.GetByID[models.RefundRequest](ctx, r.db, refundTable, id)
}

// List возвращает очередь запросов на возврат с фильтром по статусу и сделке.
func (r *RefundRepository) List(ctx context.Context, filter models.RefundFilter, page models.PageRequest) (models.Page[models.RefundRequest], error) {
	page = page.Normalize()
	cursor, err := common.DecodeCursor(page.Cursor)
	if err != nil {
		return models.Page[models.RefundRequest]{}, err
	}

	var q common.Query
	if filter.Status != nil {
		q.Where(func(arg func(any) string) string { return "status = " + arg(*filter.Status) })
	}
	if filter.TransactionID != nil {
		q.Where(func(arg func(any) string) string { return "transaction_id = " + arg(*filter.TransactionID) })
	}
	q.WhereCursor(cursor)

	query, args := q.Build("SELECT "+refundColumns+" FROM refund_requests", page.Limit)
	var rows []models.RefundRequest
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.Page[models.RefundRequest]{}, fmt.Errorf("refund repository: list: %w", err)
	}
	return common.Paginate(rows, page.Limit, func(req models.RefundRequest) (time.Time, uuid.UUID) {
		return req.CreatedAt, req.ID
	}), nil
}

// ListByTransaction возвращает все запросы по сделке, новые первыми.
func (r *RefundRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.RefundRequest, error) {
	rows := []models.RefundRequest{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+refundColumns+` FROM refund_requests
		WHERE transaction_id = $1
		ORDER BY created_at DESC, id DESC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("refund repository: list by transaction: %w", err)
	}
	return rows, nil
}

// Decide переводит запрос из d.From в d.To; при гонке возвращает ErrConcurrentModification.
func (r *RefundRepository) Decide(ctx context.Context, id uuid.UUID, d models.RefundDecision) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = $1, admin_notes = $2, processed_by = $3, reviewed_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6
	`, d.To, d.AdminNotes, d.ProcessedBy, d.At, id, d.From)
	if err != nil {
		return fmt.Errorf("refund repository: decide: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}

// MarkProcessed фиксирует исполнение возврата процессором.
func (r *RefundRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processorRef string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = $1, processor_ref = $2, processed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`, valueobject.RefundStatusProcessed, processorRef, at, id, valueobject.RefundStatusApproved)
	if err != nil {
		return fmt.Errorf("refund repository: mark processed: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}

// SumProcessed сумма исполненных возвратов по сделке.
func (r *RefundRepository) SumProcessed(ctx context.Context, transactionID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(refund_amount), 0) FROM refund_requests WHERE transaction_id = $1 AND status = $2
	`, transactionID, valueobject.RefundStatusProcessed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("refund repository: sum processed: %w", err)
	}
	return sum, nil
}
