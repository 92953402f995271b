package repository

import (
	"context"
	"database/sql"
	"errors"
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

const disputeColumns = `id, case_number, transaction_id, opened_by, reason, status, resolution, resolution_notes,
	refund_amount, resolved_by, settlement_ref, evidence, created_at, updated_at, resolved_at`

var disputeTable = common.Table{Name: "disputes", Columns: disputeColumns, NotFound: apperror.ErrDisputeNotFound}

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// OpenDispute параметры открытия спора.
type OpenDispute struct {
	Dispute         *models.Dispute
	ExpectedVersion int64
	From            valueobject.EscrowStatus
	// StaleBefore захват расчёта старше этого момента считается брошенным.
	StaleBefore time.Time
}

// Open переводит сделку в disputed и создаёт запись спора в одной транзакции.
// Если по сделке уже есть активный спор, возвращает ErrActiveDisputeExists.
func (r *DisputeRepository) Open(ctx context.Context, o OpenDispute) error {
	d := o.Dispute
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := markDisputed(ctx, tx, d.TransactionID, o.ExpectedVersion, o.From, d.Reason, d.CreatedAt, o.StaleBefore); err != nil {
			return err
		}
		query := `
			INSERT INTO disputes (id, case_number, transaction_id, opened_by, reason, status, evidence, created_at, updated_at)
			VALUES (:id, :case_number, :transaction_id, :opened_by, :reason, :status, :evidence, :created_at, :updated_at)
		`
		if _, err := sqlx.NamedExecContext(ctx, tx, query, d); err != nil {
			if common.IsUniqueViolation(err) {
				return apperror.ErrActiveDisputeExists
			}
			return fmt.Errorf("dispute repository: create: %w", err)
		}
		return nil
	})
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, disputeTable, id)
}

// GetActiveByTransaction возвращает открытый спор или спор на медиации.
func (r *DisputeRepository) GetActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE transaction_id = $1 AND status IN ('open', 'mediation')
	`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get active: %w", err)
	}
	return &d, nil
}

// GetLatestByTransaction возвращает последний спор по сделке независимо от статуса.
func (r *DisputeRepository) GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE transaction_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get latest: %w", err)
	}
	return &d, nil
}

func (r *DisputeRepository) List(ctx context.Context, status *valueobject.DisputeStatus, page models.PageRequest) (models.Page[models.Dispute], error) {
	page = page.Normalize()
	cursor, err := common.DecodeCursor(page.Cursor)
	if err != nil {
		return models.Page[models.Dispute]{}, err
	}

	var q common.Query
	if status != nil {
		q.Where(func(arg func(any) string) string { return "status = " + arg(*status) })
	}
	q.WhereCursor(cursor)

	query, args := q.Build("SELECT "+disputeColumns+" FROM disputes", page.Limit)
	var rows []models.Dispute
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.Page[models.Dispute]{}, fmt.Errorf("dispute repository: list: %w", err)
	}
	return common.Paginate(rows, page.Limit, func(d models.Dispute) (time.Time, uuid.UUID) {
		return d.CreatedAt, d.ID
	}), nil
}

// MarkMediation переводит открытый спор на медиацию; сделка остаётся в disputed.
func (r *DisputeRepository) MarkMediation(ctx context.Context, id uuid.UUID, notes string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = $1, resolution = $2, resolution_notes = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, valueobject.DisputeStatusMediation, valueobject.ResolutionMediation, notes, at, id, valueobject.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: mark mediation: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrInvalidTransition)
}

// ResolveDispute итоговые данные по спору после расчёта.
type ResolveDispute struct {
	DisputeID     uuid.UUID
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Resolution    valueobject.Resolution
	Notes         string
	RefundAmount  decimal.NullDecimal
	Escrow        SettlementUpdate
}

// Resolve записывает итог расчёта в сделку и закрывает спор в одной транзакции.
// Обновление сделки разрешено только сотруднику, удерживающему отметку захвата.
func (r *DisputeRepository) Resolve(ctx context.Context, p ResolveDispute) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := finalizeSettlement(ctx, tx, p.TransactionID, p.ActorID, p.Escrow); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE disputes
			SET status = $1, resolution = $2, resolution_notes = $3, refund_amount = $4, resolved_by = $5,
				settlement_ref = $6, resolved_at = $7, updated_at = $7
			WHERE id = $8 AND status IN ('open', 'mediation')
		`, valueobject.DisputeStatusResolved, p.Resolution, p.Notes, p.RefundAmount, p.ActorID,
			p.Escrow.SettlementRef, p.Escrow.At, p.DisputeID)
		if err != nil {
			return fmt.Errorf("dispute repository: resolve: %w", err)
		}
		return common.ExpectAffected(res, apperror.ErrInvalidTransition)
	})
}

// AddEvidence добавляет путь к файлу доказательства в активный спор.
func (r *DisputeRepository) AddEvidence(ctx context.Context, id uuid.UUID, path string, at time.Time) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var d models.Dispute
		err := tx.GetContext(ctx, &d, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrDisputeNotFound
		}
		if err != nil {
			return fmt.Errorf("dispute repository: load evidence: %w", err)
		}
		if !d.Status.IsActive() {
			return apperror.ErrInvalidTransition
		}

		evidence := append(models.StringList{}, d.Evidence...)
		evidence = append(evidence, path)
		res, err := tx.ExecContext(ctx, `
			UPDATE disputes SET evidence = $1, updated_at = $2 WHERE id = $3 AND updated_at = $4
		`, evidence, at, id, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("dispute repository: add evidence: %w", err)
		}
		return common.ExpectAffected(res, apperror.ErrConcurrentModification)
	})
}
