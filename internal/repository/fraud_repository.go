package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/repository/common"
)

const fraudColumns = `id, user_id, transaction_id, detection_method, risk_score, details, status, reviewed_by,
	review_notes, reviewed_at, created_at`

var fraudTable = common.Table{Name: "fraud_events", Columns: fraudColumns, NotFound: apperror.ErrFraudEventNotFound}

type FraudRepository struct {
	db *sqlx.DB
}

func NewFraudRepository(db *sqlx.DB) *FraudRepository {
	return &FraudRepository{db: db}
}

func (r *FraudRepository) Create(ctx context.Context, e *models.FraudEvent) error {
	query := `
		INSERT INTO fraud_events (id, user_id, transaction_id, detection_method, risk_score, details, status, created_at)
		VALUES (:id, :user_id, :transaction_id, :detection_method, :risk_score, :details, :status, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, e); err != nil {
		return fmt.Errorf("fraud repository: create: %w", err)
	}
	return nil
}

func (r *FraudRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FraudEvent, error) {
	return common.GetByID[models.FraudEvent](ctx, r.db, fraudTable, id)
}

// List фильтрует по статусу и уровню риска; уровень переводится в диапазон оценок.
func (r *FraudRepository) List(ctx context.Context, filter models.FraudFilter, page models.PageRequest) (models.Page[models.FraudEvent], error) {
	page = page.Normalize()
	cursor, err := common.DecodeCursor(page.Cursor)
	if err != nil {
		return models.Page[models.FraudEvent]{}, err
	}

	var q common.Query
	if filter.Status != nil {
		q.Where(func(arg func(any) string) string { return "status = " + arg(*filter.Status) })
	}
	if filter.Band != nil {
		minScore, maxScore := filter.Band.Bounds()
		q.Where(func(arg func(any) string) string { return "risk_score >= " + arg(minScore) })
		if maxScore != nil {
			q.Where(func(arg func(any) string) string { return "risk_score < " + arg(*maxScore) })
		}
	}
	q.WhereCursor(cursor)

	query, args := q.Build("SELECT "+fraudColumns+" FROM fraud_events", page.Limit)
	var rows []models.FraudEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.Page[models.FraudEvent]{}, fmt.Errorf("fraud repository: list: %w", err)
	}
	return common.Paginate(rows, page.Limit, func(e models.FraudEvent) (time.Time, uuid.UUID) {
		return e.CreatedAt, e.ID
	}), nil
}

// Review фиксирует решение администратора по событию (CAS по статусу).
func (r *FraudRepository) Review(ctx context.Context, id uuid.UUID, from, to valueobject.FraudStatus, reviewerID uuid.UUID, notes *string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fraud_events SET status = $1, reviewed_by = $2, review_notes = $3, reviewed_at = $4
		WHERE id = $5 AND status = $6
	`, to, reviewerID, notes, at, id, from)
	if err != nil {
		return fmt.Errorf("fraud repository: review: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}
