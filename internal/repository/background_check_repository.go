package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/repository/common"
)

const checkColumns = `id, user_id, check_type, status, provider_reference, notes, reviewed_by, expires_at,
	completed_at, created_at, updated_at`

var checkTable = common.Table{Name: "background_checks", Columns: checkColumns, NotFound: apperror.ErrBackgroundCheckNotFound}

type BackgroundCheckRepository struct {
	db *sqlx.DB
}

func NewBackgroundCheckRepository(db *sqlx.DB) *BackgroundCheckRepository {
	return &BackgroundCheckRepository{db: db}
}

func (r *BackgroundCheckRepository) Create(ctx context.Context, c *models.BackgroundCheck) error {
	query := `
		INSERT INTO background_checks (id, user_id, check_type, status, expires_at, created_at, updated_at)
		VALUES (:id, :user_id, :check_type, :status, :expires_at, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, c); err != nil {
		return fmt.Errorf("background check repository: create: %w", err)
	}
	return nil
}

func (r *BackgroundCheckRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BackgroundCheck, error) {
	return common.GetByID[models.BackgroundCheck](ctx, r.db, checkTable, id)
}

func (r *BackgroundCheckRepository) List(ctx context.Context, filter models.CheckFilter, page models.PageRequest) (models.Page[models.BackgroundCheck], error) {
	page = page.Normalize()
	cursor, err := common.DecodeCursor(page.Cursor)
	if err != nil {
		return models.Page[models.BackgroundCheck]{}, err
	}

	var q common.Query
	if filter.UserID != nil {
		q.Where(func(arg func(any) string) string { return "user_id = " + arg(*filter.UserID) })
	}
	if filter.Status != nil {
		q.Where(func(arg func(any) string) string { return "status = " + arg(*filter.Status) })
	}
	q.WhereCursor(cursor)

	query, args := q.Build("SELECT "+checkColumns+" FROM background_checks", page.Limit)
	var rows []models.BackgroundCheck
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.Page[models.BackgroundCheck]{}, fmt.Errorf("background check repository: list: %w", err)
	}
	return common.Paginate(rows, page.Limit, func(c models.BackgroundCheck) (time.Time, uuid.UUID) {
		return c.CreatedAt, c.ID
	}), nil
}

// UpdateStatus переводит проверку из u.From в u.To. completed_at ставится для завершающих статусов.
func (r *BackgroundCheckRepository) UpdateStatus(ctx context.Context, id uuid.UUID, u models.CheckUpdate) error {
	var completedAt *time.Time
	if u.To.IsTerminal() {
		completedAt = &u.At
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE background_checks
		SET status = $1, reviewed_by = $2, notes = COALESCE($3, notes),
			provider_reference = COALESCE($4, provider_reference), completed_at = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`, u.To, u.ReviewedBy, u.Notes, u.ProviderReference, completedAt, u.At, id, u.From)
	if err != nil {
		return fmt.Errorf("background check repository: update status: %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrConcurrentModification)
}
