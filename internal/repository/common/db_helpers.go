package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Table описывает таблицу для типовых выборок по первичному ключу.
type Table struct {
	Name     string
	Columns  string
	NotFound error
}

// GetByID читает строку по id; отсутствие строки превращается в t.NotFound.
func GetByID[T any](ctx context.Context, q sqlx.QueryerContext, t Table, id uuid.UUID) (*T, error) {
	var row T
	if err := sqlx.GetContext(ctx, q, &row, "SELECT "+t.Columns+" FROM "+t.Name+" WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, t.NotFound
		}
		return nil, fmt.Errorf("%s: get %s: %w", t.Name, id, err)
	}
	return &row, nil
}

// ExpectAffected возвращает errOnZero, если запрос не изменил ни одной строки.
// Так проверяются compare-and-swap обновления по статусу и версии.
func ExpectAffected(res sql.Result, errOnZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errOnZero
	}
	return nil
}

// IsUniqueViolation распознаёт нарушение уникального индекса (Postgres и SQLite).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// WithTransaction выполняет fn атомарно: любая ошибка или паника откатывает все изменения.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
