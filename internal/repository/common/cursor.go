package common

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

// Cursor позиция keyset-пагинации: записи упорядочены по (created_at, id) по убыванию.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

var errInvalidCursor = apperror.New(apperror.ErrCodeValidation, "некорректный курсор пагинации")

// EncodeCursor кодирует позицию в непрозрачную строку.
func EncodeCursor(createdAt time.Time, id uuid.UUID) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor разбирает курсор; пустая строка означает первую страницу.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errInvalidCursor
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, errInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, errInvalidCursor
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, errInvalidCursor
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// Paginate отрезает лишнюю запись (запрашивается limit+1) и строит курсор следующей страницы.
func Paginate[T any](rows []T, limit int, key func(T) (time.Time, uuid.UUID)) models.Page[T] {
	page := models.Page[T]{Items: rows}
	if page.Items == nil {
		page.Items = []T{}
	}
	if len(rows) > limit {
		page.Items = rows[:limit]
		createdAt, id := key(rows[limit-1])
		page.NextCursor = EncodeCursor(createdAt, id)
	}
	return page
}

// Query накапливает условия WHERE и аргументы, нумеруя плейсхолдеры по порядку.
type Query struct {
	conds []string
	args  []any
}

// Arg добавляет аргумент и возвращает его плейсхолдер.
func (q *Query) Arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// Where добавляет условие; build получает функцию выдачи плейсхолдеров.
func (q *Query) Where(build func(arg func(any) string) string) {
	q.conds = append(q.conds, build(q.Arg))
}

// WhereCursor добавляет keyset-условие для курсора.
func (q *Query) WhereCursor(c *Cursor) {
	if c == nil {
		return
	}
	q.Where(func(arg func(any) string) string {
		return "(created_at, id) < (" + arg(c.CreatedAt) + ", " + arg(c.ID) + ")"
	})
}

// Build возвращает SQL с WHERE, сортировкой и лимитом limit+1.
func (q *Query) Build(selectFrom string, limit int) (string, []any) {
	sql := selectFrom
	if len(q.conds) > 0 {
		sql += " WHERE " + strings.Join(q.conds, " AND ")
	}
	sql += " ORDER BY created_at DESC, id DESC LIMIT " + q.Arg(limit+1)
	return sql, q.args
}
