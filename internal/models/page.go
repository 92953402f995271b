package models

// Page страница результатов с курсором на следующую.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest параметры курсорной пагинации.
type PageRequest struct {
	Cursor string
	Limit  int
}

// Normalize приводит лимит к допустимому диапазону.
func (p PageRequest) Normalize() PageRequest {
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
