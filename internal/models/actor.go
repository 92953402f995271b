package models

import "github.com/google/uuid"

// Роли из access токена. Покупатель и продавец определяются по сделке, а не по роли.
const (
	RoleUser     = "user"
	RoleAdmin    = "admin"
	RoleMediator = "mediator"
	RoleSystem   = "system"
)

// Actor пользователь или сервис, выполняющий операцию.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsStaff: администратор или медиатор.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleMediator
}

// IsSystem: внутренний сервис (например, процесс обнаружения мошенничества).
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// HasAnyRole проверяет принадлежность к одной из ролей.
func (a Actor) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// ValidRoles роли, которые принимает AuthMiddleware.
var ValidRoles = map[string]struct{}{
	RoleUser:     {},
	RoleAdmin:    {},
	RoleMediator: {},
	RoleSystem:   {},
}
