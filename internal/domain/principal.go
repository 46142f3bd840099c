package domain

import "strings"

// RoleAdmin - роль, которой разрешено менять статусы и читать чужие заказы.
const RoleAdmin = "admin"

// Principal - пользователь, уже проверенный шлюзом аутентификации.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// Authenticated сообщает, передан ли идентификатор пользователя.
func (p Principal) Authenticated() bool {
	return strings.TrimSpace(p.UserID) != ""
}

// IsAdmin сообщает, является ли пользователь администратором.
func (p Principal) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(p.Role), RoleAdmin)
}

// CanView разрешает чтение заказа владельцу и администратору.
func (p Principal) CanView(order Order) bool {
	return p.IsAdmin() || order.OwnedBy(p.UserID)
}
