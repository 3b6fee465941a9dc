package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя в магазине.
type Role string

const (
	// RoleUser — обычный покупатель.
	RoleUser Role = "user"
	// RoleAdmin — администратор бэк-офиса.
	RoleAdmin Role = "admin"
)

// Valid сообщает, входит ли роль в закрытый набор.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User — модель пользователя магазина.
//
// PasswordHash никогда не сериализуется наружу (json:"-"):
// хендлеры отдают пользователя как есть, защита на уровне модели.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsBanned     bool      `json:"isBanned"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity — пара {пользователь, роль}, которую мидлвар кладёт в контекст
// после проверки access-токена. Роль берётся из полезной нагрузки токена,
// а не из БД (окно устаревания равно TTL access-токена).
type Identity struct {
	UserID uuid.UUID
	Role   Role
}
