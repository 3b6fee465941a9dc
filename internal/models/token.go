package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenType — тип выпускаемого токена (закрытый набор).
type TokenType string

const (
	// TokenTypeAccess — короткоживущий токен доступа; не персистится.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh — долгоживущий токен обновления; хранится на сервере.
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeResetPassword — одноразовый токен сброса пароля.
	TokenTypeResetPassword TokenType = "reset-password"
)

// Valid сообщает, входит ли тип в закрытый набор.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeResetPassword:
		return true
	}

	return false
}

// Token — запись о выпущенном refresh/reset-токене.
//
// В БД хранится только sha256-хэш подписанной строки; сам токен
// клиент предъявляет в исходном виде. Роль фиксируется на момент
// выпуска (снэпшот) и используется при ротации пары.
type Token struct {
	TokenHash   string
	UserID      uuid.UUID
	Role        Role
	Type        TokenType
	ExpiresAt   time.Time
	Blacklisted bool
	CreatedAt   time.Time
}

// TokenInfo — подписанный токен вместе с моментом истечения.
type TokenInfo struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires"`
}

// AuthTokens — пара access+refresh, выдаваемая при регистрации,
// логине и ротации.
type AuthTokens struct {
	Access  TokenInfo `json:"access"`
	Refresh TokenInfo `json:"refresh"`
}
