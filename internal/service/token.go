package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
	"github.com/pribylovaa/go-online-store/pkg/log"
)

// authClaims — полезная нагрузка всех выпускаемых токенов.
// Помимо RegisteredClaims несёт роль (снэпшот на момент выпуска)
// и тип токена; тип проверяется при верификации, чтобы refresh
// нельзя было предъявить как access и наоборот.
type authClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// hashToken возвращает ключ персистентной записи о токене:
// base64url(sha256(signed)). В БД и кэше сырой токен не хранится.
func hashToken(signed string) string {
	sum := sha256.Sum256([]byte(signed))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// generateToken выпускает подписанный HS256-JWT для пользователя.
// jti — случайный UUID: гарантирует уникальность подписанной строки
// даже при выпуске двух одинаковых по claims токенов в одну секунду.
func (s *Service) generateToken(userID uuid.UUID, role models.Role, typ models.TokenType, now, expiresAt time.Time) (string, error) {
	const op = "service/token/generateToken"

	claims := authClaims{
		Role:      string(role),
		TokenType: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// parseToken валидирует подпись/сроки и возвращает claims.
// Любой дефект (формат, подпись, exp, iss) схлопывается в ErrInvalidToken.
func (s *Service) parseToken(signed string) (*authClaims, error) {
	claims := &authClaims{}

	_, err := jwt.ParseWithClaims(signed, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// saveToken персистит запись о выпущенном refresh/reset-токене
// и прогревает кэш (ошибка кэша не фатальна).
func (s *Service) saveToken(ctx context.Context, signed string, userID uuid.UUID, role models.Role, typ models.TokenType, expiresAt time.Time) error {
	const op = "service/token/saveToken"

	token := &models.Token{
		TokenHash: hashToken(signed),
		UserID:    userID,
		Role:      role,
		Type:      typ,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.storage.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.tcache != nil {
		if ttl := time.Until(token.ExpiresAt); ttl > 0 {
			if err := s.tcache.Set(ctx, token, ttl); err != nil {
				log.From(ctx).Warn("token_cache_set_failed", "err", err.Error())
			}
		}
	}

	return nil
}

// tokenRecord ищет запись о токене: сперва в кэше, затем в БД.
func (s *Service) tokenRecord(ctx context.Context, hash string) (*models.Token, error) {
	if s.tcache != nil {
		token, ok, err := s.tcache.Get(ctx, hash)
		if err != nil {
			log.From(ctx).Warn("token_cache_get_failed", "err", err.Error())
		} else if ok {
			return token, nil
		}
	}

	return s.storage.TokenByHash(ctx, hash)
}

// dropToken удаляет ровно одну запись о токене (ротация/логаут)
// и инвалидирует кэш.
func (s *Service) dropToken(ctx context.Context, hash string) error {
	if s.tcache != nil {
		if err := s.tcache.Delete(ctx, hash); err != nil {
			log.From(ctx).Warn("token_cache_delete_failed", "err", err.Error())
		}
	}

	return s.storage.DeleteToken(ctx, hash)
}

// VerifyToken проверяет refresh/reset-токен: подпись и сроки JWT,
// затем наличие персистентной записи ожидаемого типа для того же
// пользователя. Отсутствие записи (ротация состоялась, логаут,
// blacklist) — ErrTokenNotFound; дефект самого токена — ErrInvalidToken.
func (s *Service) VerifyToken(ctx context.Context, signed string, typ models.TokenType) (*models.Token, error) {
	const op = "service/token/VerifyToken"

	claims, err := s.parseToken(signed)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != string(typ) {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	record, err := s.tokenRecord(ctx, hashToken(signed))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTokenNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Запись обязана соответствовать предъявленному токену.
	if record.Type != typ || record.UserID != userID || record.Blacklisted {
		return nil, ErrTokenNotFound
	}

	if !record.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrTokenNotFound
	}

	return record, nil
}

// GenerateAuthTokens выпускает пару access+refresh; refresh персистится.
func (s *Service) GenerateAuthTokens(ctx context.Context, userID uuid.UUID, role models.Role) (*models.AuthTokens, error) {
	const op = "service/token/GenerateAuthTokens"

	now := time.Now().UTC()
	accessExpires := now.Add(s.cfg.AccessTokenTTL)
	refreshExpires := now.Add(s.cfg.RefreshTokenTTL)

	access, err := s.generateToken(userID, role, models.TokenTypeAccess, now, accessExpires)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.generateToken(userID, role, models.TokenTypeRefresh, now, refreshExpires)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.saveToken(ctx, refresh, userID, role, models.TokenTypeRefresh, refreshExpires); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthTokens{
		Access:  models.TokenInfo{Token: access, ExpiresAt: accessExpires},
		Refresh: models.TokenInfo{Token: refresh, ExpiresAt: refreshExpires},
	}, nil
}

// GenerateResetPasswordToken выпускает одноразовый токен сброса пароля
// для владельца email. Отсутствие пользователя наружу не раскрывается
// (см. ForgotPassword).
func (s *Service) GenerateResetPasswordToken(ctx context.Context, email string) (string, error) {
	const op = "service/token/GenerateResetPasswordToken"

	user, err := s.storage.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrUserNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	expires := now.Add(s.cfg.ResetTokenTTL)

	reset, err := s.generateToken(user.ID, user.Role, models.TokenTypeResetPassword, now, expires)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.saveToken(ctx, reset, user.ID, user.Role, models.TokenTypeResetPassword, expires); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return reset, nil
}
