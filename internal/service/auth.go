package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
	"github.com/pribylovaa/go-online-store/pkg/log"
	"github.com/pribylovaa/go-online-store/pkg/redact"
)

// Политика сложности пароля: 8..20 символов, минимум одна буква,
// одна цифра и один спецсимвол.
const (
	passwordMinLen = 8
	passwordMaxLen = 20
)

// RegisterInput — данные регистрации нового пользователя.
type RegisterInput struct {
	Email    string
	Name     string
	Phone    string
	Password string
}

// normalizeEmail приводит email к канонической форме хранения.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return ErrWeakPassword
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasLetter || !hasDigit || !hasSpecial {
		return ErrWeakPassword
	}

	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// checkPassword — односторонняя проверка пароля против хэша.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// RegisterUser создаёт пользователя и выпускает стартовую пару токенов.
// Email нормализуется; роль нового пользователя всегда user.
func (s *Service) RegisterUser(ctx context.Context, input RegisterInput) (*models.User, *models.AuthTokens, error) {
	const op = "service/auth/RegisterUser"

	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return nil, nil, err
	}

	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, ErrEmailTaken
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := s.GenerateAuthTokens(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		"user_id", user.ID.String(),
		"email", redact.Email(user.Email),
	)

	return user, tokens, nil
}

// LoginUser проверяет пару email/пароль и выпускает пару токенов.
// Отсутствие пользователя и неверный пароль наружу неотличимы
// (ErrInvalidCredentials), чтобы не позволять перебор email.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*models.User, *models.AuthTokens, error) {
	const op = "service/auth/LoginUser"

	user, err := s.storage.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	if user.IsBanned {
		return nil, nil, ErrUserBanned
	}

	tokens, err := s.GenerateAuthTokens(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_logged_in", "user_id", user.ID.String())

	return user, tokens, nil
}

// AuthenticateToken проверяет access-токен и возвращает личность
// пользователя для контекста запроса. Помимо подписи проверяется,
// что субъект всё ещё существует; роль берётся из полезной нагрузки
// токена (окно устаревания равно TTL access-токена).
func (s *Service) AuthenticateToken(ctx context.Context, accessToken string) (*models.Identity, error) {
	const op = "service/auth/AuthenticateToken"

	claims, err := s.parseToken(accessToken)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != string(models.TokenTypeAccess) {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	if _, err := s.storage.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Identity{UserID: userID, Role: role}, nil
}

// Logout инвалидирует предъявленный refresh-токен. Семантика — поиск
// записи, а не валидация JWT: битый, просроченный или чужого типа токен
// наружу неотличим от отсутствующего (ErrTokenNotFound). Повторный
// логаут тем же токеном тоже возвращает ErrTokenNotFound: записи уже нет.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service/auth/Logout"

	record, err := s.VerifyToken(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return ErrTokenNotFound
		}

		return err
	}

	if err := s.dropToken(ctx, record.TokenHash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTokenNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_logged_out", "user_id", record.UserID.String())

	return nil
}

// RefreshTokens выполняет ротацию: проверяет refresh-токен, удаляет
// потреблённую запись и выпускает новую пару. Повторное предъявление
// того же refresh-токена гарантированно отвергается: удаление записи
// ровно по хэшу атомарно, второй конкурентный вызов получит not found.
// Любой отказ нормализуется в ErrInvalidToken.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	const op = "service/auth/RefreshTokens"

	record, err := s.VerifyToken(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Свежая пара минтится по текущему состоянию пользователя:
	// бан и смена роли вступают в силу на ротации.
	user, err := s.storage.UserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.IsBanned {
		return nil, ErrInvalidToken
	}

	if err := s.dropToken(ctx, record.TokenHash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := s.GenerateAuthTokens(ctx, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// ForgotPassword выпускает токен сброса и отправляет его владельцу email.
// Для неизвестного email возвращает ErrUserNotFound (404).
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "service/auth/ForgotPassword"

	reset, err := s.GenerateResetPasswordToken(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if s.mail == nil {
		log.From(ctx).Warn("password_reset_mailer_disabled",
			"email", redact.Email(email))
		return nil
	}

	if err := s.mail.SendPasswordReset(ctx, normalizeEmail(email), reset); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword завершает поток сброса: проверяет одноразовый токен,
// заменяет хэш пароля и выбрасывает все reset- и refresh-токены
// пользователя. Любой отказ схлопывается в ErrPasswordResetFailed,
// кроме невалидного нового пароля (это ошибка клиента, не токена).
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	const op = "service/auth/ResetPassword"

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	record, err := s.VerifyToken(ctx, resetToken, models.TokenTypeResetPassword)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenNotFound) {
			return ErrPasswordResetFailed
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPasswordResetFailed
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateUserPassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Токен одноразовый: после успешной смены пароля выбрасываем
	// все reset-токены пользователя и разлогиниваем активные сессии.
	if err := s.storage.DeleteTokensByUser(ctx, user.ID, models.TokenTypeResetPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteTokensByUser(ctx, user.ID, models.TokenTypeRefresh); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("password_reset_completed", "user_id", user.ID.String())

	return nil
}

// UserChangePassword меняет пароль самим пользователем: старый пароль
// проверяется односторонним сравнением bcrypt-хэша, шифруемых копий
// пароля сервис не хранит.
func (s *Service) UserChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service/auth/UserChangePassword"

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateUserPassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("password_changed", "user_id", user.ID.String())

	return nil
}
