package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
	"github.com/pribylovaa/go-online-store/pkg/log"
)

// UpdateProfileInput — изменяемые профильные поля; nil означает
// «оставить как есть».
type UpdateProfileInput struct {
	Email *string
	Name  *string
	Phone *string
}

// ListUsers возвращает всех пользователей (админский список).
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "service/users/ListUsers"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// UserByID возвращает пользователя по ID.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service/users/UserByID"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUserProfile обновляет профильные поля пользователя.
// Смена email проверяется на занятость и на формат.
func (s *Service) UpdateUserProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	const op = "service/users/UpdateUserProfile"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}

		user.Email = email
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}

	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}

	user.UpdatedAt = time.Now().UTC()

	if err := s.storage.UpdateUserProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, ErrEmailTaken
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUserRole меняет роль пользователя (админская операция).
// Уже выпущенные access-токены несут старую роль до истечения TTL;
// новая роль попадает в токены на следующей ротации.
func (s *Service) UpdateUserRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	const op = "service/users/UpdateUserRole"

	if !role.Valid() {
		return ErrInvalidRole
	}

	if err := s.storage.UpdateUserRole(ctx, id, role); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_role_updated",
		"user_id", id.String(),
		"role", string(role),
	)

	return nil
}

// ToggleUserBan инвертирует флаг бана и возвращает новое значение.
// Забаненный пользователь не может залогиниться и обновить пару
// токенов; действующий access-токен доживает свой TTL.
func (s *Service) ToggleUserBan(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "service/users/ToggleUserBan"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrUserNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	banned := !user.IsBanned
	if err := s.storage.SetUserBanned(ctx, id, banned); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrUserNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if banned {
		// Сразу рвём возможность ротации.
		if err := s.storage.DeleteTokensByUser(ctx, id, models.TokenTypeRefresh); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.From(ctx).Info("user_ban_toggled",
		"user_id", id.String(),
		"banned", banned,
	)

	return banned, nil
}

// AdminChangeUserPassword заменяет пароль пользователя без проверки
// старого (админская операция).
func (s *Service) AdminChangeUserPassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	const op = "service/users/AdminChangeUserPassword"

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateUserPassword(ctx, id, passwordHash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("password_changed_by_admin", "user_id", id.String())

	return nil
}

// DeleteUser удаляет пользователя вместе со всеми его токенами.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const op = "service/users/DeleteUser"

	if err := s.storage.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	for _, typ := range []models.TokenType{models.TokenTypeRefresh, models.TokenTypeResetPassword} {
		if err := s.storage.DeleteTokensByUser(ctx, id, typ); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.From(ctx).Info("user_deleted", "user_id", id.String())

	return nil
}
