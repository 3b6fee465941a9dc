package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

func TestValidatePassword_Policy(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"ok", "Passw0rd!", nil},
		{"empty", "", ErrEmptyPassword},
		{"too short", "aB1!", ErrWeakPassword},
		{"too long", "aB1!aB1!aB1!aB1!aB1!x", ErrWeakPassword},
		{"no digit", "Password!", ErrWeakPassword},
		{"no letter", "12345678!", ErrWeakPassword},
		{"no special", "Passw0rd1", ErrWeakPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRegisterUser_OK(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	var saved *models.User
	mockSt.EXPECT().
		SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, user *models.User) error {
			saved = user
			return nil
		})
	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)

	user, tokens, err := svc.RegisterUser(context.Background(), RegisterInput{
		Email:    " User@Example.Com ",
		Password: "Passw0rd!",
	})
	require.NoError(t, err)
	require.NotNil(t, tokens)

	// Email нормализован, роль user, пароль сохранён только как bcrypt-хэш.
	require.Equal(t, "user@example.com", saved.Email)
	require.Equal(t, models.RoleUser, user.Role)
	require.NotEqual(t, "Passw0rd!", saved.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("Passw0rd!")))
}

func TestRegisterUser_EmailTaken(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	mockSt.EXPECT().
		SaveUser(gomock.Any(), gomock.Any()).
		Return(fmtWrap(storage.ErrAlreadyExists))

	_, _, err := svc.RegisterUser(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "Passw0rd!",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_InvalidEmail(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Password: "Passw0rd!",
	})
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestLoginUser_EnumerationResistance(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	hash := mustHashPW(t, "Passw0rd!")

	// Неизвестный email и неверный пароль дают одну и ту же ошибку.
	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, fmtWrap(storage.ErrNotFound))

	_, _, errUnknown := svc.LoginUser(context.Background(), "ghost@example.com", "Passw0rd!")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uid, Email: "user@example.com", PasswordHash: hash, Role: models.RoleUser}, nil)

	_, _, errWrongPW := svc.LoginUser(context.Background(), "user@example.com", "WrongPassw0rd!")
	require.ErrorIs(t, errWrongPW, ErrInvalidCredentials)

	require.Equal(t, errUnknown, errWrongPW)
}

func TestLoginUser_OK_NoHashInResponse(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	hash := mustHashPW(t, "Passw0rd!")

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uid, Email: "user@example.com", PasswordHash: hash, Role: models.RoleUser}, nil)
	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)

	user, tokens, err := svc.LoginUser(context.Background(), "user@example.com", "Passw0rd!")
	require.NoError(t, err)
	require.Equal(t, uid, user.ID)
	require.NotEmpty(t, tokens.Access.Token)
	require.NotEmpty(t, tokens.Refresh.Token)
}

func TestLoginUser_Banned(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	hash := mustHashPW(t, "Passw0rd!")

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "banned@example.com").
		Return(&models.User{ID: uuid.New(), Email: "banned@example.com", PasswordHash: hash, Role: models.RoleUser, IsBanned: true}, nil)

	_, _, err := svc.LoginUser(context.Background(), "banned@example.com", "Passw0rd!")
	require.ErrorIs(t, err, ErrUserBanned)
}

func TestLogout_ThenReplay_NotFound(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	record := &models.Token{
		TokenHash: hashToken(signed),
		UserID:    uid,
		Type:      models.TokenTypeRefresh,
		ExpiresAt: now.Add(time.Hour),
	}

	gomock.InOrder(
		mockSt.EXPECT().TokenByHash(gomock.Any(), record.TokenHash).Return(record, nil),
		mockSt.EXPECT().DeleteToken(gomock.Any(), record.TokenHash).Return(nil),
		// Повторный логаут: записи уже нет.
		mockSt.EXPECT().TokenByHash(gomock.Any(), record.TokenHash).Return(nil, fmtWrap(storage.ErrNotFound)),
	)

	require.NoError(t, svc.Logout(context.Background(), signed))
	require.ErrorIs(t, svc.Logout(context.Background(), signed), ErrTokenNotFound)
}

func TestLogout_GarbageToken_NotFound(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	// Логаут — поиск записи: строка, которой нет в хранилище,
	// даёт not found, а не invalid token.
	require.ErrorIs(t, svc.Logout(context.Background(), "not-a-jwt"), ErrTokenNotFound)
}

func TestLogout_WrongTypeToken_NotFound(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	// reset-токен нельзя предъявить на логаут: для потока logout
	// такой записи не существует.
	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeResetPassword, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Logout(context.Background(), signed), ErrTokenNotFound)
}

func TestLogout_ExpiredToken_NotFound(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Logout(context.Background(), signed), ErrTokenNotFound)
}

func TestRefreshTokens_RotatesAndReplayFails(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	record := &models.Token{
		TokenHash: hashToken(signed),
		UserID:    uid,
		Role:      models.RoleUser,
		Type:      models.TokenTypeRefresh,
		ExpiresAt: now.Add(time.Hour),
	}
	user := &models.User{ID: uid, Email: "user@example.com", Role: models.RoleUser}

	gomock.InOrder(
		mockSt.EXPECT().TokenByHash(gomock.Any(), record.TokenHash).Return(record, nil),
		mockSt.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil),
		mockSt.EXPECT().DeleteToken(gomock.Any(), record.TokenHash).Return(nil),
		mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil),
		// Повтор того же refresh: запись уже удалена ротацией.
		mockSt.EXPECT().TokenByHash(gomock.Any(), record.TokenHash).Return(nil, fmtWrap(storage.ErrNotFound)),
	)

	pair, err := svc.RefreshTokens(context.Background(), signed)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access.Token)
	require.NotEqual(t, signed, pair.Refresh.Token)

	_, err = svc.RefreshTokens(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokens_BannedUser(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	mockSt.EXPECT().
		TokenByHash(gomock.Any(), hashToken(signed)).
		Return(&models.Token{
			TokenHash: hashToken(signed),
			UserID:    uid,
			Type:      models.TokenTypeRefresh,
			ExpiresAt: now.Add(time.Hour),
		}, nil)
	mockSt.EXPECT().
		UserByID(gomock.Any(), uid).
		Return(&models.User{ID: uid, Role: models.RoleUser, IsBanned: true}, nil)

	_, err = svc.RefreshTokens(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokens_GarbageToken(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	_, err := svc.RefreshTokens(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPassword_SingleUse_PurgesTokens(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeResetPassword, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	record := &models.Token{
		TokenHash: hashToken(signed),
		UserID:    uid,
		Type:      models.TokenTypeResetPassword,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	user := &models.User{ID: uid, Email: "user@example.com", Role: models.RoleUser}

	var storedHash string
	gomock.InOrder(
		mockSt.EXPECT().TokenByHash(gomock.Any(), record.TokenHash).Return(record, nil),
		mockSt.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil),
		mockSt.EXPECT().
			UpdateUserPassword(gomock.Any(), uid, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, hash string) error {
				storedHash = hash
				return nil
			}),
		// Все reset-токены пользователя выбрасываются, активные сессии рвутся.
		mockSt.EXPECT().DeleteTokensByUser(gomock.Any(), uid, models.TokenTypeResetPassword).Return(nil),
		mockSt.EXPECT().DeleteTokensByUser(gomock.Any(), uid, models.TokenTypeRefresh).Return(nil),
		// Повторное использование того же токена: записи больше нет.
		mockSt.EXPECT().TokenByHash(gomock.Any(), record.TokenHash).Return(nil, fmtWrap(storage.ErrNotFound)),
	)

	require.NoError(t, svc.ResetPassword(context.Background(), signed, "NewPassw0rd!"))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("NewPassw0rd!")))

	err = svc.ResetPassword(context.Background(), signed, "NewPassw0rd!")
	require.ErrorIs(t, err, ErrPasswordResetFailed)
}

func TestResetPassword_GarbageToken(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	err := svc.ResetPassword(context.Background(), "garbage", "NewPassw0rd!")
	require.ErrorIs(t, err, ErrPasswordResetFailed)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, fmtWrap(storage.ErrNotFound))

	err := svc.ForgotPassword(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserChangePassword_VerifiesOldWithBcrypt(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	hash := mustHashPW(t, "OldPassw0rd!")
	user := &models.User{ID: uid, PasswordHash: hash, Role: models.RoleUser}

	t.Run("wrong old password", func(t *testing.T) {
		mockSt.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil)

		err := svc.UserChangePassword(context.Background(), uid, "WrongOld1!", "NewPassw0rd!")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("ok", func(t *testing.T) {
		mockSt.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil)
		mockSt.EXPECT().UpdateUserPassword(gomock.Any(), uid, gomock.Any()).Return(nil)

		err := svc.UserChangePassword(context.Background(), uid, "OldPassw0rd!", "NewPassw0rd!")
		require.NoError(t, err)
	})
}

func TestAuthenticateToken_SubjectMustExist(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleAdmin, models.TokenTypeAccess, now, now.Add(time.Hour))
	require.NoError(t, err)

	t.Run("user exists", func(t *testing.T) {
		mockSt.EXPECT().
			UserByID(gomock.Any(), uid).
			Return(&models.User{ID: uid, Role: models.RoleAdmin}, nil)

		identity, err := svc.AuthenticateToken(context.Background(), signed)
		require.NoError(t, err)
		require.Equal(t, uid, identity.UserID)
		// Роль берётся из токена.
		require.Equal(t, models.RoleAdmin, identity.Role)
	})

	t.Run("user deleted", func(t *testing.T) {
		mockSt.EXPECT().
			UserByID(gomock.Any(), uid).
			Return(nil, fmtWrap(storage.ErrNotFound))

		_, err := svc.AuthenticateToken(context.Background(), signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthenticateToken_RefreshRejected(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	// refresh нельзя предъявить как access.
	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.AuthenticateToken(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_StorageError(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	mockSt.EXPECT().
		TokenByHash(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("db down"))

	err = svc.Logout(context.Background(), signed)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTokenNotFound)
}
