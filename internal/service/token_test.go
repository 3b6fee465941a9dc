package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-online-store/internal/config"
	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
	"github.com/pribylovaa/go-online-store/mocks"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ResetTokenTTL:   10 * time.Minute,
		Issuer:          "online-store",
	}
}

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{DefaultPageSize: 10, MaxPageSize: 100}
}

func newServiceWithMock(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockSt := mocks.NewMockStorage(ctrl)
	svc := New(mockSt, testAuthCfg(), testLimits())
	return svc, mockSt, ctrl
}

// fmtWrap - оборачивает ошибку из storage, имитируя fmt.Errorf("%w").
func fmtWrap(err error) error { return fmt.Errorf("wrapped: %w", err) }

func TestGenerateToken_AndParse_OK(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeAccess, now, now.Add(15*time.Minute))
	require.NoError(t, err)

	claims, err := svc.parseToken(signed)
	require.NoError(t, err)
	require.Equal(t, uid.String(), claims.Subject)
	require.Equal(t, string(models.RoleUser), claims.Role)
	require.Equal(t, string(models.TokenTypeAccess), claims.TokenType)
}

func TestGenerateToken_UniqueSignedStrings(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()
	expires := now.Add(time.Hour)

	// Одинаковые claims в одну секунду — jti обязан развести подписи.
	first, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, expires)
	require.NoError(t, err)

	second, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, expires)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestParseToken_WrongAlg_WrongIssuer_BadSignature(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	secret := []byte(testAuthCfg().JWTSecret)
	uid := uuid.New()
	now := time.Now().UTC()

	t.Run("wrong issuer", func(t *testing.T) {
		claims := jwt.MapClaims{
			"role": "user",
			"type": "access",
			"iss":  "another-issuer",
			"sub":  uid.String(),
			"exp":  now.Add(time.Hour).Unix(),
			"iat":  now.Unix(),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)

		_, err = svc.parseToken(signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		claims := jwt.MapClaims{
			"role": "user",
			"type": "access",
			"iss":  testAuthCfg().Issuer,
			"sub":  uid.String(),
			"exp":  now.Add(time.Hour).Unix(),
			"iat":  now.Unix(),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		_, err = svc.parseToken(signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.parseToken("not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestParseToken_Expired(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeAccess, now.Add(-time.Hour), now.Add(-time.Minute))
	require.NoError(t, err)

	_, err = svc.parseToken(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateAuthTokens_PersistsRefreshHashOnly(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()

	var saved *models.Token
	mockSt.EXPECT().
		SaveToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, token *models.Token) error {
			saved = token
			return nil
		})

	pair, err := svc.GenerateAuthTokens(context.Background(), uid, models.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access.Token)
	require.NotEmpty(t, pair.Refresh.Token)

	// Персистится только refresh и только в виде sha256-хэша.
	sum := sha256.Sum256([]byte(pair.Refresh.Token))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), saved.TokenHash)
	require.Equal(t, uid, saved.UserID)
	require.Equal(t, models.TokenTypeRefresh, saved.Type)
	require.WithinDuration(t, time.Now().UTC().Add(svc.cfg.RefreshTokenTTL), saved.ExpiresAt, 5*time.Second)
}

func TestVerifyToken_Success(t *testing.T) {
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
			Role:      models.RoleUser,
			Type:      models.TokenTypeRefresh,
			ExpiresAt: now.Add(time.Hour),
		}, nil)

	record, err := svc.VerifyToken(context.Background(), signed, models.TokenTypeRefresh)
	require.NoError(t, err)
	require.Equal(t, uid, record.UserID)
}

func TestVerifyToken_TypeMismatch(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	// access предъявлен как refresh.
	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeAccess, now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.VerifyToken(context.Background(), signed, models.TokenTypeRefresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_NoRecord(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	mockSt.EXPECT().
		TokenByHash(gomock.Any(), gomock.Any()).
		Return(nil, fmtWrap(storage.ErrNotFound))

	_, err = svc.VerifyToken(context.Background(), signed, models.TokenTypeRefresh)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyToken_BlacklistedRecord(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	mockSt.EXPECT().
		TokenByHash(gomock.Any(), gomock.Any()).
		Return(&models.Token{
			TokenHash:   hashToken(signed),
			UserID:      uid,
			Type:        models.TokenTypeRefresh,
			ExpiresAt:   now.Add(time.Hour),
			Blacklisted: true,
		}, nil)

	_, err = svc.VerifyToken(context.Background(), signed, models.TokenTypeRefresh)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyToken_RecordSubjectMismatch(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	now := time.Now().UTC()

	signed, err := svc.generateToken(uuid.New(), models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	mockSt.EXPECT().
		TokenByHash(gomock.Any(), gomock.Any()).
		Return(&models.Token{
			TokenHash: hashToken(signed),
			UserID:    uuid.New(), // другой пользователь
			Type:      models.TokenTypeRefresh,
			ExpiresAt: now.Add(time.Hour),
		}, nil)

	_, err = svc.VerifyToken(context.Background(), signed, models.TokenTypeRefresh)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyToken_StorageError_IsPropagated(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()
	now := time.Now().UTC()

	signed, err := svc.generateToken(uid, models.RoleUser, models.TokenTypeRefresh, now, now.Add(time.Hour))
	require.NoError(t, err)

	mockSt.EXPECT().
		TokenByHash(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("db query timeout"))

	_, err = svc.VerifyToken(context.Background(), signed, models.TokenTypeRefresh)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTokenNotFound)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateResetPasswordToken_UnknownEmail(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, fmtWrap(storage.ErrNotFound))

	_, err := svc.GenerateResetPasswordToken(context.Background(), "Ghost@Example.com ")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestGenerateResetPasswordToken_OK(t *testing.T) {
	svc, mockSt, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	uid := uuid.New()

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uid, Email: "user@example.com", Role: models.RoleUser}, nil)

	var saved *models.Token
	mockSt.EXPECT().
		SaveToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, token *models.Token) error {
			saved = token
			return nil
		})

	signed, err := svc.GenerateResetPasswordToken(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, hashToken(signed), saved.TokenHash)
	require.Equal(t, models.TokenTypeResetPassword, saved.Type)
	require.WithinDuration(t, time.Now().UTC().Add(svc.cfg.ResetTokenTTL), saved.ExpiresAt, 5*time.Second)
}
