package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-online-store/internal/config"
	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/service"
	"github.com/pribylovaa/go-online-store/internal/storage"
	"github.com/pribylovaa/go-online-store/mocks"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "router-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ResetTokenTTL:   10 * time.Minute,
		Issuer:          "online-store",
	}
}

func newTestServer(t *testing.T, cfg config.AuthConfig) (http.Handler, *mocks.MockStorage, *service.Service) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockSt := mocks.NewMockStorage(ctrl)
	svc := service.New(mockSt, cfg, config.LimitsConfig{DefaultPageSize: 10, MaxPageSize: 100})

	handler := NewRouter(svc, Options{Timeout: 5 * time.Second})
	return handler, mockSt, svc
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegister_Created_NoPasswordLeak(t *testing.T) {
	handler, mockSt, _ := newTestServer(t, testAuthCfg())

	mockSt.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)

	rr := doJSON(t, handler, http.MethodPost, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"password": "Passw0rd!",
	}, nil)

	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		User   map[string]any `json:"user"`
		Tokens struct {
			Access  struct{ Token string } `json:"access"`
			Refresh struct{ Token string } `json:"refresh"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.Access.Token)
	require.NotEmpty(t, resp.Tokens.Refresh.Token)

	// Хэш пароля не попадает в ответ ни под каким именем.
	require.NotContains(t, resp.User, "password")
	require.NotContains(t, resp.User, "passwordHash")
	require.NotContains(t, rr.Body.String(), "Passw0rd!")
}

func TestRegister_EmailTaken(t *testing.T) {
	handler, mockSt, _ := newTestServer(t, testAuthCfg())

	mockSt.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	rr := doJSON(t, handler, http.MethodPost, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"password": "Passw0rd!",
	}, nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, apiError{Code: 400, Message: "Email already taken"}, decodeError(t, rr))
}

func TestLogin_WrongPassword(t *testing.T) {
	handler, mockSt, _ := newTestServer(t, testAuthCfg())

	mockSt.EXPECT().
		UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{
			ID:           uuid.New(),
			Email:        "user@example.com",
			PasswordHash: mustHash(t, "Passw0rd!"),
			Role:         models.RoleUser,
		}, nil)

	rr := doJSON(t, handler, http.MethodPost, "/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "WrongPassw0rd!",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, apiError{Code: 401, Message: "Incorrect credentials"}, decodeError(t, rr))
}

func TestLogout_DoubleLogout_204Then404(t *testing.T) {
	handler, mockSt, svc := newTestServer(t, testAuthCfg())

	uid := uuid.New()

	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)
	pair, err := svc.GenerateAuthTokens(context.Background(), uid, models.RoleUser)
	require.NoError(t, err)

	record := &models.Token{
		UserID:    uid,
		Role:      models.RoleUser,
		Type:      models.TokenTypeRefresh,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	gomock.InOrder(
		mockSt.EXPECT().
			TokenByHash(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, hash string) (*models.Token, error) {
				record.TokenHash = hash
				return record, nil
			}),
		mockSt.EXPECT().DeleteToken(gomock.Any(), gomock.Any()).Return(nil),
		mockSt.EXPECT().TokenByHash(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound),
	)

	body := map[string]string{"refreshToken": pair.Refresh.Token}

	rr := doJSON(t, handler, http.MethodPost, "/auth/logout", body, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, handler, http.MethodPost, "/auth/logout", body, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, apiError{Code: 404, Message: "Not found"}, decodeError(t, rr))
}

func TestLogout_GarbageToken_404(t *testing.T) {
	handler, _, _ := newTestServer(t, testAuthCfg())

	// Логаут с токеном, которого нет в хранилище (в т.ч. битым), — 404:
	// это поиск записи, а не проверка JWT.
	rr := doJSON(t, handler, http.MethodPost, "/auth/logout", map[string]string{
		"refreshToken": "not-a-jwt",
	}, nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, apiError{Code: 404, Message: "Not found"}, decodeError(t, rr))
}

func TestRefreshTokens_InvalidToken(t *testing.T) {
	handler, _, _ := newTestServer(t, testAuthCfg())

	rr := doJSON(t, handler, http.MethodPost, "/auth/refresh-tokens", map[string]string{
		"refreshToken": "garbage",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, apiError{Code: 401, Message: "Invalid token."}, decodeError(t, rr))
}

func TestAdminRoute_NonAdmin_Forbidden(t *testing.T) {
	handler, mockSt, svc := newTestServer(t, testAuthCfg())

	uid := uuid.New()

	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)
	pair, err := svc.GenerateAuthTokens(context.Background(), uid, models.RoleUser)
	require.NoError(t, err)

	// Субъект существует, но роль user.
	mockSt.EXPECT().
		UserByID(gomock.Any(), uid).
		Return(&models.User{ID: uid, Role: models.RoleUser}, nil)

	rr := doJSON(t, handler, http.MethodGet, "/users", nil, map[string]string{
		"Authorization": "Bearer " + pair.Access.Token,
	})

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, apiError{Code: 403, Message: "Forbidden action. Access denied."}, decodeError(t, rr))
}

func TestProtectedRoute_NoToken(t *testing.T) {
	handler, _, _ := newTestServer(t, testAuthCfg())

	rr := doJSON(t, handler, http.MethodGet, "/users", nil, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, apiError{Code: 401, Message: "Please authenticate."}, decodeError(t, rr))
}

func TestExpiredAccess_ThenRefresh_OK(t *testing.T) {
	cfg := testAuthCfg()
	cfg.AccessTokenTTL = -time.Minute // access рождается просроченным

	handler, mockSt, svc := newTestServer(t, cfg)

	uid := uuid.New()

	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)
	pair, err := svc.GenerateAuthTokens(context.Background(), uid, models.RoleUser)
	require.NoError(t, err)

	// 1) Просроченный access отклоняется мидлваром.
	rr := doJSON(t, handler, http.MethodGet, "/users/"+uid.String(), nil, map[string]string{
		"Authorization": "Bearer " + pair.Access.Token,
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Please authenticate.", decodeError(t, rr).Message)

	// 2) Ротация по живому refresh выдаёт новую пару.
	user := &models.User{ID: uid, Role: models.RoleUser}
	gomock.InOrder(
		mockSt.EXPECT().
			TokenByHash(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, hash string) (*models.Token, error) {
				return &models.Token{
					TokenHash: hash,
					UserID:    uid,
					Role:      models.RoleUser,
					Type:      models.TokenTypeRefresh,
					ExpiresAt: time.Now().UTC().Add(time.Hour),
				}, nil
			}),
		mockSt.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil),
		mockSt.EXPECT().DeleteToken(gomock.Any(), gomock.Any()).Return(nil),
		mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil),
	)

	rr = doJSON(t, handler, http.MethodPost, "/auth/refresh-tokens", map[string]string{
		"refreshToken": pair.Refresh.Token,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var newPair models.AuthTokens
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &newPair))
	require.NotEmpty(t, newPair.Access.Token)
	require.NotEqual(t, pair.Refresh.Token, newPair.Refresh.Token)
}

func TestChangePassword_SelfOnly(t *testing.T) {
	handler, mockSt, svc := newTestServer(t, testAuthCfg())

	uid := uuid.New()
	other := uuid.New()

	mockSt.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(nil)
	pair, err := svc.GenerateAuthTokens(context.Background(), uid, models.RoleUser)
	require.NoError(t, err)

	mockSt.EXPECT().
		UserByID(gomock.Any(), uid).
		Return(&models.User{ID: uid, Role: models.RoleUser}, nil)

	// Чужой id в пути — 403, до сервиса запрос не доходит.
	rr := doJSON(t, handler, http.MethodPatch, "/auth/change-password/"+other.String(), map[string]string{
		"oldPassword": "OldPassw0rd!",
		"newPassword": "NewPassw0rd!",
	}, map[string]string{
		"Authorization": "Bearer " + pair.Access.Token,
	})

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "Forbidden action. Access denied.", decodeError(t, rr).Message)
}

func TestListProducts_PublicAndPassesParams(t *testing.T) {
	handler, mockSt, _ := newTestServer(t, testAuthCfg())

	var got storage.ListProductsParams
	mockSt.EXPECT().
		ListProducts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params storage.ListProductsParams) (*models.ProductPage, error) {
			got = params
			return &models.ProductPage{Data: []models.Product{}, TotalDocs: 42}, nil
		})

	rr := doJSON(t, handler, http.MethodGet,
		"/products?_page=2&_limit=5&category=laptops&category=phones&brand=apple&_sort=price&_order=desc",
		nil, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 2, got.Page)
	require.EqualValues(t, 5, got.Limit)
	require.Equal(t, []string{"laptops", "phones"}, got.Categories)
	require.Equal(t, []string{"apple"}, got.Brands)
	require.Equal(t, "price", got.SortField)
	require.Equal(t, "desc", got.SortOrder)

	var page models.ProductPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.EqualValues(t, 42, page.TotalDocs)
}

func TestGetProduct_NotFound(t *testing.T) {
	handler, mockSt, _ := newTestServer(t, testAuthCfg())

	id := uuid.New()
	mockSt.EXPECT().ProductByID(gomock.Any(), id).Return(nil, storage.ErrNotFound)

	rr := doJSON(t, handler, http.MethodGet, "/products/"+id.String(), nil, nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, apiError{Code: 404, Message: "Not found"}, decodeError(t, rr))
}

func TestMalformedBody_400(t *testing.T) {
	handler, _, _ := newTestServer(t, testAuthCfg())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email": `))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
