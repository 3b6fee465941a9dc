// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Формат тела совместим с фронтом магазина:
//
//	{"code": 401, "message": "Please authenticate."}
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-online-store/internal/service"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

var (
	// ErrAuthRequired — запрос без валидного access-токена.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden — роль не даёт доступа к операции.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest — тело/параметры запроса не разобраны.
	ErrBadRequest = errors.New("invalid request data")
)

// APIError — единый формат ошибки для фронта.
// Code дублирует HTTP-статус в теле: фронт обрабатывает ответ,
// не заглядывая в статусную строку.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToHTTP конвертирует ошибку сервисного слоя в статус и тело ответа.
// Неизвестные ошибки схлопываются в 500 без утечки деталей.
func ToHTTP(err error) (int, APIError) {
	var status int
	var message string

	switch {
	case err == nil:
		// Программная ошибка вызова: не маскируем баг "успехом".
		status, message = http.StatusInternalServerError, "Something went wrong"

	case errors.Is(err, ErrAuthRequired):
		status, message = http.StatusUnauthorized, "Please authenticate."
	case errors.Is(err, ErrForbidden),
		errors.Is(err, service.ErrUserBanned):
		status, message = http.StatusForbidden, "Forbidden action. Access denied."

	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Incorrect credentials"
	case errors.Is(err, service.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "Invalid token."
	case errors.Is(err, service.ErrPasswordResetFailed):
		status, message = http.StatusUnauthorized, "Password reset failed"

	case errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, storage.ErrImageNotFound):
		status, message = http.StatusNotFound, "Not found"

	case errors.Is(err, service.ErrEmailTaken):
		status, message = http.StatusBadRequest, "Email already taken"

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrTitleTaken),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, storage.ErrInvalidImage):
		status, message = http.StatusBadRequest, err.Error()

	case errors.Is(err, service.ErrImagesDisabled):
		status, message = http.StatusNotImplemented, err.Error()

	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Request timed out"

	default:
		status, message = http.StatusInternalServerError, "Something went wrong"
	}

	return status, APIError{Code: status, Message: message}
}

// WriteError — хелпер для HTTP-хендлеров: пишет статус и тело.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status, resp := ToHTTP(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
