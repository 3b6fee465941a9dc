package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-online-store/internal/service"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

func TestToHTTP_Mapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"auth_required", ErrAuthRequired, http.StatusUnauthorized, "Please authenticate."},
		{"forbidden", ErrForbidden, http.StatusForbidden, "Forbidden action. Access denied."},
		{"banned", service.ErrUserBanned, http.StatusForbidden, "Forbidden action. Access denied."},
		{"invalid_credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect credentials"},
		{"invalid_token", service.ErrInvalidToken, http.StatusUnauthorized, "Invalid token."},
		{"reset_failed", service.ErrPasswordResetFailed, http.StatusUnauthorized, "Password reset failed"},
		{"token_not_found", service.ErrTokenNotFound, http.StatusNotFound, "Not found"},
		{"user_not_found", service.ErrUserNotFound, http.StatusNotFound, "Not found"},
		{"product_not_found", service.ErrProductNotFound, http.StatusNotFound, "Not found"},
		{"image_not_found", storage.ErrImageNotFound, http.StatusNotFound, "Not found"},
		{"email_taken", service.ErrEmailTaken, http.StatusBadRequest, "Email already taken"},
		{"bad_request", ErrBadRequest, http.StatusBadRequest, ErrBadRequest.Error()},
		{"invalid_email", service.ErrInvalidEmail, http.StatusBadRequest, service.ErrInvalidEmail.Error()},
		{"weak_password", service.ErrWeakPassword, http.StatusBadRequest, service.ErrWeakPassword.Error()},
		{"invalid_role", service.ErrInvalidRole, http.StatusBadRequest, service.ErrInvalidRole.Error()},
		{"images_disabled", service.ErrImagesDisabled, http.StatusNotImplemented, service.ErrImagesDisabled.Error()},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "Request timed out"},
		{"unknown", errors.New("pg: connection reset"), http.StatusInternalServerError, "Something went wrong"},
		{"nil", nil, http.StatusInternalServerError, "Something went wrong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := ToHTTP(tc.err)
			require.Equal(t, tc.wantStatus, status)
			require.Equal(t, tc.wantStatus, body.Code)
			require.Equal(t, tc.wantMsg, body.Message)
		})
	}
}

func TestToHTTP_UnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("service/auth/LoginUser: %w", service.ErrInvalidCredentials)

	status, body := ToHTTP(wrapped)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Incorrect credentials", body.Message)
}

func TestToHTTP_NoInternalLeak(t *testing.T) {
	status, body := ToHTTP(errors.New("dial tcp 10.0.0.5:27017: i/o timeout"))

	require.Equal(t, http.StatusInternalServerError, status)
	require.NotContains(t, body.Message, "10.0.0.5")
	require.Equal(t, "Something went wrong", body.Message)
}

func TestWriteError_SetsStatusAndBody(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rr, req, ErrAuthRequired)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"code":401,"message":"Please authenticate."}`, rr.Body.String())
}
