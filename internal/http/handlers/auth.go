package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-online-store/internal/errors"
	"github.com/pribylovaa/go-online-store/internal/http/middleware"
	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/service"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authResponse — ответ register/login: пользователь + пара токенов.
type authResponse struct {
	User   *models.User       `json:"user"`
	Tokens *models.AuthTokens `json:"tokens"`
}

func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	user, tokens, err := h.Service.RegisterUser(r.Context(), service.RegisterInput{
		Email:    in.Email,
		Name:     in.Name,
		Phone:    in.Phone,
		Password: in.Password,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

func (h *Handlers) LoginUser(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	user, tokens, err := h.Service.LoginUser(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Service.Logout(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Service.ForgotPassword(r.Context(), in.Email); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword завершает сброс: токен приходит query-параметром
// (ссылка из письма), новый пароль — в теле.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		apierrors.WriteError(w, r, service.ErrPasswordResetFailed)
		return
	}

	var in struct {
		Password string `json:"password"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), token, in.Password); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminChangePassword меняет пароль любого пользователя (админ).
func (h *Handlers) AdminChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in struct {
		Password string `json:"password"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Service.AdminChangeUserPassword(r.Context(), id, in.Password); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword меняет пароль самого пользователя: id в пути обязан
// совпадать с субъектом access-токена.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrAuthRequired)
		return
	}

	if identity.UserID != id {
		apierrors.WriteError(w, r, apierrors.ErrForbidden)
		return
	}

	var in struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Service.UserChangePassword(r.Context(), id, in.OldPassword, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
