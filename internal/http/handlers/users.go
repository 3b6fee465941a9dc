package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-online-store/internal/errors"
	"github.com/pribylovaa/go-online-store/internal/http/middleware"
	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/service"
)

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// GetUser отдаёт пользователя. Обычный пользователь видит только себя,
// админ — любого.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
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

	if identity.Role != models.RoleAdmin && identity.UserID != id {
		apierrors.WriteError(w, r, apierrors.ErrForbidden)
		return
	}

	user, err := h.Service.UserByID(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateUser обновляет профиль. Обычный пользователь редактирует
// только себя, админ — любого.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
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

	if identity.Role != models.RoleAdmin && identity.UserID != id {
		apierrors.WriteError(w, r, apierrors.ErrForbidden)
		return
	}

	var in struct {
		Email *string `json:"email"`
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	user, err := h.Service.UpdateUserProfile(r.Context(), id, service.UpdateProfileInput{
		Email: in.Email,
		Name:  in.Name,
		Phone: in.Phone,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in struct {
		Role string `json:"role"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Service.UpdateUserRole(r.Context(), id, models.Role(in.Role)); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ToggleUserBan(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	banned, err := h.Service.ToggleUserBan(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"isBanned": banned})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Service.DeleteUser(r.Context(), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
