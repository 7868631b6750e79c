package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/middleware"
	"github.com/mmeshcher/starsky/internal/model"
	"github.com/mmeshcher/starsky/internal/repository"
	"github.com/mmeshcher/starsky/internal/service"
)

// adminTarget возвращает идентификатор администратора из контекста и целевой учётной
// записи из пути. При ошибке ответ уже записан.
func (h *Handler) adminTarget(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	adminID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return 0, 0, false
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || targetID <= 0 {
		httpError(w, http.StatusBadRequest)
		return 0, 0, false
	}

	return adminID, targetID, true
}

func (h *Handler) adminError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		httpError(w, http.StatusForbidden)
	case errors.Is(err, service.ErrSelfDemotion):
		httpError(w, http.StatusConflict)
	case errors.Is(err, repository.ErrAccountNotFound):
		httpError(w, http.StatusNotFound)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		httpError(w, http.StatusInternalServerError)
	}
}

type grantCreditsRequest struct {
	Amount int64 `json:"amount"`
}

type grantCreditsResponse struct {
	Credits int64 `json:"credits"`
}

// GrantCredits начисляет кредиты указанной учётной записи.
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	adminID, targetID, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	var req grantCreditsRequest
	if err := decodeJSON(r, &req); err != nil || req.Amount <= 0 {
		httpError(w, http.StatusBadRequest)
		return
	}

	total, err := h.service.GrantCredits(r.Context(), adminID, targetID, req.Amount)
	if err != nil {
		h.adminError(w, "grant credits", err)
		return
	}

	writeJSON(w, http.StatusOK, grantCreditsResponse{Credits: total})
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

// SetRole меняет роль указанной учётной записи.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	adminID, targetID, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil || !req.Role.Valid() {
		httpError(w, http.StatusBadRequest)
		return
	}

	if err := h.service.SetRole(r.Context(), adminID, targetID, req.Role); err != nil {
		h.adminError(w, "set role", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setUnlimitedRequest struct {
	Unlimited *bool `json:"unlimited"`
}

// SetUnlimitedCredits выдаёт или отзывает безлимитные кредиты.
func (h *Handler) SetUnlimitedCredits(w http.ResponseWriter, r *http.Request) {
	adminID, targetID, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	var req setUnlimitedRequest
	if err := decodeJSON(r, &req); err != nil || req.Unlimited == nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	if err := h.service.SetUnlimitedCredits(r.Context(), adminID, targetID, *req.Unlimited); err != nil {
		h.adminError(w, "set unlimited credits", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
