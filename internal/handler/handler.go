// Package handler содержит HTTP-обработчики API сервиса звёздного неба.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/middleware"
	"github.com/mmeshcher/starsky/internal/model"
	"github.com/mmeshcher/starsky/internal/notify"
	"github.com/mmeshcher/starsky/internal/repository"
	"github.com/mmeshcher/starsky/internal/service"
	"github.com/mmeshcher/starsky/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterAccount(ctx context.Context, login, password, displayName string) (int64, error)
	Authenticate(ctx context.Context, login, password string) (int64, error)
	GetCredits(ctx context.Context, accountID int64) (*model.Credits, error)
	AddPurchase(ctx context.Context, accountID int64, sessionID string) (bool, error)
	GetPurchases(ctx context.Context, accountID int64) ([]model.Purchase, error)
	CreateStar(ctx context.Context, requesterID int64, req service.CreateStarRequest) model.CreateStarResult
	ListStars(ctx context.Context, viewerID int64, sky model.SkyPartition) ([]model.Star, error)
	DeleteStar(ctx context.Context, requesterID int64, starID string) error
	GrantCredits(ctx context.Context, adminID, accountID, amount int64) (int64, error)
	SetRole(ctx context.Context, adminID, accountID int64, role model.Role) error
	SetUnlimitedCredits(ctx context.Context, adminID, accountID int64, unlimited bool) error
}

// Events подключает SSE-клиентов к рассылке событий неба.
type Events interface {
	Register(c *notify.Client)
	Unregister(c *notify.Client)
}

// Handler реализует HTTP-обработчики API сервиса звёздного неба.
type Handler struct {
	service        Service
	events         Events
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	heartbeat      time.Duration
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. events может быть nil,
// тогда поток событий недоступен.
func NewHandler(s Service, events Events, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		events:         events,
		logger:         logger,
		authMiddleware: auth,
		heartbeat:      25 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func httpError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

type credentialsRequest struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	if err := validation.Login(req.Login); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.Password(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accountID, err := h.service.RegisterAccount(r.Context(), req.Login, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			httpError(w, http.StatusConflict)
			return
		}
		h.logger.Error("register account error", zap.Error(err))
		httpError(w, http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, accountID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и выдаёт cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		httpError(w, http.StatusBadRequest)
		return
	}

	accountID, err := h.service.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		httpError(w, http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, accountID)
	w.WriteHeader(http.StatusOK)
}

// GetCredits возвращает остаток кредитов текущего пользователя.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	credits, err := h.service.GetCredits(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			httpError(w, http.StatusUnauthorized)
			return
		}
		h.logger.Error("get credits error", zap.Error(err), zap.Int64("accountID", accountID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, credits)
}

type purchaseRequest struct {
	SessionID string `json:"session_id"`
}

// AddPurchase регистрирует платёжную сессию текущего пользователя.
func (h *Handler) AddPurchase(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	already, err := h.service.AddPurchase(r.Context(), accountID, req.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, validation.ErrInvalidSessionID):
		httpError(w, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, repository.ErrPurchaseOwnedByAnother):
		httpError(w, http.StatusConflict)
		return
	default:
		h.logger.Error("add purchase error", zap.Error(err), zap.String("session", req.SessionID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	if already {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type purchaseResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Credits   *int64 `json:"credits,omitempty"`
	CreatedAt string `json:"created_at"`
}

// GetPurchases возвращает покупки кредитов текущего пользователя.
func (h *Handler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	purchases, err := h.service.GetPurchases(r.Context(), accountID)
	if err != nil {
		h.logger.Error("get purchases error", zap.Error(err), zap.Int64("accountID", accountID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	if len(purchases) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		resp = append(resp, purchaseResponse{
			SessionID: p.SessionID,
			Status:    string(p.Status),
			Credits:   p.Credits,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
