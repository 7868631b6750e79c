package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/middleware"
	"github.com/mmeshcher/starsky/internal/model"
	"github.com/mmeshcher/starsky/internal/notify"
	"github.com/mmeshcher/starsky/internal/repository"
	"github.com/mmeshcher/starsky/internal/service"
	"github.com/mmeshcher/starsky/internal/validation"
)

// ListStars возвращает звёзды выбранного неба.
func (h *Handler) ListStars(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	sky, err := validation.Sky(r.URL.Query().Get("sky"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stars, err := h.service.ListStars(r.Context(), accountID, sky)
	if err != nil {
		h.logger.Error("list stars error", zap.Error(err), zap.Int64("accountID", accountID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	if len(stars) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, stars)
}

type createStarRequest struct {
	Name       string   `json:"name"`
	Message    string   `json:"message"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Size       float64  `json:"size,omitempty"`
	Brightness float64  `json:"brightness,omitempty"`
	Sky        string   `json:"sky,omitempty"`
	Exempt     bool     `json:"exempt,omitempty"`
}

var outcomeStatus = map[model.CreateOutcome]int{
	model.OutcomeSuccess:             http.StatusCreated,
	model.OutcomeNameConflict:        http.StatusConflict,
	model.OutcomeInsufficientCredits: http.StatusPaymentRequired,
	model.OutcomeSkyTooCrowded:       http.StatusServiceUnavailable,
	model.OutcomeInvalid:             http.StatusUnprocessableEntity,
	model.OutcomeFailure:             http.StatusInternalServerError,
}

// CreateStar создаёт звезду от имени текущего пользователя. Тело ответа всегда
// содержит структурированный итог.
func (h *Handler) CreateStar(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req createStarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.CreateStarResult{
			Outcome: model.OutcomeInvalid,
			Detail:  "malformed request body",
		})
		return
	}

	sky, err := validation.Sky(req.Sky)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, model.CreateStarResult{
			Outcome: model.OutcomeInvalid,
			Detail:  err.Error(),
		})
		return
	}

	res := h.service.CreateStar(r.Context(), accountID, service.CreateStarRequest{
		Name:       req.Name,
		Message:    req.Message,
		X:          req.X,
		Y:          req.Y,
		Size:       req.Size,
		Brightness: req.Brightness,
		Sky:        sky,
		Exempt:     req.Exempt,
	})

	status, ok := outcomeStatus[res.Outcome]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// DeleteStar удаляет звезду. Доступно владельцу и администратору.
func (h *Handler) DeleteStar(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	starID := chi.URLParam(r, "id")
	err := h.service.DeleteStar(r.Context(), accountID, starID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repository.ErrStarNotFound):
		httpError(w, http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		httpError(w, http.StatusForbidden)
	default:
		h.logger.Error("delete star error", zap.Error(err), zap.String("star", starID))
		httpError(w, http.StatusInternalServerError)
	}
}

// StarEvents отдаёт поток событий неба в формате Server-Sent Events.
func (h *Handler) StarEvents(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	if h.events == nil {
		httpError(w, http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := notify.NewClient(accountID)
	h.events.Register(client)
	defer h.events.Unregister(client)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
