// Package trialstart реализует HTTP-обработчик запуска бесплатного
// пробного периода без привязки карты.
package trialstart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/billing-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billing-core/internal/http/response"
	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
	"github.com/magabrotheeeer/billing-core/internal/services/trial"
)

// Service описывает интерфейс бизнес-логики пробного периода.
type Service interface {
	Start(ctx context.Context, userUID string) (time.Time, error)
}

// Handler управляет HTTP-запросами на запуск пробного периода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить бесплатный пробный период
// @Description Переводит подписку пользователя в статус trialing на семь дней без привязки карты.
// @Tags Billing
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} response.Response "Дата окончания пробного периода"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Подписка или пробный период уже действует"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /billing/trial [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.trialstart"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	trialEndsAt, err := h.service.Start(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, trial.ErrAlreadyActive) {
			log.Error("trial rejected", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("you already have an active subscription or trial"))
			return
		}
		log.Error("failed to start free trial", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start free trial"))
		return
	}

	log.Info("free trial started", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"trial_ends_at": trialEndsAt.Format(time.RFC3339),
		"message":       "your 7-day free trial has started",
	}))
}
