// Package checkoutcreate реализует HTTP-обработчик запуска оплаты подписки.
//
// Handler принимает JSON-запрос с типом плана, валидирует его, извлекает uid
// пользователя из контекста, создает checkout-сессию у платёжного провайдера
// и возвращает её URL для редиректа.
package checkoutcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billing-core/internal/http/response"
	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
	"github.com/magabrotheeeer/billing-core/internal/services/checkout"
)

// Request тело запроса на запуск оплаты.
type Request struct {
	PlanType string `json:"plan_type" validate:"required,oneof=monthly yearly"`
}

// Service описывает интерфейс бизнес-логики запуска оплаты.
type Service interface {
	CreateSession(ctx context.Context, userUID, planType string) (*billing.CheckoutSession, error)
}

// Handler управляет HTTP-запросами на запуск оплаты подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запустить оплату подписки
// @Description Создает checkout-сессию у платёжного провайдера для выбранного типа плана и возвращает URL для редиректа.
// @Tags Billing
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param request body Request true "Тип плана"
// @Success 200 {object} response.Response "URL checkout-сессии"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 412 {object} response.ErrorResponse "Биллинг не настроен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /billing/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkoutcreate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sess, err := h.service.CreateSession(r.Context(), userUID, req.PlanType)
	if err != nil {
		if errors.Is(err, checkout.ErrNotConfigured) {
			log.Error("billing is not configured", sl.Err(err))
			w.WriteHeader(http.StatusPreconditionFailed)
			render.JSON(w, r, response.Error("billing configuration error, please contact support"))
			return
		}
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create checkout session"))
		return
	}

	log.Info("checkout session created", slog.String("session_id", sess.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session_id": sess.ID,
		"url":        sess.URL,
	}))
}
