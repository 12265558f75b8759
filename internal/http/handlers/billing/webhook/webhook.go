// Package webhook реализует HTTP-обработчик событий платёжного провайдера.
//
// Handler проверяет подпись события, передает его сервису согласования
// и подтверждает получение. Ошибка подписи возвращает 400, сбой при
// обработке — 500, чтобы провайдер доставил событие повторно.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/http/response"
	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
)

// Verifier проверяет подпись webhook и разбирает событие.
type Verifier interface {
	ConstructEvent(payload []byte, signature string) (*billing.Event, error)
}

// Service описывает интерфейс сервиса согласования событий.
type Service interface {
	ProcessEvent(ctx context.Context, event *billing.Event) error
}

// Handler управляет HTTP-запросами webhook платёжного провайдера.
type Handler struct {
	log      *slog.Logger
	verifier Verifier
	service  Service
}

// New создает новый Handler с переданными логгером, верификатором и сервисом.
func New(log *slog.Logger, verifier Verifier, service Service) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		service:  service,
	}
}

// ServeHTTP godoc
// @Summary Принять событие платёжного провайдера
// @Description Проверяет подпись webhook-события и применяет его к записям подписок. Вызывается провайдером, а не клиентами.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Отсутствует или неверна подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки события"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		log.Error("missing stripe signature header")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing signature header"))
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	event, err := h.verifier.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			log.Error("webhook signature verification failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("failed to construct event", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid event"))
		return
	}

	log.Info("webhook event received",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type))

	if err := h.service.ProcessEvent(r.Context(), event); err != nil {
		log.Error("failed to process event", sl.Err(err),
			slog.String("event_id", event.ID))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("webhook processing error"))
		return
	}

	render.JSON(w, r, map[string]any{"received": true})
}
