package checkoutcreate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/billing/checkoutcreate"
	"github.com/magabrotheeeer/billing-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billing-core/internal/services/checkout"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) CreateSession(ctx context.Context, userUID, planType string) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, userUID, planType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		userUID        string
		setup          func(service *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name:    "успешный запуск оплаты",
			body:    `{"plan_type": "monthly"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("CreateSession", mock.Anything, "uid-1", "monthly").
					Return(&billing.CheckoutSession{ID: "cs_1", URL: "https://stripe/cs_1"}, nil)
			},
			wantStatusCode: http.StatusOK,
			wantBody:       "https://stripe/cs_1",
		},
		{
			name:           "некорректный JSON",
			body:           `{broken`,
			userUID:        "uid-1",
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "invalid request body",
		},
		{
			name:           "неизвестный тип плана",
			body:           `{"plan_type": "weekly"}`,
			userUID:        "uid-1",
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "PlanType",
		},
		{
			name:           "отсутствует uid пользователя",
			body:           `{"plan_type": "monthly"}`,
			userUID:        "",
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       "unauthorized",
		},
		{
			name:    "биллинг не настроен",
			body:    `{"plan_type": "monthly"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("CreateSession", mock.Anything, "uid-1", "monthly").
					Return(nil, checkout.ErrNotConfigured)
			},
			wantStatusCode: http.StatusPreconditionFailed,
			wantBody:       "contact support",
		},
		{
			name:    "ошибка сервиса",
			body:    `{"plan_type": "monthly"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("CreateSession", mock.Anything, "uid-1", "monthly").
					Return(nil, errors.New("stripe unavailable"))
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       "could not create checkout session",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			handler := checkoutcreate.New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout",
				strings.NewReader(tt.body))
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(),
					middlewarectx.UserUID, tt.userUID))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			service.AssertExpectations(t)
		})
	}
}
