package couponredeem_test

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

	"github.com/magabrotheeeer/billing-core/internal/http/handlers/coupon/couponredeem"
	"github.com/magabrotheeeer/billing-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Redeem(ctx context.Context, code, userUID string) error {
	args := m.Called(ctx, code, userUID)
	return args.Error(0)
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
			name:    "успешное погашение",
			body:    `{"code": "LAUNCH-1"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("Redeem", mock.Anything, "LAUNCH-1", "uid-1").Return(nil)
			},
			wantStatusCode: http.StatusOK,
			wantBody:       "admin access granted",
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
			name:           "пустой код купона",
			body:           `{"code": ""}`,
			userUID:        "uid-1",
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "Code",
		},
		{
			name:           "код купона из одних пробелов",
			body:           `{"code": "   "}`,
			userUID:        "uid-1",
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "Code",
		},
		{
			name:           "отсутствует uid пользователя",
			body:           `{"code": "LAUNCH-1"}`,
			userUID:        "",
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       "unauthorized",
		},
		{
			name:    "купон не найден",
			body:    `{"code": "MISSING"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("Redeem", mock.Anything, "MISSING", "uid-1").
					Return(repository.ErrCouponNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantBody:       "coupon not found",
		},
		{
			name:    "купон уже погашен",
			body:    `{"code": "LAUNCH-1"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("Redeem", mock.Anything, "LAUNCH-1", "uid-1").
					Return(repository.ErrCouponAlreadyUsed)
			},
			wantStatusCode: http.StatusConflict,
			wantBody:       "coupon already used",
		},
		{
			name:    "ошибка сервиса",
			body:    `{"code": "LAUNCH-1"}`,
			userUID: "uid-1",
			setup: func(service *ServiceMock) {
				service.On("Redeem", mock.Anything, "LAUNCH-1", "uid-1").
					Return(errors.New("db down"))
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       "could not redeem coupon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			handler := couponredeem.New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/redeem",
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
