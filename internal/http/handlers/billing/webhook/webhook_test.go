package webhook_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/billing/webhook"
)

type VerifierMock struct{ mock.Mock }

func (m *VerifierMock) ConstructEvent(payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Event), args.Error(1)
}

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) ProcessEvent(ctx context.Context, event *billing.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestHandler_ServeHTTP(t *testing.T) {
	event := &billing.Event{ID: "evt_1", Type: "checkout.session.completed", CreatedAt: 1}

	tests := []struct {
		name           string
		signature      string
		setup          func(verifier *VerifierMock, service *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name:      "событие принято и обработано",
			signature: "t=1,v1=valid",
			setup: func(verifier *VerifierMock, service *ServiceMock) {
				verifier.On("ConstructEvent", []byte(`{"id":"evt_1"}`), "t=1,v1=valid").
					Return(event, nil)
				service.On("ProcessEvent", mock.Anything, event).Return(nil)
			},
			wantStatusCode: http.StatusOK,
			wantBody:       "received",
		},
		{
			name:           "отсутствует заголовок подписи",
			signature:      "",
			setup:          func(_ *VerifierMock, _ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "missing signature header",
		},
		{
			name:      "неверная подпись",
			signature: "t=1,v1=bad",
			setup: func(verifier *VerifierMock, _ *ServiceMock) {
				verifier.On("ConstructEvent", []byte(`{"id":"evt_1"}`), "t=1,v1=bad").
					Return(nil, fmt.Errorf("construct: %w", billing.ErrInvalidSignature))
			},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "invalid signature",
		},
		{
			name:      "сбой обработки возвращает 500 для повторной доставки",
			signature: "t=1,v1=valid",
			setup: func(verifier *VerifierMock, service *ServiceMock) {
				verifier.On("ConstructEvent", []byte(`{"id":"evt_1"}`), "t=1,v1=valid").
					Return(event, nil)
				service.On("ProcessEvent", mock.Anything, event).
					Return(errors.New("db down"))
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       "webhook processing error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(VerifierMock)
			service := new(ServiceMock)
			tt.setup(verifier, service)

			handler := webhook.New(newNoopLogger(), verifier, service)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook",
				strings.NewReader(`{"id":"evt_1"}`))
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			verifier.AssertExpectations(t)
			service.AssertExpectations(t)
		})
	}
}
