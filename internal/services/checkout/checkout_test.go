package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/config"
	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetByUserUID(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}
func (m *RepoMock) SaveCustomerID(ctx context.Context, userUID, customerID string) error {
	args := m.Called(ctx, userUID, customerID)
	return args.Error(0)
}

type UsersMock struct{ mock.Mock }

func (m *UsersMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateCustomer(ctx context.Context, email, userUID string) (string, error) {
	args := m.Called(ctx, email, userUID)
	return args.String(0), args.Error(1)
}
func (m *GatewayMock) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}
func (m *GatewayMock) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}
func (m *GatewayMock) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProviderSubscription), args.Error(1)
}
func (m *GatewayMock) ConstructEvent(payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Event), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testStripeConfig() config.Stripe {
	return config.Stripe{
		Environment:    "dev",
		SecretKey:      "sk_test_123",
		WebhookSecret:  "whsec_123",
		PriceIDMonthly: "price_monthly",
		PriceIDYearly:  "price_yearly",
		SuccessURL:     "https://app.example.com",
		CancelURL:      "https://app.example.com",
	}
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		planType  string
		setup     func(repo *RepoMock, users *UsersMock, gw *GatewayMock)
		wantErr   error
		wantURL   string
		wantCalls func(t *testing.T, gw *GatewayMock)
	}{
		{
			name:     "существующий покупатель переиспользуется",
			planType: "monthly",
			setup: func(repo *RepoMock, _ *UsersMock, gw *GatewayMock) {
				repo.On("GetByUserUID", mock.Anything, "uid-1").
					Return(&models.Subscription{UserUID: "uid-1", StripeCustomerID: "cus_1"}, nil)
				gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p billing.CheckoutParams) bool {
					return p.CustomerID == "cus_1" && p.PriceID == "price_monthly" &&
						p.PlanType == "monthly" && p.UserUID == "uid-1"
				})).Return(&billing.CheckoutSession{ID: "cs_1", URL: "https://stripe/cs_1"}, nil)
			},
			wantURL: "https://stripe/cs_1",
			wantCalls: func(t *testing.T, gw *GatewayMock) {
				gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name:     "покупатель создается при первом обращении",
			planType: "yearly",
			setup: func(repo *RepoMock, users *UsersMock, gw *GatewayMock) {
				repo.On("GetByUserUID", mock.Anything, "uid-1").
					Return(nil, repository.ErrSubscriptionNotFound)
				users.On("GetUser", mock.Anything, "uid-1").
					Return(&models.User{UID: "uid-1", Email: "user@example.com"}, nil)
				gw.On("CreateCustomer", mock.Anything, "user@example.com", "uid-1").
					Return("cus_new", nil)
				repo.On("SaveCustomerID", mock.Anything, "uid-1", "cus_new").Return(nil)
				gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p billing.CheckoutParams) bool {
					return p.CustomerID == "cus_new" && p.PriceID == "price_yearly"
				})).Return(&billing.CheckoutSession{ID: "cs_2", URL: "https://stripe/cs_2"}, nil)
			},
			wantURL: "https://stripe/cs_2",
		},
		{
			name:     "неизвестный тип плана",
			planType: "weekly",
			setup:    func(_ *RepoMock, _ *UsersMock, _ *GatewayMock) {},
			wantErr:  ErrNotConfigured,
		},
		{
			name:     "ошибка провайдера при создании покупателя",
			planType: "monthly",
			setup: func(repo *RepoMock, users *UsersMock, gw *GatewayMock) {
				repo.On("GetByUserUID", mock.Anything, "uid-1").
					Return(nil, repository.ErrSubscriptionNotFound)
				users.On("GetUser", mock.Anything, "uid-1").
					Return(&models.User{UID: "uid-1", Email: "user@example.com"}, nil)
				gw.On("CreateCustomer", mock.Anything, "user@example.com", "uid-1").
					Return("", errors.New("stripe unavailable"))
			},
			wantErr: errors.New("stripe unavailable"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			users := new(UsersMock)
			gw := new(GatewayMock)
			tt.setup(repo, users, gw)

			svc := New(repo, users, gw, testStripeConfig(), newNoopLogger())
			sess, err := svc.CreateSession(ctx, "uid-1", tt.planType)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				assert.Nil(t, sess)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantURL, sess.URL)
			}
			if tt.wantCalls != nil {
				tt.wantCalls(t, gw)
			}
			repo.AssertExpectations(t)
			users.AssertExpectations(t)
			gw.AssertExpectations(t)
		})
	}
}

func TestCreateSession_URLSuffixes(t *testing.T) {
	repo := new(RepoMock)
	users := new(UsersMock)
	gw := new(GatewayMock)

	repo.On("GetByUserUID", mock.Anything, "uid-1").
		Return(&models.Subscription{UserUID: "uid-1", StripeCustomerID: "cus_1"}, nil)

	var got billing.CheckoutParams
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			got = args.Get(1).(billing.CheckoutParams)
		}).
		Return(&billing.CheckoutSession{ID: "cs_1", URL: "https://stripe/cs_1"}, nil)

	svc := New(repo, users, gw, testStripeConfig(), newNoopLogger())
	_, err := svc.CreateSession(context.Background(), "uid-1", "monthly")
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com/home?session_id={CHECKOUT_SESSION_ID}", got.SuccessURL)
	assert.Equal(t, "https://app.example.com/packages?canceled=true", got.CancelURL)
}

func TestOpenPortal(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(repo *RepoMock, gw *GatewayMock)
		wantErr error
		wantURL string
	}{
		{
			name: "портал открывается для существующего покупателя",
			setup: func(repo *RepoMock, gw *GatewayMock) {
				repo.On("GetByUserUID", mock.Anything, "uid-1").
					Return(&models.Subscription{UserUID: "uid-1", StripeCustomerID: "cus_1"}, nil)
				gw.On("CreatePortalSession", mock.Anything, "cus_1", "https://app.example.com/account").
					Return("https://stripe/portal", nil)
			},
			wantURL: "https://stripe/portal",
		},
		{
			name: "запись подписки отсутствует",
			setup: func(repo *RepoMock, _ *GatewayMock) {
				repo.On("GetByUserUID", mock.Anything, "uid-1").
					Return(nil, repository.ErrSubscriptionNotFound)
			},
			wantErr: ErrNoCustomer,
		},
		{
			name: "покупатель не создан",
			setup: func(repo *RepoMock, _ *GatewayMock) {
				repo.On("GetByUserUID", mock.Anything, "uid-1").
					Return(&models.Subscription{UserUID: "uid-1"}, nil)
			},
			wantErr: ErrNoCustomer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			gw := new(GatewayMock)
			tt.setup(repo, gw)

			svc := New(repo, new(UsersMock), gw, testStripeConfig(), newNoopLogger())
			url, err := svc.OpenPortal(ctx, "uid-1", "https://app.example.com/account")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, url)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantURL, url)
			}
			repo.AssertExpectations(t)
			gw.AssertExpectations(t)
		})
	}
}
