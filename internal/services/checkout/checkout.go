// Package checkout содержит бизнес-логику запуска оплаты подписки:
// создание checkout-сессии у платёжного провайдера и открытие портала
// самообслуживания для управления существующей подпиской.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/config"
	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

// Ошибки бизнес-логики checkout.
var (
	// ErrNotConfigured цена для запрошенного плана не настроена.
	ErrNotConfigured = errors.New("billing is not configured")
	// ErrNoCustomer у пользователя нет покупателя у провайдера.
	ErrNoCustomer = errors.New("billing customer not found")
)

// SubscriptionRepository определяет методы хранилища, используемые checkout.
type SubscriptionRepository interface {
	// GetByUserUID возвращает запись подписки пользователя.
	GetByUserUID(ctx context.Context, userUID string) (*models.Subscription, error)
	// SaveCustomerID сохраняет идентификатор покупателя у провайдера.
	SaveCustomerID(ctx context.Context, userUID, customerID string) error
}

// UserRepository определяет методы работы с пользователями.
type UserRepository interface {
	// GetUser возвращает пользователя по его UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Service реализует запуск оплаты и открытие портала самообслуживания.
type Service struct {
	repo    SubscriptionRepository
	users   UserRepository
	gateway billing.Gateway
	stripe  config.Stripe
	log     *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo SubscriptionRepository, users UserRepository, gateway billing.Gateway,
	stripe config.Stripe, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		gateway: gateway,
		stripe:  stripe,
		log:     log,
	}
}

// CreateSession создает checkout-сессию для пользователя и типа плана.
// Покупатель у провайдера создается один раз и переиспользуется; его
// идентификатор сохраняется до создания сессии, чтобы повторный запрос
// не плодил покупателей.
func (s *Service) CreateSession(ctx context.Context, userUID, planType string) (*billing.CheckoutSession, error) {
	const op = "services.checkout.CreateSession"

	priceID := s.stripe.PriceID(planType)
	if priceID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	customerID, err := s.resolveCustomerID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		PlanType:   planType,
		UserUID:    userUID,
		SuccessURL: strings.TrimRight(s.stripe.SuccessURL, "/") + "/home?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  strings.TrimRight(s.stripe.CancelURL, "/") + "/packages?canceled=true",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout session created",
		slog.String("user_uid", userUID),
		slog.String("plan_type", planType),
		slog.String("session_id", sess.ID))
	return sess, nil
}

// OpenPortal создает сессию портала самообслуживания для пользователя.
// Требует ранее созданного покупателя у провайдера.
func (s *Service) OpenPortal(ctx context.Context, userUID, returnURL string) (string, error) {
	const op = "services.checkout.OpenPortal"

	sub, err := s.repo.GetByUserUID(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNoCustomer)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if sub.StripeCustomerID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoCustomer)
	}

	url, err := s.gateway.CreatePortalSession(ctx, sub.StripeCustomerID, returnURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

// resolveCustomerID возвращает идентификатор покупателя пользователя,
// создавая покупателя у провайдера при первом обращении.
func (s *Service) resolveCustomerID(ctx context.Context, userUID string) (string, error) {
	sub, err := s.repo.GetByUserUID(ctx, userUID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return "", err
	}

	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, userUID)
	if err != nil {
		return "", err
	}
	if err := s.repo.SaveCustomerID(ctx, userUID, customerID); err != nil {
		s.log.Error("failed to save customer id", sl.Err(err),
			slog.String("user_uid", userUID))
		return "", err
	}
	return customerID, nil
}
