// Package reconciler приводит локальные записи подписок в соответствие
// событиям платёжного провайдера. Провайдер доставляет webhook-события
// как минимум один раз и без гарантии порядка, поэтому обработка
// идемпотентна: повтор события приводит запись к тому же состоянию,
// а событие старше уже применённого пропускается.
//
// Некорректные и неизвестные события подтверждаются без записи, чтобы
// провайдер не ретраил их бесконечно. Ошибка возвращается только при
// сбое хранилища или провайдера: такие события провайдер доставит снова.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/rabbitmq"
)

// SubscriptionRepository определяет условные записи подписок в хранилище.
// Методы по идентификатору покупателя возвращают uid пользователя;
// пустая строка означает, что запись не найдена или событие устарело.
type SubscriptionRepository interface {
	ApplyCheckoutCompleted(ctx context.Context, upd models.ProviderUpdate) (bool, error)
	UpdateByCustomerID(ctx context.Context, upd models.ProviderUpdate) (string, error)
	CancelByCustomerID(ctx context.Context, customerID string, eventAt int64) (string, error)
	RenewByCustomerID(ctx context.Context, customerID, status string, periodEnd time.Time, eventAt int64) (string, error)
}

// Cache описывает инвалидацию кеша записей подписок.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Service применяет события провайдера к хранилищу подписок.
type Service struct {
	repo    SubscriptionRepository
	gateway billing.Gateway
	cache   Cache
	channel *amqp.Channel
	log     *slog.Logger
}

// New создает новый экземпляр Service. Кеш и канал RabbitMQ могут быть
// nil, тогда инвалидация и публикация событий пропускаются.
func New(repo SubscriptionRepository, gateway billing.Gateway, cache Cache,
	channel *amqp.Channel, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		channel: channel,
		log:     log,
	}
}

// SubscriptionCanceledEvent сообщение об отмене подписки.
type SubscriptionCanceledEvent struct {
	UserUID string `json:"user_uid"`
}

// Объекты событий разбираются по сырому JSON: ссылочные поля провайдер
// присылает то строкой-идентификатором, то развёрнутым объектом.

type eventCheckoutSession struct {
	ID           string            `json:"id"`
	Subscription json.RawMessage   `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type eventSubscription struct {
	ID               string            `json:"id"`
	Customer         json.RawMessage   `json:"customer"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

type eventInvoice struct {
	ID           string          `json:"id"`
	Subscription json.RawMessage `json:"subscription"`
}

// objectID возвращает идентификатор ссылочного поля: либо саму строку,
// либо поле id развёрнутого объекта.
func objectID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// periodEnd возвращает конец оплаченного периода: верхнеуровневое поле,
// при его отсутствии — значение первой позиции подписки.
func (s eventSubscription) periodEnd() int64 {
	if s.CurrentPeriodEnd != 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

// ProcessEvent применяет одно событие провайдера. Возвращает ошибку
// только при сбое хранилища или провайдера; все остальные исходы
// подтверждаются.
func (s *Service) ProcessEvent(ctx context.Context, event *billing.Event) error {
	const op = "services.reconciler.ProcessEvent"

	log := s.log.With(
		sl.Op(op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, log, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, log, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, log, event)
	case "invoice.payment_succeeded":
		return s.handleInvoicePaymentSucceeded(ctx, log, event)
	default:
		log.Info("unhandled event type")
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, log *slog.Logger, event *billing.Event) error {
	var session eventCheckoutSession
	if err := json.Unmarshal(event.Object, &session); err != nil {
		log.Error("malformed checkout session object", sl.Err(err))
		return nil
	}

	userUID := session.Metadata["user_uid"]
	if userUID == "" {
		log.Error("no user_uid in checkout session metadata")
		return nil
	}
	subscriptionID := objectID(session.Subscription)
	if subscriptionID == "" {
		log.Error("no subscription id in checkout session")
		return nil
	}

	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("retrieve subscription: %w", err)
	}

	if sub.CurrentPeriodEnd == 0 {
		log.Error("invalid subscription period end",
			slog.String("subscription_id", subscriptionID))
		return nil
	}

	planType := session.Metadata["plan_type"]
	if planType == "" {
		planType = models.PlanMonthly
	}
	created := sub.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	applied, err := s.repo.ApplyCheckoutCompleted(ctx, models.ProviderUpdate{
		UserUID:              userUID,
		StripeCustomerID:     sub.CustomerID,
		StripeSubscriptionID: subscriptionID,
		Status:               models.NormalizeStatus(sub.Status),
		PlanType:             planType,
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
		CreatedAt:            time.Unix(created, 0),
		EventAt:              event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("apply checkout completed: %w", err)
	}
	if !applied {
		log.Info("stale event or invalid user skipped", slog.String("user_uid", userUID))
		return nil
	}

	s.invalidate(ctx, log, userUID)
	log.Info("checkout session completed",
		slog.String("user_uid", userUID),
		slog.String("subscription_id", subscriptionID),
		slog.String("plan_type", planType))
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, log *slog.Logger, event *billing.Event) error {
	var sub eventSubscription
	if err := json.Unmarshal(event.Object, &sub); err != nil {
		log.Error("malformed subscription object", sl.Err(err))
		return nil
	}

	customerID := objectID(sub.Customer)
	if customerID == "" {
		log.Error("no customer id in subscription object")
		return nil
	}
	periodEnd := sub.periodEnd()
	if periodEnd == 0 {
		log.Error("invalid period end in subscription update",
			slog.String("customer_id", customerID))
		return nil
	}

	userUID, err := s.repo.UpdateByCustomerID(ctx, models.ProviderUpdate{
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		Status:               models.NormalizeStatus(sub.Status),
		PlanType:             sub.Metadata["plan_type"],
		CurrentPeriodEnd:     time.Unix(periodEnd, 0),
		EventAt:              event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if userUID == "" {
		log.Info("subscription not found or stale event",
			slog.String("customer_id", customerID))
		return nil
	}

	s.invalidate(ctx, log, userUID)
	log.Info("subscription updated",
		slog.String("user_uid", userUID),
		slog.String("subscription_id", sub.ID))
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, log *slog.Logger, event *billing.Event) error {
	var sub eventSubscription
	if err := json.Unmarshal(event.Object, &sub); err != nil {
		log.Error("malformed subscription object", sl.Err(err))
		return nil
	}

	customerID := objectID(sub.Customer)
	if customerID == "" {
		log.Error("no customer id in subscription object")
		return nil
	}

	userUID, err := s.repo.CancelByCustomerID(ctx, customerID, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if userUID == "" {
		log.Info("subscription not found or stale event",
			slog.String("customer_id", customerID))
		return nil
	}

	s.invalidate(ctx, log, userUID)

	if s.channel != nil {
		canceled := SubscriptionCanceledEvent{UserUID: userUID}
		if err := rabbitmq.PublishMessage(s.channel, rabbitmq.ExchangeName,
			rabbitmq.RoutingKeySubscriptionCanceled, canceled); err != nil {
			log.Error("failed to publish subscription canceled event", sl.Err(err))
		}
	}

	log.Info("subscription deleted",
		slog.String("user_uid", userUID),
		slog.String("subscription_id", sub.ID))
	return nil
}

func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, log *slog.Logger, event *billing.Event) error {
	var invoice eventInvoice
	if err := json.Unmarshal(event.Object, &invoice); err != nil {
		log.Error("malformed invoice object", sl.Err(err))
		return nil
	}

	subscriptionID := objectID(invoice.Subscription)
	if subscriptionID == "" {
		// разовые счета не относятся к подпискам
		return nil
	}

	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("retrieve subscription: %w", err)
	}
	if sub.CurrentPeriodEnd == 0 {
		log.Error("invalid period end in invoice payment",
			slog.String("subscription_id", subscriptionID))
		return nil
	}

	status := models.StatusPastDue
	if sub.Status == "active" {
		status = models.StatusActive
	}

	userUID, err := s.repo.RenewByCustomerID(ctx, sub.CustomerID, status,
		time.Unix(sub.CurrentPeriodEnd, 0), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("renew subscription: %w", err)
	}
	if userUID == "" {
		log.Info("subscription not found or stale event",
			slog.String("customer_id", sub.CustomerID))
		return nil
	}

	s.invalidate(ctx, log, userUID)
	log.Info("invoice payment succeeded",
		slog.String("user_uid", userUID),
		slog.String("subscription_id", subscriptionID))
	return nil
}

// invalidate сбрасывает кешированную запись подписки пользователя.
// Ошибка кеша не прерывает обработку события.
func (s *Service) invalidate(ctx context.Context, log *slog.Logger, userUID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "subscription:"+userUID); err != nil {
		log.Error("failed to invalidate subscription cache", sl.Err(err),
			slog.String("user_uid", userUID))
	}
}
