// Package trial содержит бизнес-логику бесплатного пробного периода
// без привязки карты: подписка переводится в статус trialing на семь
// дней, событие trial.started публикуется для воркеров уведомлений.
package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/rabbitmq"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

// TrialDays длительность пробного периода в днях.
const TrialDays = 7

// ErrAlreadyActive у пользователя уже есть действующая подписка или пробный период.
var ErrAlreadyActive = errors.New("subscription or trial already active")

// SubscriptionRepository определяет методы хранилища, используемые пробным периодом.
type SubscriptionRepository interface {
	// GetByUserUID возвращает запись подписки пользователя.
	GetByUserUID(ctx context.Context, userUID string) (*models.Subscription, error)
	// StartTrial переводит подписку пользователя в статус trialing до periodEnd.
	StartTrial(ctx context.Context, userUID string, periodEnd time.Time) error
}

// Service реализует запуск бесплатного пробного периода.
type Service struct {
	repo    SubscriptionRepository
	channel *amqp.Channel
	log     *slog.Logger
}

// New создает новый экземпляр Service. Канал RabbitMQ может быть nil,
// тогда события не публикуются.
func New(repo SubscriptionRepository, channel *amqp.Channel, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		channel: channel,
		log:     log,
	}
}

// TrialStartedEvent сообщение о запуске пробного периода.
type TrialStartedEvent struct {
	UserUID     string    `json:"user_uid"`
	TrialEndsAt time.Time `json:"trial_ends_at"`
}

// Start запускает семидневный пробный период для пользователя.
// Запуск запрещён, пока действует подписка или прежний пробный период;
// истёкшие записи не мешают новому запуску. Публикация события
// выполняется по возможности и не влияет на результат.
func (s *Service) Start(ctx context.Context, userUID string) (time.Time, error) {
	const op = "services.trial.Start"

	sub, err := s.repo.GetByUserUID(ctx, userUID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if sub != nil && sub.HasAccess(time.Now()) {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrAlreadyActive)
	}

	trialEndsAt := time.Now().AddDate(0, 0, TrialDays)
	if err := s.repo.StartTrial(ctx, userUID, trialEndsAt); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("free trial started",
		slog.String("user_uid", userUID),
		slog.Time("trial_ends_at", trialEndsAt))

	if s.channel != nil {
		event := TrialStartedEvent{UserUID: userUID, TrialEndsAt: trialEndsAt}
		if err := rabbitmq.PublishMessage(s.channel, rabbitmq.ExchangeName,
			rabbitmq.RoutingKeyTrialStarted, event); err != nil {
			s.log.Error("failed to publish trial started event", sl.Err(err),
				slog.String("user_uid", userUID))
		}
	}

	return trialEndsAt, nil
}
