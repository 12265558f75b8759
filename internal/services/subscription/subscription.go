// Package subscription содержит читающую сторону записей подписок:
// получение записи пользователя и проверку доступа к платным функциям.
// Записи кешируются, кеш сбрасывается при применении событий провайдера.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/billing-core/internal/lib/sl"
	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

// cacheTTL время жизни кешированной записи подписки.
const cacheTTL = time.Hour

// SubscriptionRepository определяет чтение записей подписок из хранилища.
type SubscriptionRepository interface {
	// GetByUserUID возвращает запись подписки пользователя.
	GetByUserUID(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Service реализует чтение записей подписок с кешированием.
type Service struct {
	repo  SubscriptionRepository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service. Кеш может быть nil, тогда чтение
// всегда идёт в хранилище.
func New(repo SubscriptionRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Record представление записи подписки для клиента.
type Record struct {
	Status           string     `json:"status"`
	PlanType         string     `json:"plan_type"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	HasAccess        bool       `json:"has_access"`
}

// GetRecord возвращает запись подписки пользователя с признаком доступа.
// Отсутствие записи не ошибка: возвращается отменённое состояние без доступа.
func (s *Service) GetRecord(ctx context.Context, userUID string) (*Record, error) {
	const op = "services.subscription.GetRecord"

	cacheKey := "subscription:" + userUID

	var sub models.Subscription
	found := false
	if s.cache != nil {
		ok, err := s.cache.Get(ctx, cacheKey, &sub)
		if err != nil {
			s.log.Error("failed to read subscription cache", sl.Err(err),
				slog.String("user_uid", userUID))
		}
		found = ok && err == nil
	}

	if !found {
		stored, err := s.repo.GetByUserUID(ctx, userUID)
		if err != nil {
			if errors.Is(err, repository.ErrSubscriptionNotFound) {
				return &Record{Status: models.StatusCanceled}, nil
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub = *stored

		if s.cache != nil {
			if err := s.cache.Set(ctx, cacheKey, sub, cacheTTL); err != nil {
				s.log.Error("failed to cache subscription", sl.Err(err),
					slog.String("user_uid", userUID))
			}
		}
	}

	return &Record{
		Status:           sub.Status,
		PlanType:         sub.PlanType,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		HasAccess:        sub.HasAccess(time.Now()),
	}, nil
}

// HasAccess сообщает, открыт ли пользователю доступ к платным функциям.
func (s *Service) HasAccess(ctx context.Context, userUID string) (bool, error) {
	const op = "services.subscription.HasAccess"

	record, err := s.GetRecord(ctx, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return record.HasAccess, nil
}
