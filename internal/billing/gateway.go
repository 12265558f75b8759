// Package billing определяет провайдер-нейтральный интерфейс платёжного
// шлюза и типы данных, которыми оперируют сервисы биллинга. Конкретная
// реализация для Stripe находится в этом же пакете.
package billing

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidSignature возвращается, если подпись webhook не прошла проверку.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// CheckoutParams параметры создания checkout-сессии.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	PlanType   string
	UserUID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession результат создания checkout-сессии у провайдера.
type CheckoutSession struct {
	ID  string
	URL string
}

// ProviderSubscription нормализованное представление подписки у провайдера.
// CurrentPeriodEnd и Created — unix-время в секундах.
type ProviderSubscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd int64
	Created          int64
	Metadata         map[string]string
}

// Event событие провайдера после проверки подписи. Object содержит
// сырой JSON объекта события, его разбирают потребители.
type Event struct {
	ID        string
	Type      string
	CreatedAt int64
	Object    json.RawMessage
}

// Gateway описывает операции платёжного провайдера, необходимые биллингу.
type Gateway interface {
	// CreateCustomer создаёт покупателя и возвращает его идентификатор.
	CreateCustomer(ctx context.Context, email, userUID string) (string, error)
	// CreateCheckoutSession создаёт checkout-сессию в режиме подписки.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	// CreatePortalSession создаёт сессию портала самообслуживания и возвращает её URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// GetSubscription возвращает подписку провайдера по идентификатору.
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	// ConstructEvent проверяет подпись webhook и разбирает событие.
	// При неверной подписи возвращает ошибку, оборачивающую ErrInvalidSignature.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
