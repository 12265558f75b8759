package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	portalsession "github.com/stripe/stripe-go/v83/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/subscription"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeGateway реализует Gateway поверх Stripe SDK.
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway устанавливает глобальный API-ключ Stripe и возвращает шлюз.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

// CreateCustomer создаёт покупателя Stripe с uid пользователя в metadata,
// чтобы webhook-события можно было сопоставить с пользователем.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, userUID string) (string, error) {
	const op = "billing.StripeGateway.CreateCustomer"

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_uid", userUID)

	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return c.ID, nil
}

// CreateCheckoutSession создаёт checkout-сессию в режиме подписки.
// Metadata с uid пользователя и типом плана кладётся и на сессию,
// и на будущую подписку.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	const op = "billing.StripeGateway.CreateCheckoutSession"

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_uid":  p.UserUID,
				"plan_type": p.PlanType,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_uid", p.UserUID)
	params.AddMetadata("plan_type", p.PlanType)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession создаёт сессию портала самообслуживания Stripe.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "billing.StripeGateway.CreatePortalSession"

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// GetSubscription возвращает подписку Stripe в нормализованном виде.
// Конец оплаченного периода берётся с позиции подписки: в текущих версиях
// API он хранится на items, а не на самой подписке.
func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	const op = "billing.StripeGateway.GetSubscription"

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var periodEnd int64
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		periodEnd = sub.Items.Data[0].CurrentPeriodEnd
	}

	var customerID string
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	return &ProviderSubscription{
		ID:               sub.ID,
		CustomerID:       customerID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: periodEnd,
		Created:          sub.Created,
		Metadata:         sub.Metadata,
	}, nil
}

// ConstructEvent проверяет подпись webhook и возвращает разобранное событие.
// Несовпадение версии API не считается ошибкой: подпись всё равно
// проверяется, а объект события разбирают потребители по сырому JSON.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	const op = "billing.StripeGateway.ConstructEvent"

	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	return &Event{
		ID:        ev.ID,
		Type:      string(ev.Type),
		CreatedAt: ev.Created,
		Object:    ev.Data.Raw,
	}, nil
}
