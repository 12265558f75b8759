// Package models содержит доменные структуры биллинга: запись подписки,
// пользователя и промокод, а также вспомогательные типы для приёма данных
// из JSON-запросов и от платёжного провайдера.
package models

import "time"

// Статусы подписки в системе. Более детальный словарь провайдера
// сводится к этим четырём значениям функцией NormalizeStatus.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusCanceled = "canceled"
	StatusPastDue  = "past_due"
)

// Типы тарифных планов.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Subscription представляет запись подписки пользователя — ровно одна
// на пользователя, ключ user_uid. Идентификаторы провайдера пустые
// у пробного периода без карты. Запись никогда не удаляется: отмена
// моделируется статусом "canceled".
type Subscription struct {
	UserUID              string     `json:"user_uid"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	Status               string     `json:"status"`
	PlanType             string     `json:"plan_type"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CreatedAt            *time.Time `json:"created_at,omitempty"`
	// LastEventAt — отметка времени (unix-секунды) последнего применённого
	// события провайдера; устаревшие события с меньшей отметкой пропускаются.
	LastEventAt int64 `json:"-"`
}

// HasAccess вычисляет действующий доступ по записи подписки:
// статус active или trialing и дата окончания периода в будущем.
// Роль admin обходит подписку целиком и проверяется отдельно.
func (s *Subscription) HasAccess(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status != StatusActive && s.Status != StatusTrialing {
		return false
	}
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.After(now)
}

// NormalizeStatus сводит словарь статусов провайдера к системному:
// trialing и past_due сохраняются, canceled и unpaid считаются отменой,
// всё остальное (active, incomplete и т.д.) — active.
func NormalizeStatus(providerStatus string) string {
	switch providerStatus {
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled", "unpaid":
		return StatusCanceled
	default:
		return StatusActive
	}
}

// ProviderUpdate — набор полей, которые реконсилятор применяет к записи
// подписки по событию провайдера. EventAt используется условной записью
// как защита от доставки событий не по порядку.
type ProviderUpdate struct {
	UserUID              string
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               string
	PlanType             string
	CurrentPeriodEnd     time.Time
	CreatedAt            time.Time
	EventAt              int64
}
