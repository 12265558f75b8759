package models

import "time"

// Coupon представляет одноразовый промокод, дающий роль admin.
// Код хранится нормализованным (верхний регистр, уникальный).
// Ненулевой UsedBy — терминальное состояние: погасить повторно нельзя,
// удалить использованный купон тоже нельзя.
type Coupon struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedBy string    `json:"created_by"`
	UsedBy    *string   `json:"used_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DummyCoupon используется для приёма данных из JSON-запроса на создание
// промокода, до нормализации кода.
type DummyCoupon struct {
	Name string `json:"name" validate:"required"` // Отображаемое имя купона
	Code string `json:"code" validate:"required"` // Код купона
}
