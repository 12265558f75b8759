package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasAccess(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{
			name: "активная подписка с периодом в будущем",
			sub:  &Subscription{Status: StatusActive, CurrentPeriodEnd: &future},
			want: true,
		},
		{
			name: "пробный период с периодом в будущем",
			sub:  &Subscription{Status: StatusTrialing, CurrentPeriodEnd: &future},
			want: true,
		},
		{
			name: "активная подписка с истёкшим периодом",
			sub:  &Subscription{Status: StatusActive, CurrentPeriodEnd: &past},
			want: false,
		},
		{
			name: "отменённая подписка с периодом в будущем",
			sub:  &Subscription{Status: StatusCanceled, CurrentPeriodEnd: &future},
			want: false,
		},
		{
			name: "просроченная оплата",
			sub:  &Subscription{Status: StatusPastDue, CurrentPeriodEnd: &future},
			want: false,
		},
		{
			name: "нет даты окончания периода",
			sub:  &Subscription{Status: StatusActive},
			want: false,
		},
		{
			name: "нет записи",
			sub:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.HasAccess(now))
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"trialing", StatusTrialing},
		{"past_due", StatusPastDue},
		{"canceled", StatusCanceled},
		{"unpaid", StatusCanceled},
		{"active", StatusActive},
		{"incomplete", StatusActive},
		{"incomplete_expired", StatusActive},
		{"", StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.provider))
		})
	}
}
