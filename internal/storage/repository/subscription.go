package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/billing-core/internal/models"
)

// GetByUserUID возвращает запись подписки пользователя.
func (s *Storage) GetByUserUID(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetByUserUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, stripe_customer_id, stripe_subscription_id, status,
				  plan_type, current_period_end, created_at, last_event_at
			  FROM subscriptions WHERE user_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	var (
		result                      models.Subscription
		customerID, subscriptionID  sql.NullString
		currentPeriodEnd, createdAt sql.NullTime
		lastEventAt                 sql.NullInt64
	)
	if err := row.Scan(&result.UserUID, &customerID, &subscriptionID, &result.Status,
		&result.PlanType, &currentPeriodEnd, &createdAt, &lastEventAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result.StripeCustomerID = customerID.String
	result.StripeSubscriptionID = subscriptionID.String
	if currentPeriodEnd.Valid {
		result.CurrentPeriodEnd = &currentPeriodEnd.Time
	}
	if createdAt.Valid {
		result.CreatedAt = &createdAt.Time
	}
	result.LastEventAt = lastEventAt.Int64
	return &result, nil
}

// SaveCustomerID сохраняет идентификатор покупателя у провайдера,
// не затрагивая остальные поля существующей записи.
func (s *Storage) SaveCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SaveCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, stripe_customer_id)
			  VALUES ($1, $2)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET stripe_customer_id = EXCLUDED.stripe_customer_id`
	if _, err := s.DB.ExecContext(ctx, query, userUID, customerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// StartTrial переводит подписку пользователя в статус trialing до periodEnd.
// Идентификаторы провайдера при этом сохраняются, если уже были записаны.
func (s *Storage) StartTrial(ctx context.Context, userUID string, periodEnd time.Time) error {
	const op = "storage.StartTrial"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, status, plan_type, current_period_end, created_at)
			  VALUES ($1, 'trialing', 'monthly', $2, now())
			  ON CONFLICT (user_uid) DO UPDATE
			  SET status = EXCLUDED.status,
			      plan_type = EXCLUDED.plan_type,
			      current_period_end = EXCLUDED.current_period_end`
	if _, err := s.DB.ExecContext(ctx, query, userUID, periodEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplyCheckoutCompleted записывает состояние подписки после завершения
// checkout. Обновление выполняется только если отметка события не старше
// уже записанной; возвращает false, если событие устарело и пропущено.
// Некорректный или неизвестный uid пользователя в метаданных события —
// тоже false без ошибки: такое событие не станет валидным при повторной
// доставке, возврат ошибки зациклил бы ретраи провайдера.
func (s *Storage) ApplyCheckoutCompleted(ctx context.Context, upd models.ProviderUpdate) (bool, error) {
	const op = "storage.ApplyCheckoutCompleted"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, stripe_customer_id, stripe_subscription_id,
			      status, plan_type, current_period_end, created_at, last_event_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET stripe_customer_id = EXCLUDED.stripe_customer_id,
			      stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			      status = EXCLUDED.status,
			      plan_type = EXCLUDED.plan_type,
			      current_period_end = EXCLUDED.current_period_end,
			      created_at = EXCLUDED.created_at,
			      last_event_at = EXCLUDED.last_event_at
			  WHERE subscriptions.last_event_at IS NULL
			     OR subscriptions.last_event_at <= EXCLUDED.last_event_at
			  RETURNING user_uid`
	var userUID string
	err := s.DB.QueryRowContext(ctx, query,
		upd.UserUID, upd.StripeCustomerID, upd.StripeSubscriptionID, upd.Status,
		upd.PlanType, upd.CurrentPeriodEnd, upd.CreatedAt, upd.EventAt).Scan(&userUID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		// 22P02 — uid не является UUID, 23503 — пользователь не существует
		if errors.As(err, &pgErr) && (pgErr.Code == "22P02" || pgErr.Code == "23503") {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// UpdateByCustomerID обновляет статус и период подписки по идентификатору
// покупателя. Пустой plan_type сохраняет прежнее значение. Возвращает uid
// пользователя; пустая строка означает, что запись не найдена или событие
// устарело и пропущено.
func (s *Storage) UpdateByCustomerID(ctx context.Context, upd models.ProviderUpdate) (string, error) {
	const op = "storage.UpdateByCustomerID"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET stripe_subscription_id = $2,
			      status = $3,
			      plan_type = COALESCE(NULLIF($4, ''), plan_type),
			      current_period_end = $5,
			      last_event_at = $6
			  WHERE stripe_customer_id = $1
			    AND (last_event_at IS NULL OR last_event_at <= $6)
			  RETURNING user_uid`
	var userUID string
	err := s.DB.QueryRowContext(ctx, query,
		upd.StripeCustomerID, upd.StripeSubscriptionID, upd.Status,
		upd.PlanType, upd.CurrentPeriodEnd, upd.EventAt).Scan(&userUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}

// CancelByCustomerID помечает подписку покупателя отменённой. Возвращает
// uid пользователя; пустая строка означает, что запись не найдена или
// событие устарело и пропущено.
func (s *Storage) CancelByCustomerID(ctx context.Context, customerID string, eventAt int64) (string, error) {
	const op = "storage.CancelByCustomerID"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'canceled',
			      last_event_at = $2
			  WHERE stripe_customer_id = $1
			    AND (last_event_at IS NULL OR last_event_at <= $2)
			  RETURNING user_uid`
	var userUID string
	err := s.DB.QueryRowContext(ctx, query, customerID, eventAt).Scan(&userUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}

// RenewByCustomerID продлевает оплаченный период подписки покупателя после
// успешного платежа. Возвращает uid пользователя; пустая строка означает,
// что запись не найдена или событие устарело и пропущено.
func (s *Storage) RenewByCustomerID(ctx context.Context, customerID, status string, periodEnd time.Time, eventAt int64) (string, error) {
	const op = "storage.RenewByCustomerID"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $2,
			      current_period_end = $3,
			      last_event_at = $4
			  WHERE stripe_customer_id = $1
			    AND (last_event_at IS NULL OR last_event_at <= $4)
			  RETURNING user_uid`
	var userUID string
	err := s.DB.QueryRowContext(ctx, query, customerID, status, periodEnd, eventAt).Scan(&userUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}
