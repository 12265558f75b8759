package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/billing-core/internal/models"
)

// CreateCoupon сохраняет новый купон и возвращает его ID.
// Повторный код купона возвращает ErrCouponExists.
func (s *Storage) CreateCoupon(ctx context.Context, coupon models.Coupon) (string, error) {
	const op = "storage.CreateCoupon"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO coupons (id, name, code, created_by)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		coupon.ID, coupon.Name, coupon.Code, coupon.CreatedBy).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("%s: %w", op, ErrCouponExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// RedeemCoupon атомарно гасит купон и повышает пользователя до роли admin.
// Строка купона блокируется на время транзакции, поэтому из двух
// конкурирующих запросов выигрывает только один.
func (s *Storage) RedeemCoupon(ctx context.Context, code, userUID string) error {
	const op = "storage.RedeemCoupon"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		couponID string
		usedBy   sql.NullString
	)
	row := tx.QueryRowContext(ctx,
		`SELECT id, used_by FROM coupons WHERE code = $1 FOR UPDATE`, code)
	if err := row.Scan(&couponID, &usedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrCouponNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if usedBy.Valid {
		return fmt.Errorf("%s: %w", op, ErrCouponAlreadyUsed)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE coupons SET used_by = $1, used_at = now() WHERE id = $2`,
		userUID, couponID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET role = 'admin', updated_at = now() WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUnusedCoupon удаляет купон, если он ещё не был погашен.
// Возвращает количество удалённых строк.
func (s *Storage) DeleteUnusedCoupon(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteUnusedCoupon"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM coupons WHERE id = $1 AND used_by IS NULL`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
