// Package coupon содержит бизнес-логику промо-купонов: атомарное
// погашение с повышением роли пользователя, выпуск и удаление купонов.
package coupon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

// CouponRepository определяет методы хранилища, используемые купонами.
type CouponRepository interface {
	// CreateCoupon сохраняет новый купон и возвращает его ID.
	CreateCoupon(ctx context.Context, coupon models.Coupon) (string, error)
	// RedeemCoupon атомарно гасит купон и повышает пользователя до admin.
	RedeemCoupon(ctx context.Context, code, userUID string) error
	// DeleteUnusedCoupon удаляет непогашенный купон, возвращает число удалённых строк.
	DeleteUnusedCoupon(ctx context.Context, id string) (int, error)
}

// Service реализует операции с купонами.
type Service struct {
	repo CouponRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo CouponRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// Redeem гасит купон по коду от имени пользователя. Купон одноразовый:
// из конкурирующих запросов успешен только первый, остальные получают
// repository.ErrCouponAlreadyUsed.
func (s *Service) Redeem(ctx context.Context, code, userUID string) error {
	const op = "services.coupon.Redeem"

	if err := s.repo.RedeemCoupon(ctx, normalizeCode(code), userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("coupon redeemed",
		slog.String("user_uid", userUID))
	return nil
}

// Create выпускает новый купон и возвращает его ID.
func (s *Service) Create(ctx context.Context, req models.DummyCoupon, createdBy string) (string, error) {
	const op = "services.coupon.Create"

	coupon := models.Coupon{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Code:      normalizeCode(req.Code),
		CreatedBy: createdBy,
	}
	id, err := s.repo.CreateCoupon(ctx, coupon)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("coupon created",
		slog.String("coupon_id", id),
		slog.String("created_by", createdBy))
	return id, nil
}

// Delete удаляет непогашенный купон. Погашенный или отсутствующий купон
// возвращает repository.ErrCouponNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "services.coupon.Delete"

	deleted, err := s.repo.DeleteUnusedCoupon(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrCouponNotFound)
	}

	s.log.Info("coupon deleted", slog.String("coupon_id", id))
	return nil
}

// normalizeCode приводит код купона к хранимой форме: без пробелов
// по краям, в верхнем регистре.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
