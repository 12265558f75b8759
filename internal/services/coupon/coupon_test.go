package coupon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/billing-core/internal/models"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateCoupon(ctx context.Context, coupon models.Coupon) (string, error) {
	args := m.Called(ctx, coupon)
	return args.String(0), args.Error(1)
}
func (m *RepoMock) RedeemCoupon(ctx context.Context, code, userUID string) error {
	args := m.Called(ctx, code, userUID)
	return args.Error(0)
}
func (m *RepoMock) DeleteUnusedCoupon(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{
			name: "успешное погашение",
		},
		{
			name:    "купон не найден",
			repoErr: repository.ErrCouponNotFound,
			wantErr: repository.ErrCouponNotFound,
		},
		{
			name:    "купон уже погашен",
			repoErr: repository.ErrCouponAlreadyUsed,
			wantErr: repository.ErrCouponAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("RedeemCoupon", mock.Anything, "CODE-1", "uid-1").Return(tt.repoErr)

			svc := New(repo, newNoopLogger())
			err := svc.Redeem(ctx, "CODE-1", "uid-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestRedeem_NormalizesCode(t *testing.T) {
	repo := new(RepoMock)
	repo.On("RedeemCoupon", mock.Anything, "CODE-1", "uid-1").Return(nil)

	svc := New(repo, newNoopLogger())
	err := svc.Redeem(context.Background(), " code-1 ", "uid-1")

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCreate(t *testing.T) {
	repo := new(RepoMock)
	var got models.Coupon
	repo.On("CreateCoupon", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			got = args.Get(1).(models.Coupon)
		}).
		Return("generated-id", nil)

	svc := New(repo, newNoopLogger())
	id, err := svc.Create(context.Background(),
		models.DummyCoupon{Name: "Launch promo", Code: " launch-1 "}, "admin-1")

	require.NoError(t, err)
	assert.Equal(t, "generated-id", id)
	assert.Equal(t, "Launch promo", got.Name)
	assert.Equal(t, "LAUNCH-1", got.Code, "код должен храниться нормализованным")
	assert.Equal(t, "admin-1", got.CreatedBy)
	_, err = uuid.Parse(got.ID)
	assert.NoError(t, err)
}

func TestCreate_DuplicateCode(t *testing.T) {
	repo := new(RepoMock)
	repo.On("CreateCoupon", mock.Anything, mock.Anything).
		Return("", repository.ErrCouponExists)

	svc := New(repo, newNoopLogger())
	_, err := svc.Create(context.Background(),
		models.DummyCoupon{Name: "Launch promo", Code: "LAUNCH-1"}, "admin-1")

	assert.ErrorIs(t, err, repository.ErrCouponExists)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		deleted int
		repoErr error
		wantErr error
	}{
		{
			name:    "успешное удаление",
			deleted: 1,
		},
		{
			name:    "купон отсутствует или уже погашен",
			deleted: 0,
			wantErr: repository.ErrCouponNotFound,
		},
		{
			name:    "ошибка хранилища",
			repoErr: errors.New("db down"),
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("DeleteUnusedCoupon", mock.Anything, "coupon-1").
				Return(tt.deleted, tt.repoErr)

			svc := New(repo, newNoopLogger())
			err := svc.Delete(context.Background(), "coupon-1")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}
