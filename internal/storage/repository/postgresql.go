// Package repository реализует хранилище данных на основе PostgreSQL
// для записей подписок, пользователей и купонов. Записи подписок
// обновляются условно по отметке времени события провайдера, поэтому
// повторные и устаревшие webhook-события не затирают свежее состояние.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища. Сервисы сопоставляют их через errors.Is.
var (
	// ErrSubscriptionNotFound запись подписки отсутствует.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrUserNotFound пользователь отсутствует.
	ErrUserNotFound = errors.New("user not found")
	// ErrCouponNotFound купон с таким кодом отсутствует.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponAlreadyUsed купон уже был погашен.
	ErrCouponAlreadyUsed = errors.New("coupon already used")
	// ErrCouponExists купон с таким кодом уже существует.
	ErrCouponExists = errors.New("coupon already exists")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с подписками, пользователями и купонами.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	return nil
}
