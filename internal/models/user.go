package models

import "time"

// Роли пользователя. Роль admin обходит проверку подписки по всей системе.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User представляет зарегистрированного пользователя системы.
// Создаётся при регистрации (вне этого сервиса); здесь роль меняется
// только погашением промокода (user -> admin).
type User struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
