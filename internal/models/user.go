// models содержит модели данных донорского API.
// Поля зеркалят JSON-контракт бэкенда (snake_case), поэтому структуры
// используются и в запросах/ответах HTTP-клиента, и в локальном хранилище.
package models

// User — учётная запись пользователя, возвращаемая бэкендом при входе
// и подтверждении OTP. Кэшируется локально в ключе userInfo.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsStaff    bool   `json:"is_staff"`
	IsVerified bool   `json:"is_verified"`
}
