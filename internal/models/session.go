package models

// Session — аутентифицированная сессия устройства.
//
// Инвариант: AccessToken и User присутствуют вместе либо отсутствуют вместе;
// RefreshToken может протухнуть независимо от номинального срока access-токена.
// Жизненный цикл: создаётся при login/verify-otp, оба токена заменяются при
// тихом refresh, уничтожается при logout или терминальной ошибке аутентификации.
type Session struct {
	// AccessToken — короткоживущий bearer-токен для авторизации запросов.
	AccessToken string
	// RefreshToken — долгоживущий секрет для обновления пары токенов.
	RefreshToken string
	// User — локально кэшируемые данные пользователя.
	User *User
}
