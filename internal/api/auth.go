package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Moneyhil/fyp-project/internal/models"
)

// authResponse — ответ login/verify-otp. Поле access-токена в разных
// ревизиях бэкенда называлось token либо access_token; принимаем оба.
type authResponse struct {
	Message      string       `json:"message"`
	User         *models.User `json:"user"`
	Token        string       `json:"token"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// session собирает models.Session, нормализуя имя поля access-токена.
func (r *authResponse) session() *models.Session {
	access := r.AccessToken
	if access == "" {
		access = r.Token
	}

	return &models.Session{
		AccessToken:  access,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
}

// VerifyToken проверяет access-токен на бэкенде. nil — токен валиден.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) error {
	const op = "api.auth.VerifyToken"

	in := struct {
		Token string `json:"token"`
	}{Token: accessToken}

	if err := c.Do(ctx, http.MethodPost, "/token/verify/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshToken обменивает refresh-токен на новый access-токен.
// Ротация refresh-токена на бэкенде опциональна: newRefresh == "" означает,
// что действующий refresh-токен остаётся прежним.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (access, newRefresh string, err error) {
	const op = "api.auth.RefreshToken"

	in := struct {
		Refresh string `json:"refresh"`
	}{Refresh: refreshToken}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	if err := c.Do(ctx, http.MethodPost, "/token/refresh/", "", in, &out); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return out.Access, out.Refresh, nil
}

// Login выполняет вход по email+пароль и возвращает сессию.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "api.auth.Login"

	in := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var out authResponse
	if err := c.Do(ctx, http.MethodPost, "/login/", "", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out.session(), nil
}

// Register создаёт учётную запись. Подтверждение email идёт отдельным
// OTP-шагом (SendOTP/VerifyOTP), токены здесь не выдаются.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	const op = "api.auth.Register"

	in := struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Name: name, Email: email, Password: password}

	if err := c.Do(ctx, http.MethodPost, "/registration/create/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SendOTP просит бэкенд отправить одноразовый код на email.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	const op = "api.auth.SendOTP"

	in := struct {
		Email string `json:"email"`
	}{Email: email}

	if err := c.Do(ctx, http.MethodPost, "/send-otp/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VerifyOTP подтверждает email одноразовым кодом; при успехе бэкенд
// выдаёт токены и пользователя (автоматический вход).
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*models.Session, error) {
	const op = "api.auth.VerifyOTP"

	in := struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}{Email: email, OTP: otp}

	var out authResponse
	if err := c.Do(ctx, http.MethodPost, "/verify-otp/", "", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out.session(), nil
}

// Logout отзывает refresh-токен на бэкенде (blacklist).
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	const op = "api.auth.Logout"

	in := struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: refreshToken}

	if err := c.Do(ctx, http.MethodPost, "/logout/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ForgotPassword запускает восстановление пароля: бэкенд шлёт OTP на email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	const op = "api.auth.ForgotPassword"

	in := struct {
		Email string `json:"email"`
	}{Email: email}

	if err := c.Do(ctx, http.MethodPost, "/forgot-password/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VerifyResetOTP проверяет код восстановления пароля.
func (c *Client) VerifyResetOTP(ctx context.Context, email, otp string) error {
	const op = "api.auth.VerifyResetOTP"

	in := struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}{Email: email, OTP: otp}

	if err := c.Do(ctx, http.MethodPost, "/verify-reset-otp/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword устанавливает новый пароль после подтверждения OTP.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	const op = "api.auth.ResetPassword"

	in := struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}{Email: email, OTP: otp, NewPassword: newPassword}

	if err := c.Do(ctx, http.MethodPost, "/reset-password/", "", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
