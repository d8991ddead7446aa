// session реализует клиентский менеджер аутентификационной сессии:
// хранение токенов, проверку статуса с тихим refresh, единственный
// повтор запроса при 401 и гарантированную очистку протухших учёток.
//
// Основные аспекты:
//   - Manager — единственный владелец трёх ключей хранилища (authToken,
//     refreshToken, userInfo); экраны/команды не читают хранилище напрямую.
//   - Набор ключей пишется и чистится как одно целое: упорядоченные записи
//     с компенсирующей очисткой при частичном сбое (хранилище атомарно
//     только на уровне одиночной записи).
//   - Refresh выполняется строго один раз на запрос; повторный 401 после
//     refresh — терминальный ErrSessionExpired, без циклов.
//   - Сетевые сбои verify/refresh трактуются как неуспех аутентификации:
//     ложный выход из сессии дешевле зависшего интерфейса.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/Moneyhil/fyp-project/internal/api"
	"github.com/Moneyhil/fyp-project/internal/models"
	"github.com/Moneyhil/fyp-project/internal/pkg/log"
	"github.com/Moneyhil/fyp-project/internal/pkg/redact"
	"github.com/Moneyhil/fyp-project/internal/store"
)

// Ключи хранилища сессии. Имена сохранены от мобильного клиента,
// чтобы не терять сессию при миграции устройства.
const (
	keyAuthToken    = "authToken"
	keyRefreshToken = "refreshToken"
	keyUserInfo     = "userInfo"
)

var (
	// ErrNotAuthenticated — операция требует сессию, а её нет.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired — терминальный отказ: refresh не удался либо
	// обновлённый токен снова отвергнут. Локальная сессия уже очищена.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidEmail — email не проходит валидацию формата.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyPassword — пароль пустой.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrWeakPassword — пароль короче 8 символов (политика бэкенда).
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyName — имя при регистрации пустое.
	ErrEmptyName = errors.New("name is empty")

	// ErrInvalidOTP — код не из 6 цифр.
	ErrInvalidOTP = errors.New("invalid otp code")
)

// Status — результат проверки статуса аутентификации.
type Status struct {
	Authenticated bool
	User          *models.User
}

// Manager — менеджер сессии. Безопасен для конкурентного использования;
// взаимного исключения refresh между независимыми вызовами Do нет —
// в худшем случае выполняются два refresh подряд (допустимая гонка).
type Manager struct {
	store store.Store
	api   *api.Client
}

// New создаёт менеджер сессии.
func New(st store.Store, client *api.Client) *Manager {
	return &Manager{
		store: st,
		api:   client,
	}
}

// CheckAuthStatus отвечает "есть ли валидная сессия и чья".
//
// Порядок:
//  1. нет access-токена или кэша пользователя — {false, nil} без сети;
//  2. verify токена на бэкенде; успех — {true, кэшированный пользователь};
//  3. verify не прошёл (включая сетевой сбой) — одна попытка refresh;
//     успех — сохранить новую пару и вернуть {true, пользователь};
//  4. refresh не удался — очистить все три ключа, {false, nil}.
//
// Никогда не возвращает Authenticated без пользователя из локального кэша:
// verify/refresh пользователя не возвращают, кэш доверен после проверки токена.
func (m *Manager) CheckAuthStatus(ctx context.Context) (Status, error) {
	const op = "session.manager.CheckAuthStatus"

	lg := log.From(ctx)

	access, err := m.getOptional(ctx, keyAuthToken)
	if err != nil {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}

	userRaw, err := m.getOptional(ctx, keyUserInfo)
	if err != nil {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}

	if access == "" || userRaw == "" {
		return Status{}, nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		// Повреждённый кэш пользователя равносилен отсутствию сессии.
		lg.Warn("user_cache_corrupted", slog.String("op", op))
		if err := m.purge(ctx); err != nil {
			return Status{}, fmt.Errorf("%s: %w", op, err)
		}

		return Status{}, nil
	}

	if err := m.api.VerifyToken(ctx, access); err == nil {
		return Status{Authenticated: true, User: &user}, nil
	}

	if _, err := m.refreshAndPersist(ctx); err != nil {
		lg.Info("session_refresh_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(user.Email)),
		)
		if err := m.purge(ctx); err != nil {
			return Status{}, fmt.Errorf("%s: %w", op, err)
		}

		return Status{}, nil
	}

	return Status{Authenticated: true, User: &user}, nil
}

// Do выполняет аутентифицированный запрос к API от имени текущей сессии.
//
// К запросу автоматически добавляется bearer-токен. На 401 выполняется
// ровно одна попытка refresh и ровно один повтор исходного запроса с новым
// токеном. Повторный 401 либо неуспех refresh — очистка сессии и
// ErrSessionExpired. Все прочие ошибки проходят вызывающему без изменений.
func (m *Manager) Do(ctx context.Context, method, path string, in, out any) error {
	const op = "session.manager.Do"

	lg := log.From(ctx)

	access, err := m.store.Get(ctx, keyAuthToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	err = m.api.Do(ctx, method, path, access, in, out)
	if err == nil || !errors.Is(err, api.ErrUnauthenticated) {
		return err
	}

	lg.Debug("access_token_rejected",
		slog.String("op", op),
		slog.String("path", path),
	)

	access, err = m.refreshAndPersist(ctx)
	if err != nil {
		if purgeErr := m.purge(ctx); purgeErr != nil {
			return fmt.Errorf("%s: %w", op, purgeErr)
		}

		return fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	err = m.api.Do(ctx, method, path, access, in, out)
	if err != nil && errors.Is(err, api.ErrUnauthenticated) {
		// Обновлённый токен снова отвергнут — сессия мертва, не повторяем.
		if purgeErr := m.purge(ctx); purgeErr != nil {
			return fmt.Errorf("%s: %w", op, purgeErr)
		}

		return fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	return err
}

// Login выполняет вход и атомарно сохраняет сессию.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "session.manager.Login"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	s, err := m.api.Login(ctx, normEmail, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.persistSession(ctx, s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("login_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(normEmail)),
	)

	return s, nil
}

// Register создаёт учётную запись. Сессия здесь не появляется:
// вход произойдёт после подтверждения email через VerifyOTP.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	const op = "session.manager.Register"

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyName)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.api.Register(ctx, strings.TrimSpace(name), normEmail, password); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SendOTP просит бэкенд отправить код подтверждения на email.
func (m *Manager) SendOTP(ctx context.Context, email string) error {
	const op = "session.manager.SendOTP"

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := m.api.SendOTP(ctx, normEmail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VerifyOTP подтверждает email кодом; при успехе бэкенд выдаёт токены
// и пользователя, сессия сохраняется атомарно (автоматический вход).
func (m *Manager) VerifyOTP(ctx context.Context, email, otp string) (*models.Session, error) {
	const op = "session.manager.VerifyOTP"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validateOTP(otp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s, err := m.api.VerifyOTP(ctx, normEmail, otp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.persistSession(ctx, s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// ForgotPassword запускает восстановление пароля.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	const op = "session.manager.ForgotPassword"

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := m.api.ForgotPassword(ctx, normEmail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VerifyResetOTP проверяет код восстановления пароля.
func (m *Manager) VerifyResetOTP(ctx context.Context, email, otp string) error {
	const op = "session.manager.VerifyResetOTP"

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validateOTP(otp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.api.VerifyResetOTP(ctx, normEmail, otp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword устанавливает новый пароль после подтверждения кода.
func (m *Manager) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	const op = "session.manager.ResetPassword"

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validateOTP(otp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.api.ResetPassword(ctx, normEmail, otp, newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Logout завершает сессию.
//
// Порядок фиксирован: сначала best-effort отзыв refresh-токена на бэкенде
// (сетевой сбой логируется и игнорируется), затем безусловная очистка
// локального состояния — устройство не может "застрять залогиненным"
// из-за сетевого сбоя.
func (m *Manager) Logout(ctx context.Context) error {
	const op = "session.manager.Logout"

	lg := log.From(ctx)

	refresh, err := m.getOptional(ctx, keyRefreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if refresh != "" {
		if err := m.api.Logout(ctx, refresh); err != nil {
			lg.Warn("logout_revoke_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	if err := m.purge(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("session_purged", slog.String("op", op))

	return nil
}

// CurrentUser возвращает локально кэшированного пользователя.
// Валидность токена здесь не проверяется — для этого есть CheckAuthStatus.
func (m *Manager) CurrentUser(ctx context.Context) (*models.User, error) {
	const op = "session.manager.CurrentUser"

	raw, err := m.store.Get(ctx, keyUserInfo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	return &user, nil
}

// refreshAndPersist выполняет один обмен refresh-токена и сохраняет результат.
// Новый refresh-токен пишется только если бэкенд его вернул (ротация опциональна).
func (m *Manager) refreshAndPersist(ctx context.Context) (string, error) {
	const op = "session.manager.refreshAndPersist"

	refresh, err := m.store.Get(ctx, keyRefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	access, newRefresh, err := m.api.RefreshToken(ctx, refresh)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := m.store.Set(ctx, keyAuthToken, access); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if newRefresh != "" {
		if err := m.store.Set(ctx, keyRefreshToken, newRefresh); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	return access, nil
}

// persistSession сохраняет все три ключа сессии как одно целое:
// при сбое любой записи уже записанное компенсируется полной очисткой,
// чтобы не остаться с токеном без пользователя или наоборот.
func (m *Manager) persistSession(ctx context.Context, s *models.Session) error {
	const op = "session.manager.persistSession"

	if s == nil || s.AccessToken == "" || s.User == nil {
		return fmt.Errorf("%s: incomplete session from backend", op)
	}

	userRaw, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.store.Set(ctx, keyAuthToken, s.AccessToken); err != nil {
		return m.rollback(ctx, op, err)
	}

	if err := m.store.Set(ctx, keyRefreshToken, s.RefreshToken); err != nil {
		return m.rollback(ctx, op, err)
	}

	if err := m.store.Set(ctx, keyUserInfo, string(userRaw)); err != nil {
		return m.rollback(ctx, op, err)
	}

	return nil
}

// rollback чистит частично записанную сессию и возвращает исходную ошибку.
func (m *Manager) rollback(ctx context.Context, op string, cause error) error {
	if err := m.purge(ctx); err != nil {
		log.From(ctx).Error("session_rollback_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return fmt.Errorf("%s: %w", op, cause)
}

// purge удаляет все три ключа сессии. Идемпотентен; при ошибке продолжает
// удалять остальные ключи и возвращает первую ошибку.
func (m *Manager) purge(ctx context.Context) error {
	const op = "session.manager.purge"

	var first error
	for _, key := range []string{keyAuthToken, keyRefreshToken, keyUserInfo} {
		if err := m.store.Remove(ctx, key); err != nil && first == nil {
			first = err
		}
	}

	if first != nil {
		return fmt.Errorf("%s: %w", op, first)
	}

	return nil
}

// getOptional возвращает значение ключа либо "" при его отсутствии.
func (m *Manager) getOptional(ctx context.Context, key string) (string, error) {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}

		return "", err
	}

	return v, nil
}

// validateEmail проверяет базовый формат email и нормализует регистр.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет политику бэкенда: длина >= 8.
func validatePassword(pw string) error {
	if pw == "" {
		return ErrEmptyPassword
	}

	if len([]rune(pw)) < 8 {
		return ErrWeakPassword
	}

	return nil
}

// validateOTP проверяет формат кода: ровно 6 цифр.
func validateOTP(otp string) error {
	if len(otp) != 6 {
		return ErrInvalidOTP
	}

	for _, r := range otp {
		if !unicode.IsDigit(r) {
			return ErrInvalidOTP
		}
	}

	return nil
}
