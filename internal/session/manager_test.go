package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/Moneyhil/fyp-project/internal/api"
	"github.com/Moneyhil/fyp-project/internal/models"
	"github.com/Moneyhil/fyp-project/internal/store"
	"github.com/Moneyhil/fyp-project/internal/store/file"
	"github.com/Moneyhil/fyp-project/mocks"
)

const testSecret = "unit-test-secret"

// fakeBackend — минимальный донорский бэкенд для тестов менеджера:
// выпускает и проверяет настоящие JWT, считает вызовы эндпоинтов.
type fakeBackend struct {
	mu sync.Mutex

	refreshValid map[string]bool
	rotateTo     string
	failLogout   bool
	rejectBearer bool

	verifyCalls    int
	refreshCalls   int
	protectedCalls int
	logoutCalls    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{refreshValid: make(map[string]bool)}
}

func (b *fakeBackend) mintAccess(t *testing.T, ttl time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"email": "user@example.com",
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return signed
}

func (b *fakeBackend) tokenValid(raw string) bool {
	token, err := jwt.Parse(raw, func(tk *jwt.Token) (any, error) {
		if tk.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}

		return []byte(testSecret), nil
	})

	return err == nil && token.Valid
}

func (b *fakeBackend) router(t *testing.T) http.Handler {
	t.Helper()

	r := chi.NewRouter()

	r.Post("/token/verify/", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.verifyCalls++
		b.mu.Unlock()

		var in struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))

		if !b.tokenValid(in.Token) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token is invalid or expired"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{})
	})

	r.Post("/token/refresh/", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.refreshCalls++
		b.mu.Unlock()

		var in struct {
			Refresh string `json:"refresh"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))

		if !b.refreshValid[in.Refresh] {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token is invalid or expired"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"access":  b.mintAccess(t, time.Hour),
			"refresh": b.rotateTo,
		})
	})

	r.Post("/login/", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))

		if in.Password != "correct-password" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
			return
		}

		refresh := "refresh-after-login"
		b.mu.Lock()
		b.refreshValid[refresh] = true
		b.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"token":         b.mintAccess(t, time.Hour),
			"refresh_token": refresh,
			"user": map[string]any{
				"id":    int64(7),
				"name":  "Test User",
				"email": in.Email,
			},
		})
	})

	r.Post("/logout/", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.logoutCalls++
		fail := b.failLogout
		b.mu.Unlock()

		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "logout failed"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
	})

	r.Get("/donation-requests/", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.protectedCalls++
		reject := b.rejectBearer
		b.mu.Unlock()

		raw := req.Header.Get("Authorization")
		if reject || len(raw) < 8 || !b.tokenValid(raw[len("Bearer "):]) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token is invalid or expired"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"requests_made":     []any{},
			"requests_received": []any{},
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newManager собирает менеджер поверх файлового хранилища и fake-бэкенда.
func newManager(t *testing.T, backend *fakeBackend) (*Manager, store.Store) {
	t.Helper()

	srv := httptest.NewServer(backend.router(t))
	t.Cleanup(srv.Close)

	st, err := file.New(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	return New(st, api.New(srv.URL, 5*time.Second)), st
}

func seedSession(t *testing.T, st store.Store, access, refresh string) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "authToken", access))
	require.NoError(t, st.Set(ctx, "refreshToken", refresh))

	raw, err := json.Marshal(models.User{ID: 7, Name: "Test User", Email: "user@example.com"})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "userInfo", string(raw)))
}

func requirePurged(t *testing.T, st store.Store) {
	t.Helper()

	for _, key := range []string{"authToken", "refreshToken", "userInfo"} {
		_, err := st.Get(context.Background(), key)
		require.ErrorIs(t, err, store.ErrNotFound, "key %s must be removed", key)
	}
}

func TestCheckAuthStatus_NoSession_NoNetwork(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, _ := newManager(t, backend)

	st, err := mgr.CheckAuthStatus(context.Background())
	require.NoError(t, err)
	require.False(t, st.Authenticated)
	require.Nil(t, st.User)
	require.Zero(t, backend.verifyCalls)
	require.Zero(t, backend.refreshCalls)
}

func TestCheckAuthStatus_ValidToken_OK(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	status, err := mgr.CheckAuthStatus(context.Background())
	require.NoError(t, err)
	require.True(t, status.Authenticated)
	require.NotNil(t, status.User)
	require.Equal(t, "user@example.com", status.User.Email)
	require.Equal(t, 1, backend.verifyCalls)
	require.Zero(t, backend.refreshCalls)

	// Повторная проверка идемпотентна: тот же пользователь,
	// refresh-токен в хранилище не тронут.
	again, err := mgr.CheckAuthStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, status.User, again.User)

	refresh, err := st.Get(context.Background(), "refreshToken")
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh)
}

func TestCheckAuthStatus_ExpiredToken_RefreshOK(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.refreshValid["refresh-1"] = true
	mgr, st := newManager(t, backend)

	expired := backend.mintAccess(t, -time.Minute)
	seedSession(t, st, expired, "refresh-1")

	status, err := mgr.CheckAuthStatus(context.Background())
	require.NoError(t, err)
	require.True(t, status.Authenticated)
	require.Equal(t, 1, backend.refreshCalls)

	// Новый access-токен сохранён.
	access, err := st.Get(context.Background(), "authToken")
	require.NoError(t, err)
	require.NotEqual(t, expired, access)
	require.True(t, backend.tokenValid(access))
}

func TestCheckAuthStatus_RefreshRotation_PersistsNewRefresh(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.refreshValid["refresh-1"] = true
	backend.rotateTo = "refresh-2"
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, -time.Minute), "refresh-1")

	_, err := mgr.CheckAuthStatus(context.Background())
	require.NoError(t, err)

	refresh, err := st.Get(context.Background(), "refreshToken")
	require.NoError(t, err)
	require.Equal(t, "refresh-2", refresh)
}

func TestCheckAuthStatus_RefreshFails_Purge(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, -time.Minute), "revoked-refresh")

	status, err := mgr.CheckAuthStatus(context.Background())
	require.NoError(t, err)
	require.False(t, status.Authenticated)
	require.Nil(t, status.User)
	requirePurged(t, st)
}

func TestCheckAuthStatus_CorruptedUserCache_Purge(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)

	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "authToken", backend.mintAccess(t, time.Hour)))
	require.NoError(t, st.Set(ctx, "refreshToken", "refresh-1"))
	require.NoError(t, st.Set(ctx, "userInfo", "{not json"))

	status, err := mgr.CheckAuthStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Authenticated)
	requirePurged(t, st)
	require.Zero(t, backend.verifyCalls)
}

func TestDo_ValidToken_NoRefresh(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	var out struct {
		Made     []models.DonationRequest `json:"requests_made"`
		Received []models.DonationRequest `json:"requests_received"`
	}
	err := mgr.Do(context.Background(), http.MethodGet, "/donation-requests/", nil, &out)
	require.NoError(t, err)
	require.Equal(t, 1, backend.protectedCalls)
	require.Zero(t, backend.refreshCalls)
}

func TestDo_ExpiredToken_SingleRefreshAndRetry(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.refreshValid["refresh-1"] = true
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, -time.Minute), "refresh-1")

	err := mgr.Do(context.Background(), http.MethodGet, "/donation-requests/", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, backend.refreshCalls)
	require.Equal(t, 2, backend.protectedCalls)
}

func TestDo_RefreshFails_SessionExpiredAndPurged(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, -time.Minute), "revoked-refresh")

	err := mgr.Do(context.Background(), http.MethodGet, "/donation-requests/", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	requirePurged(t, st)
}

func TestDo_RefreshedTokenRejected_NoSecondRefresh(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.refreshValid["refresh-1"] = true
	backend.rejectBearer = true
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	err := mgr.Do(context.Background(), http.MethodGet, "/donation-requests/", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, 1, backend.refreshCalls, "refresh must run exactly once")
	require.Equal(t, 2, backend.protectedCalls, "request must be retried exactly once")
	requirePurged(t, st)
}

func TestDo_NotAuthenticated(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, _ := newManager(t, backend)

	err := mgr.Do(context.Background(), http.MethodGet, "/donation-requests/", nil, nil)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.Zero(t, backend.protectedCalls)
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	err := mgr.Do(context.Background(), http.MethodGet, "/no-such-endpoint/", nil, nil)
	require.ErrorIs(t, err, api.ErrNotFound)
	require.Zero(t, backend.refreshCalls)

	// Сессия не тронута.
	_, getErr := st.Get(context.Background(), "authToken")
	require.NoError(t, getErr)
}

func TestLogin_OK_PersistsSession(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)

	s, err := mgr.Login(context.Background(), "User@Example.com", "correct-password")
	require.NoError(t, err)
	require.NotEmpty(t, s.AccessToken)
	require.Equal(t, "user@example.com", s.User.Email)

	access, err := st.Get(context.Background(), "authToken")
	require.NoError(t, err)
	require.Equal(t, s.AccessToken, access)

	refresh, err := st.Get(context.Background(), "refreshToken")
	require.NoError(t, err)
	require.Equal(t, "refresh-after-login", refresh)

	userRaw, err := st.Get(context.Background(), "userInfo")
	require.NoError(t, err)

	var user models.User
	require.NoError(t, json.Unmarshal([]byte(userRaw), &user))
	require.Equal(t, "user@example.com", user.Email)
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)

	_, err := mgr.Login(context.Background(), "user@example.com", "wrong")
	require.ErrorIs(t, err, api.ErrUnauthenticated)
	requirePurged(t, st)
}

func TestLogin_Validation(t *testing.T) {
	t.Parallel()

	mgr, _ := newManager(t, newFakeBackend())
	ctx := context.Background()

	_, err := mgr.Login(ctx, "not-an-email", "password123")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = mgr.Login(ctx, "", "password123")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = mgr.Login(ctx, "user@example.com", "")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	mgr, _ := newManager(t, newFakeBackend())
	ctx := context.Background()

	require.ErrorIs(t, mgr.Register(ctx, "  ", "user@example.com", "password123"), ErrEmptyName)
	require.ErrorIs(t, mgr.Register(ctx, "User", "bad-email", "password123"), ErrInvalidEmail)
	require.ErrorIs(t, mgr.Register(ctx, "User", "user@example.com", "short"), ErrWeakPassword)
	require.ErrorIs(t, mgr.Register(ctx, "User", "user@example.com", ""), ErrEmptyPassword)
}

func TestVerifyOTP_Validation(t *testing.T) {
	t.Parallel()

	mgr, _ := newManager(t, newFakeBackend())
	ctx := context.Background()

	_, err := mgr.VerifyOTP(ctx, "user@example.com", "12345")
	require.ErrorIs(t, err, ErrInvalidOTP)

	_, err = mgr.VerifyOTP(ctx, "user@example.com", "12345a")
	require.ErrorIs(t, err, ErrInvalidOTP)
}

func TestLogout_RevokesAndPurges(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	require.NoError(t, mgr.Logout(context.Background()))
	require.Equal(t, 1, backend.logoutCalls)
	requirePurged(t, st)
}

func TestLogout_RevokeFails_StillPurges(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.failLogout = true
	mgr, st := newManager(t, backend)
	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	require.NoError(t, mgr.Logout(context.Background()))
	requirePurged(t, st)
}

func TestLogout_NoSession_NoRevokeCall(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, _ := newManager(t, backend)

	require.NoError(t, mgr.Logout(context.Background()))
	require.Zero(t, backend.logoutCalls)
}

// TestLogin_PartialPersistFailure_Rollback проверяет компенсирующую очистку:
// сбой второй записи не оставляет в хранилище токен без пользователя.
func TestLogin_PartialPersistFailure_Rollback(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.router(t))
	t.Cleanup(srv.Close)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSt := mocks.NewMockStore(ctrl)
	mgr := New(mockSt, api.New(srv.URL, 5*time.Second))

	writeErr := errors.New("disk full")

	mockSt.EXPECT().Set(gomock.Any(), "authToken", gomock.Any()).Return(nil)
	mockSt.EXPECT().Set(gomock.Any(), "refreshToken", gomock.Any()).Return(writeErr)
	mockSt.EXPECT().Remove(gomock.Any(), "authToken").Return(nil)
	mockSt.EXPECT().Remove(gomock.Any(), "refreshToken").Return(nil)
	mockSt.EXPECT().Remove(gomock.Any(), "userInfo").Return(nil)

	_, err := mgr.Login(context.Background(), "user@example.com", "correct-password")
	require.ErrorIs(t, err, writeErr)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	mgr, st := newManager(t, backend)

	_, err := mgr.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)

	seedSession(t, st, backend.mintAccess(t, time.Hour), "refresh-1")

	user, err := mgr.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user@example.com", user.Email)
}
