// profile — операции над донорским профилем: создание, чтение по email,
// поиск доноров по городу и группе крови.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Moneyhil/fyp-project/internal/models"
)

// API — контракт аутентифицированного клиента бэкенда (session.Manager).
type API interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

var (
	// ErrEmptyEmail — email обязателен для чтения профиля.
	ErrEmptyEmail = errors.New("email is empty")

	// ErrEmptySearchParams — поиск доноров требует город и группу крови.
	ErrEmptySearchParams = errors.New("city and blood group are required")
)

// Service — клиент профильных операций.
type Service struct {
	api API
}

// New создаёт сервис профилей.
func New(client API) *Service {
	return &Service{api: client}
}

// Create сохраняет профиль текущего пользователя.
func (s *Service) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	const op = "profile.service.Create"

	var out struct {
		Profile models.Profile `json:"profile"`
	}

	if err := s.api.Do(ctx, http.MethodPost, "/profile/create/", p, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out.Profile, nil
}

// ByEmail возвращает профиль по email владельца.
func (s *Service) ByEmail(ctx context.Context, email string) (*models.Profile, error) {
	const op = "profile.service.ByEmail"

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyEmail)
	}

	var out struct {
		Profile models.Profile `json:"profile"`
	}

	path := "/profile/" + url.PathEscape(email) + "/"
	if err := s.api.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out.Profile, nil
}

// SearchDonors ищет доноров по городу и группе крови.
// Оба параметра обязательны: бэкенд не отдаёт полный список доноров.
func (s *Service) SearchDonors(ctx context.Context, city, bloodGroup string) ([]models.Donor, error) {
	const op = "profile.service.SearchDonors"

	city = strings.TrimSpace(city)
	bloodGroup = strings.TrimSpace(bloodGroup)
	if city == "" || bloodGroup == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySearchParams)
	}

	q := url.Values{}
	q.Set("city", city)
	q.Set("blood_group", bloodGroup)

	var out struct {
		Donors []models.Donor `json:"donors"`
	}

	if err := s.api.Do(ctx, http.MethodGet, "/donors/search/?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out.Donors, nil
}
