// api — HTTP-клиент донорского бэкенда: базовый запрос, заголовки,
// нормализация ошибок. Пакет не знает про хранилище и refresh —
// прозрачное обновление токена живёт уровнем выше, в session.Manager.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Moneyhil/fyp-project/internal/pkg/log"
)

// maxBodySize ограничивает читаемое тело ответа.
const maxBodySize = 1 << 20

// Client — клиент донорского API.
// Экземпляр безопасен для конкурентного использования.
type Client struct {
	baseURL string
	http    *http.Client
}

// New создаёт клиент. baseURL — корень API (например,
// http://host:8000/donation); timeout <= 0 заменяется на 30s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Do выполняет запрос к path относительно baseURL.
//
// Поведение:
//   - in != nil сериализуется в JSON-тело;
//   - token != "" добавляет Authorization: Bearer;
//   - каждый запрос получает сгенерированный X-Request-Id;
//   - транспортный сбой заворачивается в ErrUnavailable;
//   - статус >= 300 превращается в *Error (см. errors.go);
//   - out != nil заполняется из JSON-тела успешного ответа.
func (c *Client) Do(ctx context.Context, method, path, token string, in, out any) error {
	const op = "api.client.Do"

	lg := log.From(ctx)

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		lg.Warn("api_request_failed",
			slog.String("op", op),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", op, ErrUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp.StatusCode, raw)
		lg.Debug("api_error_response",
			slog.String("op", op),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return fmt.Errorf("%s: %w", op, apiErr)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}

	return nil
}
