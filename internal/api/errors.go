package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Сентинельные ошибки клиента. HTTP-статус ответа нормализуется в один из
// этих классов; вызывающие ветвятся через errors.Is, не трогая числовые коды.
var (
	// ErrInvalidArgument — бэкенд отклонил запрос как некорректный (400).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated — токен отсутствует/просрочен/отозван (401).
	// Единственный класс, по которому session.Manager выполняет refresh.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden — действие запрещено для текущего пользователя (403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound — ресурс не найден (404).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — конфликт уникальности, например дубликат email (409).
	ErrAlreadyExists = errors.New("already exists")
	// ErrResourceExhausted — превышен rate limit (429).
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrInternal — ошибка на стороне бэкенда (5xx).
	ErrInternal = errors.New("internal error")
	// ErrUnavailable — транспортный сбой: таймаут, обрыв соединения.
	// Для логики сессии эквивалентен неуспеху аутентификации (см. session).
	ErrUnavailable = errors.New("service unavailable")
)

// Error — нормализованная ошибка донорского API.
//
// Code — стабильный машиночитаемый код класса ошибки;
// Message — безопасное человекочитаемое описание от бэкенда;
// Fields — пополевые ошибки валидации (DRF-сериализаторы отдают
// map поле -> список сообщений; храним первое сообщение каждого поля).
type Error struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api: %d %s", e.Status, e.Code)

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}

	return b.String()
}

// Unwrap сводит статус к сентинелу, чтобы работал errors.Is.
func (e *Error) Unwrap() error { return sentinelFromStatus(e.Status) }

// sentinelFromStatus — маппинг HTTP-статуса на класс ошибки.
// Таблица зеркалит маппинг кодов транспортного слоя бэкенда.
func sentinelFromStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrInvalidArgument
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyExists
	case http.StatusTooManyRequests:
		return ErrResourceExhausted
	default:
		if status >= 500 {
			return ErrInternal
		}

		return ErrInternal
	}
}

// codeFromStatus — короткий стабильный код для логов и вывода пользователю.
func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "already_exists"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	default:
		return "internal"
	}
}

// errorEnvelope покрывает варианты тела ошибки, которые отдаёт бэкенд:
//
//	{"error": "текст"}
//	{"error": {"email": ["сообщение", ...]}}
//	{"message": "текст"} / {"detail": "текст"}
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
}

// decodeError собирает *Error из статуса и тела ответа.
// Нечитабельное тело не считается ошибкой: класс определяется статусом.
func decodeError(status int, body []byte) *Error {
	apiErr := &Error{
		Status: status,
		Code:   codeFromStatus(status),
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	switch {
	case len(env.Error) > 0:
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err == nil {
			apiErr.Message = msg
			break
		}

		// Пополевые ошибки сериализатора.
		var fields map[string][]string
		if err := json.Unmarshal(env.Error, &fields); err == nil {
			apiErr.Fields = make(map[string]string, len(fields))
			for field, msgs := range fields {
				if len(msgs) > 0 {
					apiErr.Fields[field] = msgs[0]
				}
			}
		}
	case env.Message != "":
		apiErr.Message = env.Message
	case env.Detail != "":
		apiErr.Message = env.Detail
	}

	return apiErr
}
