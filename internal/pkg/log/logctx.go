// log содержит утилиты переноса request-scoped логгера через context.
// Каждый пользовательский сценарий (login, проверка сессии, звонок донору)
// получает логгер с общими атрибутами и передаёт его вниз по стеку вызовов.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into кладёт логгер в контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From достаёт логгер из контекста (или возвращает slog.Default()).
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}

	return slog.Default()
}

// With возвращает контекст, логгер которого дополнен атрибутами args
// (в формате slog: пары ключ-значение либо slog.Attr).
func With(ctx context.Context, args ...any) context.Context {
	return Into(ctx, From(ctx).With(args...))
}
