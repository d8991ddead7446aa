// store задаёт контракт локального key-value хранилища сессии —
// аналог постоянного хранилища мобильного устройства. Хранилище оперирует
// непрозрачными строками; семантика ключей принадлежит пакету session.
//
// Контракт атомарности: хранилище гарантирует атомарность только одиночной
// записи. Согласованность набора ключей сессии (все три записаны либо все
// три удалены) обеспечивает вызывающая сторона упорядоченными записями
// и компенсирующей очисткой при частичном сбое.
package store

import (
	"context"
	"errors"
)

// ErrNotFound — значение по ключу отсутствует.
var ErrNotFound = errors.New("not found")

// Store — контракт key-value хранилища сессии.
type Store interface {
	// Get возвращает значение по ключу либо ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set сохраняет значение по ключу, перезаписывая существующее.
	Set(ctx context.Context, key, value string) error
	// Remove удаляет ключ; отсутствие ключа ошибкой не считается.
	Remove(ctx context.Context, key string) error
	// Close освобождает ресурсы хранилища.
	Close() error
}
