// file реализует store.Store поверх одного JSON-файла на диске.
// Это основной бэкенд для устройства пользователя: файл живёт в каталоге
// конфигурации и переживает перезапуск приложения.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/Moneyhil/fyp-project/internal/store"
)

// Store — файловое key-value хранилище. Безопасно для конкурентного
// использования из разных горутин.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// New открывает хранилище по пути path, создавая каталог при необходимости.
// Существующий файл загружается; отсутствующий — не ошибка.
func New(path string) (*Store, error) {
	const op = "store.file.New"

	if path == "" {
		return nil, fmt.Errorf("%s: empty path", op)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s := &Store{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("%s: corrupted store file %q: %w", op, path, err)
	}

	return s, nil
}

// Get возвращает значение по ключу либо store.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	const op = "store.file.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}

	return v, nil
}

// Set сохраняет значение и синхронно записывает файл.
// При ошибке записи состояние в памяти не меняется.
func (s *Store) Set(_ context.Context, key, value string) error {
	const op = "store.file.Set"

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.data)
	next[key] = value

	if err := s.persist(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.data = next

	return nil
}

// Remove удаляет ключ; отсутствие ключа — не ошибка.
func (s *Store) Remove(_ context.Context, key string) error {
	const op = "store.file.Remove"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}

	next := maps.Clone(s.data)
	delete(next, key)

	if err := s.persist(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.data = next

	return nil
}

// Close ничего не освобождает: файл не держится открытым между операциями.
func (s *Store) Close() error { return nil }

// persist атомарно переписывает файл: запись во временный файл + rename.
func (s *Store) persist(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}
