package client

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// Tokens — пара access+refresh в локальном хранилище клиента.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenStore — локальное хранилище пары токенов (аналог localStorage
// браузерного клиента). Реализации обязаны быть потокобезопасными.
type TokenStore interface {
	Load() (Tokens, error)
	Save(tokens Tokens) error
	Clear() error
}

// MemoryStore хранит токены в памяти процесса.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, nil
}

func (s *MemoryStore) Save(tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	return nil
}

// FileStore хранит токены в JSON-файле с правами 0600.
// Отсутствующий файл читается как пустая пара.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tokens{}, nil
		}

		return Tokens{}, err
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, err
	}

	return tokens, nil
}

func (s *FileStore) Save(tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
