package api

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/spf13/viper"
)

// SessionStore persists the token pair between runs.
type SessionStore interface {
	Load() (models.AuthSession, error)
	Save(session models.AuthSession) error
	Clear() error
}

// FileSessionStore keeps the session in a small JSON file managed by viper.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
	v    *viper.Viper
}

func NewFileSessionStore(path string) *FileSessionStore {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return &FileSessionStore{path: path, v: v}
}

func (s *FileSessionStore) Load() (models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return models.AuthSession{}, nil
	}
	if err := s.v.ReadInConfig(); err != nil {
		return models.AuthSession{}, err
	}
	return models.AuthSession{
		AccessToken:  s.v.GetString("access_token"),
		RefreshToken: s.v.GetString("refresh_token"),
		TokenType:    s.v.GetString("token_type"),
	}, nil
}

func (s *FileSessionStore) Save(session models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set("access_token", session.AccessToken)
	s.v.Set("refresh_token", session.RefreshToken)
	s.v.Set("token_type", session.TokenType)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return s.v.WriteConfigAs(s.path)
}

func (s *FileSessionStore) Clear() error {
	return s.Save(models.AuthSession{})
}

// MemorySessionStore keeps the session in memory only.
type MemorySessionStore struct {
	mu      sync.Mutex
	session models.AuthSession
	saves   int
}

func (s *MemorySessionStore) Load() (models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

func (s *MemorySessionStore) Save(session models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.saves++
	return nil
}

func (s *MemorySessionStore) Clear() error {
	return s.Save(models.AuthSession{})
}

// Saves reports how many times the session was written.
func (s *MemorySessionStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
