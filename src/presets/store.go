package presets

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// StorageError wraps a failure to persist the presets file.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return "presets: " + e.Path + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// document is the on-disk layout: camera id to an ordered preset list.
type document map[string][]models.Preset

// Store keeps presets in a single JSON file. Every mutation is a whole
// file read-modify-write performed under one lock, so concurrent callers
// never lose each other's updates.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Get returns the presets of a camera in insertion order. An unknown
// camera, a missing file or an unreadable file all yield an empty list.
func (s *Store) Get(cameraID string) []models.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	list := doc[cameraID]
	out := make([]models.Preset, len(list))
	copy(out, list)
	return out
}

// Find looks up a single preset.
func (s *Store) Find(cameraID, token string) (models.Preset, bool) {
	for _, p := range s.Get(cameraID) {
		if p.Token == token {
			return p, true
		}
	}
	return models.Preset{}, false
}

// Save appends a preset and returns its freshly generated token.
func (s *Store) Save(cameraID, name string, position *models.Position) (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	token := u.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	doc[cameraID] = append(doc[cameraID], models.Preset{
		Token:    token,
		Name:     name,
		Position: copyPosition(position),
	})
	if err := s.write(doc); err != nil {
		return "", err
	}
	return token, nil
}

// Update changes the name and/or position of a preset. Nil arguments are
// left untouched. It reports false when the token is unknown.
func (s *Store) Update(cameraID, token string, name *string, position *models.Position) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	list := doc[cameraID]
	for i := range list {
		if list[i].Token != token {
			continue
		}
		if name != nil {
			list[i].Name = *name
		}
		if position != nil {
			list[i].Position = copyPosition(position)
		}
		return true, s.write(doc)
	}
	return false, nil
}

// Delete removes a preset. It reports false when the token is unknown.
func (s *Store) Delete(cameraID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	list := doc[cameraID]
	for i := range list {
		if list[i].Token != token {
			continue
		}
		doc[cameraID] = append(list[:i:i], list[i+1:]...)
		return true, s.write(doc)
	}
	return false, nil
}

func (s *Store) load() document {
	doc := document{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Log.Error("presets.load(): " + (&StorageError{Path: s.path, Err: err}).Error())
		}
		return doc
	}
	if len(data) == 0 {
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Log.Error("presets.load(): corrupt presets file, starting empty: " + (&StorageError{Path: s.path, Err: err}).Error())
		return document{}
	}
	return doc
}

// write replaces the file atomically so a crash never leaves half a
// document behind.
func (s *Store) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return &StorageError{Path: s.path, Err: err}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Path: s.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".presets-*.json")
	if err != nil {
		return &StorageError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &StorageError{Path: s.path, Err: err}
	}
	return nil
}

func copyPosition(p *models.Position) *models.Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
