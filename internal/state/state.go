// Package state persists client-local state: the selected chat, kept
// separately for every profile so a restart restores the last view.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoProfile is returned when a profile name is empty.
var ErrNoProfile = errors.New("profile name required")

// Profile is the state kept for one profile.
type Profile struct {
	SelectedChatID string    `yaml:"selected_chat_id,omitempty"`
	UpdatedAt      time.Time `yaml:"updated_at,omitempty"`
}

type document struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Store reads and writes the state file. Every call re-reads the file so
// separate processes sharing it see each other's writes.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore creates a store backed by path. The file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Selected returns the persisted selection of profile, or "" when none.
func (s *Store) Selected(profile string) (string, error) {
	if profile == "" {
		return "", ErrNoProfile
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	return doc.Profiles[profile].SelectedChatID, nil
}

// SetSelected persists chatID as the selection of profile. An empty id
// clears it.
func (s *Store) SetSelected(profile, chatID string) error {
	if profile == "" {
		return ErrNoProfile
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if chatID == "" {
		if _, ok := doc.Profiles[profile]; !ok {
			return nil
		}
		delete(doc.Profiles, profile)
	} else {
		doc.Profiles[profile] = Profile{SelectedChatID: chatID, UpdatedAt: s.now().UTC()}
	}
	return s.write(doc)
}

// ClearSelected removes the persisted selection of profile.
func (s *Store) ClearSelected(profile string) error {
	return s.SetSelected(profile, "")
}

// Profiles returns every stored profile.
func (s *Store) Profiles() (map[string]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Profiles, nil
}

func (s *Store) read() (*document, error) {
	doc := &document{Profiles: map[string]Profile{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	if doc.Profiles == nil {
		doc.Profiles = map[string]Profile{}
	}
	return doc, nil
}

// write replaces the file atomically via a temporary file and rename.
func (s *Store) write(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
