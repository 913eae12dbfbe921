// Package prefs persists the user's selection mode and the time of the last
// feed poll between sessions. Values are loaded once at start and saved on
// every change.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/unklstewy/whats-overhead/internal/db"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

// Preferences are the persisted user choices.
type Preferences struct {
	Mode     selection.Mode `json:"mode"`
	LastPoll time.Time      `json:"last_poll,omitempty"`
}

// Store loads and saves Preferences.
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	SaveMode(ctx context.Context, mode selection.Mode) error
	SaveLastPoll(ctx context.Context, at time.Time) error
}

// Resetter is implemented by stores that can forget everything saved for
// their profile. A reset store loads its defaults again.
type Resetter interface {
	Reset(ctx context.Context) error
}

// fileData is the on-disk shape. Mode stays a plain string so that a hand
// edited or corrupt value degrades to near instead of failing the load; an
// empty mode has never been chosen.
type fileData struct {
	Mode       string `json:"mode,omitempty"`
	LastPollMS int64  `json:"last_poll_ms,omitempty"`
}

// FileStore keeps preferences in a small JSON file.
type FileStore struct {
	path        string
	defaultMode selection.Mode

	mu sync.Mutex
}

// NewFileStore returns a store backed by path. defaultMode applies when no
// file exists yet.
func NewFileStore(path string, defaultMode selection.Mode) *FileStore {
	return &FileStore{path: path, defaultMode: defaultMode}
}

// Load reads the file; a missing file yields the defaults.
func (s *FileStore) Load(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return Preferences{}, err
	}
	return s.preferences(data), nil
}

// SaveMode records mode.
func (s *FileStore) SaveMode(ctx context.Context, mode selection.Mode) error {
	return s.update(func(d *fileData) { d.Mode = string(mode) })
}

// SaveLastPoll records the time of the last poll.
func (s *FileStore) SaveLastPoll(ctx context.Context, at time.Time) error {
	return s.update(func(d *fileData) { d.LastPollMS = at.UnixMilli() })
}

// Reset removes the file.
func (s *FileStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove preferences: %w", err)
	}
	return nil
}

func (s *FileStore) update(fn func(*fileData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	fn(&data)
	return s.write(data)
}

func (s *FileStore) read() (fileData, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fileData{}, nil
	}
	if err != nil {
		return fileData{}, fmt.Errorf("failed to read preferences: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fileData{}, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return data, nil
}

func (s *FileStore) write(data fileData) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	// Write to a sibling and rename so a crash never leaves half a file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

func (s *FileStore) preferences(d fileData) Preferences {
	p := Preferences{Mode: s.defaultMode}
	if d.Mode != "" {
		p.Mode = selection.ModeOrDefault(d.Mode)
	}
	if d.LastPollMS > 0 {
		p.LastPoll = time.UnixMilli(d.LastPollMS)
	}
	return p
}

// DBStore keeps preferences for one profile in the database.
type DBStore struct {
	repo        *db.PreferenceRepository
	profile     string
	defaultMode selection.Mode
}

// NewDBStore returns a store for profile backed by repo.
func NewDBStore(repo *db.PreferenceRepository, profile string, defaultMode selection.Mode) *DBStore {
	return &DBStore{repo: repo, profile: profile, defaultMode: defaultMode}
}

// ForProfile returns a store for another profile sharing the same repository.
func (s *DBStore) ForProfile(profile string) *DBStore {
	return NewDBStore(s.repo, profile, s.defaultMode)
}

// Load reads the profile's row; a missing row or unset mode yields the
// default mode.
func (s *DBStore) Load(ctx context.Context) (Preferences, error) {
	pref, err := s.repo.Get(ctx, s.profile)
	if errors.Is(err, db.ErrNotFound) {
		return Preferences{Mode: s.defaultMode}, nil
	}
	if err != nil {
		return Preferences{}, err
	}

	p := Preferences{Mode: s.defaultMode}
	if pref.Mode != "" {
		p.Mode = selection.ModeOrDefault(pref.Mode)
	}
	if pref.LastPoll != nil {
		p.LastPoll = *pref.LastPoll
	}
	return p, nil
}

// SaveMode records mode.
func (s *DBStore) SaveMode(ctx context.Context, mode selection.Mode) error {
	return s.repo.SaveMode(ctx, s.profile, string(mode))
}

// SaveLastPoll records the time of the last poll.
func (s *DBStore) SaveLastPoll(ctx context.Context, at time.Time) error {
	return s.repo.SaveLastPoll(ctx, s.profile, at)
}

// Reset deletes the profile's row.
func (s *DBStore) Reset(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.profile); err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}
	return nil
}

// Memory is an in-process Store, used when nothing should touch disk.
type Memory struct {
	mu          sync.Mutex
	defaultMode selection.Mode
	prefs       Preferences
}

// NewMemory returns a Memory store starting at mode.
func NewMemory(mode selection.Mode) *Memory {
	return &Memory{defaultMode: mode, prefs: Preferences{Mode: mode}}
}

// Load returns the current values.
func (m *Memory) Load(ctx context.Context) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs, nil
}

// SaveMode records mode.
func (m *Memory) SaveMode(ctx context.Context, mode selection.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs.Mode = mode
	return nil
}

// SaveLastPoll records the time of the last poll.
func (m *Memory) SaveLastPoll(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs.LastPoll = at
	return nil
}

// Reset restores the starting mode and clears the last poll.
func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = Preferences{Mode: m.defaultMode}
	return nil
}
