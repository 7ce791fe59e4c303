package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store holds the live configuration, persists changes atomically, and
// notifies subscribers when settings change.
type Store struct {
	path string

	mu   sync.Mutex
	cfg  Config
	subs []chan Config
}

// NewStore wraps an already-loaded configuration.
func NewStore(path string, cfg Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Get returns the current configuration.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Update applies mutate to a copy, validates it, writes it to disk, and
// notifies subscribers. An invalid result leaves the stored config and the
// file untouched.
func (s *Store) Update(mutate func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	mutate(&next)
	if _, err := Validate(next); err != nil {
		return Config{}, err
	}
	if err := s.saveLocked(next); err != nil {
		return Config{}, err
	}

	s.cfg = next
	for _, sub := range s.subs {
		select {
		case sub <- next:
		default:
		}
	}
	return next, nil
}

// Subscribe returns a channel that receives the new configuration after
// every successful Update. A slow subscriber misses intermediate values,
// never blocks an update.
func (s *Store) Subscribe() <-chan Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := make(chan Config, 1)
	s.subs = append(s.subs, sub)
	return sub
}

// saveLocked writes through a temp file and renames, so a crash mid-write
// cannot truncate the config.
func (s *Store) saveLocked(cfg Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Render(cfg)), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
