// Package auth stores the Covalent API key in the OS keychain, with a
// file in the app directory as fallback.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "walletrisk"
	keyringUser    = "covalent_api_key"
	keyFileName    = "covalent_api_key"
	fileMode       = 0600
)

// ErrNotFound is returned when no key was saved.
var ErrNotFound = errors.New("api key not found")

// Store reads and writes the API key. Dir holds the fallback file.
type Store struct {
	Dir string
}

// NewStore returns a Store using dir for the fallback file.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Save writes the key to the keychain, or to the fallback file when the
// keychain is unavailable.
func (s *Store) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}

	if err := keyring.Set(keyringService, keyringUser, key); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return s.saveFile(key)
	}

	s.removeFile()
	return nil
}

// Get returns the saved key. A key found only in the fallback file is
// moved into the keychain when possible.
func (s *Store) Get() (string, error) {
	key, err := keyring.Get(keyringService, keyringUser)
	if err == nil && key != "" {
		return key, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain read failed", "error", err)
	}

	key, err = s.readFile()
	if err != nil {
		return "", err
	}

	if err := keyring.Set(keyringService, keyringUser, key); err == nil {
		slog.Info("migrated api key from file to OS keychain")
		s.removeFile()
	}
	return key, nil
}

// Delete removes the key from both the keychain and the fallback file.
func (s *Store) Delete() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting key from keychain: %w", err)
	}
	s.removeFile()
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.Dir, keyFileName)
}

func (s *Store) saveFile(key string) error {
	if s.Dir == "" {
		return errors.New("key directory not set")
	}
	if err := os.WriteFile(s.path(), []byte(key), fileMode); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func (s *Store) readFile() (string, error) {
	if s.Dir == "" {
		return "", ErrNotFound
	}
	b, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading key file %s: %w", s.path(), err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

func (s *Store) removeFile() {
	if s.Dir == "" {
		return
	}
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("failed to remove key file", "error", err)
	}
}
