// Package keys stores API keys by provider name in a small JSON file and
// resolves the key used for a request.
package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNameRequired is returned when a key is stored without a name.
var ErrNameRequired = errors.New("key name is required")

// Store is a file-backed map of provider or alias name to API key.
type Store struct {
	path string

	mu   sync.Mutex
	keys map[string]string
}

// Open reads the key file at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, keys: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read keys file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.keys); err != nil {
		return nil, fmt.Errorf("decode keys file %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Get returns the stored key for name.
func (s *Store) Get(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[strings.TrimSpace(name)]
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Names lists stored key names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set stores key under name and rewrites the file with owner-only permissions.
func (s *Store) Set(name, key string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[name] = strings.TrimSpace(key)
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create keys dir: %w", err)
	}
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write keys file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace keys file: %w", err)
	}
	return nil
}

// Resolve picks the API key for a call. An explicit value that names a
// stored key resolves to that key, otherwise it is used literally. Without
// an explicit value the key stored under alias wins over envValue.
func Resolve(store *Store, explicit, alias, envValue string) (string, bool) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if stored, ok := store.Get(explicit); ok {
			return stored, true
		}
		return explicit, true
	}
	if stored, ok := store.Get(alias); ok {
		return stored, true
	}
	if envValue = strings.TrimSpace(envValue); envValue != "" {
		return envValue, true
	}
	return "", false
}
