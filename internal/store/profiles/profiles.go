// Package profiles persists server connection profiles as a JSON file,
// created on first use with an empty list.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Profile describes one server a session can connect to.
type Profile struct {
	Name               string   `json:"name"`
	Host               string   `json:"host"`
	Port               int      `json:"port"`
	TLS                bool     `json:"tls"`
	InsecureSkipVerify bool     `json:"insecureSkipVerify,omitempty"`
	Nick               string   `json:"nick"`
	User               string   `json:"user,omitempty"`
	Realname           string   `json:"realname,omitempty"`
	Password           string   `json:"password,omitempty"`
	SASLUser           string   `json:"saslUser,omitempty"`
	SASLPassword       string   `json:"saslPassword,omitempty"`
	Channels           []string `json:"channels,omitempty"`
}

// Validate reports the first problem that would make the profile
// unusable for connecting.
func (p Profile) Validate() error {
	switch {
	case p.Name == "":
		return errors.New("profile name is required")
	case p.Host == "":
		return errors.New("host is required")
	case p.Port < 1 || p.Port > 65535:
		return fmt.Errorf("port %d out of range", p.Port)
	case p.Nick == "":
		return errors.New("nick is required")
	}
	return nil
}

type fileFormat struct {
	Servers []Profile `json:"servers"`
}

// Store reads and writes the profile file. Writes go through a
// temporary file and rename, so a crash never leaves a torn file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a store backed by path. The parent directory and an
// empty file are created when missing.
func New(path string) (*Store, error) {
	s := &Store{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(fileFormat{Servers: []Profile{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// List returns all stored profiles.
func (s *Store) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	if err != nil {
		return nil, err
	}
	return f.Servers, nil
}

// Get returns the profile with the given name.
func (s *Store) Get(name string) (Profile, error) {
	list, err := s.List()
	if err != nil {
		return Profile{}, err
	}
	for _, p := range list {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("profile %q not found", name)
}

// Replace overwrites the stored list after validating every entry.
// Names must be unique.
func (s *Store) Replace(list []Profile) error {
	seen := map[string]bool{}
	for _, p := range list {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile name %q", p.Name)
		}
		seen[p.Name] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(fileFormat{Servers: list})
}

func (s *Store) read() (fileFormat, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fileFormat{}, err
	}
	var f fileFormat
	if err := json.Unmarshal(raw, &f); err != nil {
		return fileFormat{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if f.Servers == nil {
		f.Servers = []Profile{}
	}
	return f, nil
}

func (s *Store) write(f fileFormat) error {
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
