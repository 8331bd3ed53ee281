// Package settings persists the user-editable delivery settings: the webhook
// endpoint and the private server reference shown on zone notifications.
//
// Values are stored as a small TOML document. A session reads a Values
// snapshot when it starts, so edits made while a session is running apply to
// the next session only.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"droidscope/internal/common/fsutil"
)

// Values is an immutable snapshot of the persisted settings.
type Values struct {
	WebhookURL       string `toml:"webhook_url" json:"webhook_url"`
	PrivateServerURL string `toml:"private_server_url" json:"private_server_url"`
}

// Store is a file-backed key-value store. The zero value is not usable; use Open.
type Store struct {
	mu     sync.RWMutex
	path   string
	values Values
}

// Open loads the store at path. A missing file yields empty values.
func Open(path string) (*Store, error) {
	resolved, err := fsutil.ExpandHome(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, fmt.Errorf("settings path is empty")
	}
	s := &Store{path: resolved}
	b, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(b, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Path returns the resolved file location.
func (s *Store) Path() string { return s.path }

// Get returns the current values.
func (s *Store) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Set trims and persists v, replacing both keys.
func (s *Store) Set(v Values) error {
	v.WebhookURL = strings.TrimSpace(v.WebhookURL)
	v.PrivateServerURL = strings.TrimSpace(v.PrivateServerURL)
	b, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fsutil.WriteFileAtomic(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	s.values = v
	return nil
}
