// Package auth stores the FirstView session cookie between runs.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultProfile names the session used when no profile is given
const DefaultProfile = "default"

// Session is a logged-in FirstView session cookie
type Session struct {
	Profile      string    `json:"profile"`
	CookieName   string    `json:"cookie_name"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// Store persists sessions by profile name
type Store interface {
	Save(session *Session) error
	Load(profile string) (*Session, error)
	Delete(profile string) error
	Exists(profile string) bool
	// Name identifies the backend in status output
	Name() string
}

// Manager handles session storage with fallback backends. Sessions are
// written to the first backend that accepts them; the environment is
// consulted first on reads.
type Manager struct {
	stores []Store
}

// NewManager creates a manager over the keyring, an encrypted file in the
// user config directory and the environment
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fileStore, err := NewEncryptedFileStore(filepath.Join(configDir, "session.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fileStore, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// NewManagerWithStores uses stores in the given order
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save stores s in the first backend that accepts it and returns that
// backend's name
func (m *Manager) Save(s *Session) (string, error) {
	if s == nil || s.Value == "" {
		return "", ErrInvalidSession
	}
	if s.Profile == "" {
		s.Profile = DefaultProfile
	}
	s.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Save(s)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to store session: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Load returns the session for profile and the backend it came from
func (m *Manager) Load(profile string) (*Session, string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	ordered := make([]Store, 0, len(m.stores))
	for _, store := range m.stores {
		if _, ok := store.(*EnvironmentStore); ok {
			ordered = append([]Store{store}, ordered...)
		} else {
			ordered = append(ordered, store)
		}
	}

	for _, store := range ordered {
		if s, err := store.Load(profile); err == nil && s != nil && s.Value != "" {
			return s, store.Name(), nil
		}
	}
	return nil, "", ErrSessionNotFound
}

// Delete removes profile from every writable backend
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	deleted := false
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(profile)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

// Backends lists the names of the configured stores
func (m *Manager) Backends() []string {
	names := make([]string, len(m.stores))
	for i, s := range m.stores {
		names[i] = s.Name()
	}
	return names
}

// ConfigDir returns the per-user configuration directory, creating it
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "fvdownloader")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "fvdownloader")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "fvdownloader")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "fvdownloader")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Mask hides all but the first and last four characters of a cookie value
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
