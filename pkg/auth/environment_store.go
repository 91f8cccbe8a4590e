package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvSessionCookie = "FVDOWNLOADER_SESSION_COOKIE"
	EnvCookieName    = "FVDOWNLOADER_COOKIE_NAME"
)

// EnvironmentStore reads a session from the environment. It is read-only
// and serves every profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(*Session) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Load(profile string) (*Session, error) {
	value := os.Getenv(EnvSessionCookie)
	if value == "" {
		return nil, ErrSessionNotFound
	}
	return &Session{
		Profile:      profile,
		CookieName:   os.Getenv(EnvCookieName),
		Value:        value,
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(EnvSessionCookie) != ""
}
