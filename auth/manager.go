package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Gateway is the slice of the remote API the auth manager needs.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*User, error)
	Register(ctx context.Context, username, password string) error
}

// Store persists the authenticated user across restarts.
type Store interface {
	User() (User, bool, error)
	SaveUser(User) error
	DeleteUser() error
	ClearActivePointer(userID int) error
}

// Manager owns the authenticated-user state for the client.
type Manager struct {
	gw    Gateway
	store Store

	mu   sync.RWMutex
	user *User
}

// NewManager creates a manager and restores a previously persisted user,
// if any. A corrupted or missing record simply means logged out.
func NewManager(gw Gateway, store Store) *Manager {
	m := &Manager{gw: gw, store: store}

	u, found, err := store.User()
	if err != nil {
		slog.Warn("failed to restore persisted user", "error", err)
	} else if found {
		m.user = &u
	}
	return m
}

// Current returns the logged-in user, if any.
func (m *Manager) Current() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// Login authenticates against the backend and persists the user record.
func (m *Manager) Login(ctx context.Context, username, password string) (User, error) {
	u, err := m.gw.Login(ctx, username, password)
	if err != nil {
		return User{}, fmt.Errorf("login: %w", err)
	}

	m.mu.Lock()
	m.user = u
	m.mu.Unlock()

	if err := m.store.SaveUser(*u); err != nil {
		slog.Error("failed to persist user", "username", u.Username, "error", err)
	}
	return *u, nil
}

// Register creates a new account. It does not log in; the original flow
// requires an explicit login after registration.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	if err := m.gw.Register(ctx, username, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Logout clears the user record and the user's active-conversation pointer.
func (m *Manager) Logout() {
	m.mu.Lock()
	u := m.user
	m.user = nil
	m.mu.Unlock()

	if u != nil {
		if err := m.store.ClearActivePointer(u.ID); err != nil {
			slog.Warn("failed to clear active conversation pointer", "error", err)
		}
	}
	if err := m.store.DeleteUser(); err != nil {
		slog.Warn("failed to delete persisted user", "error", err)
	}
}
