package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/alphachat/client/auth"
	"github.com/alphachat/client/bot"
)

// FileStore implements Store using one JSON document per concern under a
// data directory. Corrupted or missing files degrade to empty state rather
// than failing startup.
type FileStore struct {
	dataDir string
	mu      sync.RWMutex
}

// bindingsData is the structure of bindings.json.
type bindingsData struct {
	Sessions map[string]string `json:"sessions"` // conversation id -> backend session id
	Fallback string            `json:"fallback"` // most recent upload, used when no binding exists
}

// prefsData is the structure of prefs.json.
type prefsData struct {
	Theme string `json:"theme"`
}

// NewFileStore creates a FileStore rooted at dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dataDir, name)
}

// readJSON loads a JSON file into out. Missing or corrupted files leave out
// untouched so callers start from their zero value.
func (s *FileStore) readJSON(name string, out any) error {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Fall back to empty state for corrupted JSON
		return nil
	}
	return nil
}

// writeJSON atomically replaces a JSON file: write to a temp file in the
// same directory, then rename.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dataDir, name+".tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, s.path(name))
}

// History returns the persisted message log for a bot.
func (s *FileStore) History(kind bot.Kind) ([]bot.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	histories := make(map[bot.Kind][]bot.Message)
	if err := s.readJSON("history.json", &histories); err != nil {
		return nil, err
	}
	return histories[kind], nil
}

// SaveHistory replaces the persisted message log for a bot. Transient typing
// placeholders are stripped; they must never survive a reload.
func (s *FileStore) SaveHistory(kind bot.Kind, msgs []bot.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	histories := make(map[bot.Kind][]bot.Message)
	if err := s.readJSON("history.json", &histories); err != nil {
		return err
	}

	kept := make([]bot.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsTyping {
			continue
		}
		kept = append(kept, m)
	}
	histories[kind] = kept

	return s.writeJSON("history.json", histories)
}

// CorrelationID returns the stored correlation id for a bot, or "".
func (s *FileStore) CorrelationID(kind bot.Kind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[bot.Kind]string)
	if err := s.readJSON("correlations.json", &ids); err != nil {
		return "", err
	}
	return ids[kind], nil
}

// SaveCorrelationID stores the correlation id for a bot.
func (s *FileStore) SaveCorrelationID(kind bot.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[bot.Kind]string)
	if err := s.readJSON("correlations.json", &ids); err != nil {
		return err
	}
	ids[kind] = id
	return s.writeJSON("correlations.json", ids)
}

// ActivePointer returns the active conversation id for a user, or "".
func (s *FileStore) ActivePointer(userID int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pointers := make(map[string]string)
	if err := s.readJSON("pointers.json", &pointers); err != nil {
		return "", err
	}
	return pointers[strconv.Itoa(userID)], nil
}

// SaveActivePointer stores the active conversation id for a user.
func (s *FileStore) SaveActivePointer(userID int, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pointers := make(map[string]string)
	if err := s.readJSON("pointers.json", &pointers); err != nil {
		return err
	}
	pointers[strconv.Itoa(userID)] = conversationID
	return s.writeJSON("pointers.json", pointers)
}

// ClearActivePointer removes the active conversation id for a user.
func (s *FileStore) ClearActivePointer(userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pointers := make(map[string]string)
	if err := s.readJSON("pointers.json", &pointers); err != nil {
		return err
	}
	delete(pointers, strconv.Itoa(userID))
	return s.writeJSON("pointers.json", pointers)
}

func (s *FileStore) readBindings() (bindingsData, error) {
	b := bindingsData{Sessions: make(map[string]string)}
	if err := s.readJSON("bindings.json", &b); err != nil {
		return bindingsData{}, err
	}
	if b.Sessions == nil {
		b.Sessions = make(map[string]string)
	}
	return b, nil
}

// SessionBinding returns the backend session bound to a conversation, or "".
func (s *FileStore) SessionBinding(conversationID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.readBindings()
	if err != nil {
		return "", err
	}
	return b.Sessions[conversationID], nil
}

// BindSession binds a backend session id to a conversation.
func (s *FileStore) BindSession(conversationID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.readBindings()
	if err != nil {
		return err
	}
	b.Sessions[conversationID] = sessionID
	return s.writeJSON("bindings.json", b)
}

// UnbindSession removes the session binding for a conversation.
func (s *FileStore) UnbindSession(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.readBindings()
	if err != nil {
		return err
	}
	delete(b.Sessions, conversationID)
	return s.writeJSON("bindings.json", b)
}

// FallbackSession returns the global fallback session id, or "".
func (s *FileStore) FallbackSession() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.readBindings()
	if err != nil {
		return "", err
	}
	return b.Fallback, nil
}

// SaveFallbackSession stores the global fallback session id.
func (s *FileStore) SaveFallbackSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.readBindings()
	if err != nil {
		return err
	}
	b.Fallback = sessionID
	return s.writeJSON("bindings.json", b)
}

// Theme returns the persisted theme preference, or "".
func (s *FileStore) Theme() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p prefsData
	if err := s.readJSON("prefs.json", &p); err != nil {
		return "", err
	}
	return p.Theme, nil
}

// SaveTheme stores the theme preference.
func (s *FileStore) SaveTheme(theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p prefsData
	if err := s.readJSON("prefs.json", &p); err != nil {
		return err
	}
	p.Theme = theme
	return s.writeJSON("prefs.json", p)
}

// User returns the persisted authenticated user. Returns (user, found, error).
func (s *FileStore) User() (auth.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u auth.User
	if err := s.readJSON("user.json", &u); err != nil {
		return auth.User{}, false, err
	}
	if u.ID == 0 && u.Username == "" {
		return auth.User{}, false, nil
	}
	return u, true, nil
}

// SaveUser persists the authenticated user record.
func (s *FileStore) SaveUser(u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON("user.json", u)
}

// DeleteUser removes the persisted user record.
func (s *FileStore) DeleteUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path("user.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
