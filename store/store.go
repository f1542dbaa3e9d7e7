// Package store is the local persistence adapter: a durable key/value layer
// holding per-bot message history, correlation ids, the active-conversation
// pointer, backend session bindings, the theme preference and the
// authenticated-user record. It is pure storage; no business logic lives
// here, and every other component depends on the Store interface rather
// than on the file layout.
package store

import (
	"github.com/alphachat/client/auth"
	"github.com/alphachat/client/bot"
)

// Store defines the persistence operations consumed by the rest of the
// client. Writes are last-write-wins; callers serialize their own mutations.
type Store interface {
	// Per-bot message history
	History(kind bot.Kind) ([]bot.Message, error)
	SaveHistory(kind bot.Kind, msgs []bot.Message) error

	// Per-bot correlation ids (client-side DriveBot conversation ids)
	CorrelationID(kind bot.Kind) (string, error)
	SaveCorrelationID(kind bot.Kind, id string) error

	// Active-conversation pointer, scoped per logged-in user
	ActivePointer(userID int) (string, error)
	SaveActivePointer(userID int, conversationID string) error
	ClearActivePointer(userID int) error

	// AlphaBot backend session bindings
	SessionBinding(conversationID string) (string, error)
	BindSession(conversationID, sessionID string) error
	UnbindSession(conversationID string) error
	FallbackSession() (string, error)
	SaveFallbackSession(sessionID string) error

	// UI preferences
	Theme() (string, error)
	SaveTheme(theme string) error

	// Authenticated user record
	User() (auth.User, bool, error)
	SaveUser(auth.User) error
	DeleteUser() error
}
