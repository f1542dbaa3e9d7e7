// Package identity produces collision-resistant opaque identifiers for
// client-originated conversations and messages, used until the backend
// assigns its own.
package identity

import "github.com/google/uuid"

// New returns a new opaque identifier. UUIDv7 keeps ids roughly time-ordered,
// which makes logs and on-disk history easier to inspect.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// UserMessageID returns an id for a user-authored message.
func UserMessageID() string { return "u-" + New() }

// BotMessageID returns an id for a bot-authored message.
func BotMessageID() string { return "b-" + New() }

// ErrorMessageID returns an id for a synthesized error message.
func ErrorMessageID() string { return "e-" + New() }

// ConversationID returns an id for a client-originated conversation,
// used as the DriveBot correlation id until the server confirms one.
func ConversationID() string { return "c-" + New() }
