package conversation

import (
	"errors"
	"time"

	"github.com/alphachat/client/bot"
)

var (
	ErrNotFound = errors.New("conversation not found")
	ErrNoUser   = errors.New("no authenticated user")
)

// Conversation is one entry in the user's remote conversation list.
// Its bot kind is fixed at creation and never changes.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	BotKind   bot.Kind  `json:"bot_type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTitle is used when a conversation is created implicitly on first send.
const DefaultTitle = "Nova Conversa"

// OnChangeListener receives a notification whenever the active conversation
// pointer changes. The dispatcher uses it to trigger reconciliation.
type OnChangeListener interface {
	OnActiveConversationChange()
}
