package chat

import (
	"context"

	"github.com/alphachat/client/bot"
	"github.com/alphachat/client/conversation"
	"github.com/alphachat/client/gateway"
)

// SessionState is the orchestrator's per-bot state. Entries for different
// bots share no mutable state, which is what keeps cross-bot sends
// independent.
type SessionState struct {
	Messages      []bot.Message
	CorrelationID string
	Sending       bool
}

// Gateway is the slice of the remote API the orchestrator needs.
type Gateway interface {
	AlphaChat(ctx context.Context, req gateway.AlphaChatRequest) (*gateway.AlphaChatResponse, error)
	DriveChat(ctx context.Context, req gateway.DriveChatRequest) (*gateway.DriveChatResponse, error)
	ConversationMessages(ctx context.Context, conversationID string, userID int) ([]bot.Message, error)
}

// Conversations is the registry surface the orchestrator needs: resolving
// the active conversation and creating one implicitly on first send.
type Conversations interface {
	Active() (conversation.Conversation, bool)
	Create(ctx context.Context, kind bot.Kind, title string) (string, error)
}

// Store is the persistence slice the orchestrator needs.
type Store interface {
	History(kind bot.Kind) ([]bot.Message, error)
	SaveHistory(kind bot.Kind, msgs []bot.Message) error
	CorrelationID(kind bot.Kind) (string, error)
	SaveCorrelationID(kind bot.Kind, id string) error
	SessionBinding(conversationID string) (string, error)
	UnbindSession(conversationID string) error
	FallbackSession() (string, error)
	SaveFallbackSession(sessionID string) error
}

// MessageListener receives bot-authored messages as they are appended,
// so the front end can render them.
type MessageListener interface {
	OnMessage(kind bot.Kind, msg bot.Message)
}
