// Package chat is the bot session orchestrator: it owns the per-bot message
// logs, the typing/in-flight flags and the correlation-id bindings, and it
// coordinates sending, error translation and reconciliation when the active
// bot or conversation changes. No error ever propagates out of its public
// operations; every failure path ends in a synthesized bot message or a
// forced-empty log.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alphachat/client/bot"
	"github.com/alphachat/client/conversation"
	"github.com/alphachat/client/gateway"
	"github.com/alphachat/client/identity"
)

type Orchestrator struct {
	gw    Gateway
	convs Conversations
	store Store

	mu       sync.Mutex
	active   bot.Kind
	userID   int
	sessions map[bot.Kind]*SessionState
	// epochs invalidate in-flight reconciliations: a reconcile result is
	// applied only if the epoch it captured is still current. Clear,
	// SelectBot and every log append bump the epoch for their bot, so a
	// fetch that spans a concurrent send cannot wipe the appended messages.
	epochs map[bot.Kind]uint64

	listener MessageListener
}

// NewOrchestrator restores per-bot logs and correlation ids from the store.
// The DriveBot correlation id is generated eagerly when none is persisted,
// matching the production front end.
func NewOrchestrator(gw Gateway, convs Conversations, store Store) *Orchestrator {
	o := &Orchestrator{
		gw:       gw,
		convs:    convs,
		store:    store,
		active:   bot.KindAlpha,
		sessions: make(map[bot.Kind]*SessionState),
		epochs:   make(map[bot.Kind]uint64),
	}

	for _, kind := range bot.Kinds() {
		st := &SessionState{}
		if msgs, err := store.History(kind); err != nil {
			slog.Warn("failed to restore message history", "bot", kind, "error", err)
		} else {
			st.Messages = msgs
		}
		if id, err := store.CorrelationID(kind); err != nil {
			slog.Warn("failed to restore correlation id", "bot", kind, "error", err)
		} else {
			st.CorrelationID = id
		}
		o.sessions[kind] = st
	}

	drive := o.sessions[bot.KindDrive]
	if drive.CorrelationID == "" {
		drive.CorrelationID = identity.ConversationID()
		if err := store.SaveCorrelationID(bot.KindDrive, drive.CorrelationID); err != nil {
			slog.Warn("failed to persist correlation id", "error", err)
		}
	}

	return o
}

// SetMessageListener registers the sink for bot-authored messages.
func (o *Orchestrator) SetMessageListener(l MessageListener) {
	o.mu.Lock()
	o.listener = l
	o.mu.Unlock()
}

// SetUser records the authenticated user whose id scopes backend calls.
// The dispatcher reconciles after calling this.
func (o *Orchestrator) SetUser(userID int) {
	o.mu.Lock()
	o.userID = userID
	o.mu.Unlock()
}

// ActiveKind returns the currently selected bot.
func (o *Orchestrator) ActiveKind() bot.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Messages returns a copy of the active bot's visible log.
func (o *Orchestrator) Messages() []bot.Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.sessions[o.active]
	out := make([]bot.Message, len(st.Messages))
	copy(out, st.Messages)
	return out
}

// CorrelationID returns the current correlation id for a bot, or "".
func (o *Orchestrator) CorrelationID(kind bot.Kind) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if st, ok := o.sessions[kind]; ok {
		return st.CorrelationID
	}
	return ""
}

// Sending reports whether a send is in flight for the active bot.
func (o *Orchestrator) Sending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[o.active].Sending
}

// SelectBot switches the active bot. The new bot's visible log is cleared
// immediately, before any reconciliation fetch resolves, so the previous
// bot's content never flashes through. The dispatcher reconciles afterwards.
func (o *Orchestrator) SelectBot(kind bot.Kind) {
	if !kind.IsValid() {
		return
	}

	o.mu.Lock()
	if kind == o.active {
		o.mu.Unlock()
		return
	}
	o.active = kind
	o.epochs[kind]++
	o.sessions[kind].Messages = nil
	o.persistLocked(kind)
	o.mu.Unlock()
}

// Send dispatches one user message to the active bot. Blank text and sends
// issued while one is already in flight for the same bot are no-ops with no
// side effects. Exactly one bot message is appended per completed call,
// success or failure.
func (o *Orchestrator) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	o.mu.Lock()
	kind := o.active
	st := o.sessions[kind]
	if st.Sending {
		o.mu.Unlock()
		return
	}
	st.Sending = true
	userID := o.userID

	// Optimistic append: the user message lands before the network round
	// trip and is never retracted on failure.
	st.Messages = append(st.Messages, bot.Message{
		ID:        identity.UserMessageID(),
		Author:    bot.AuthorUser,
		Text:      text,
		CreatedAt: time.Now(),
	})
	o.epochs[kind]++
	o.persistLocked(kind)
	o.mu.Unlock()

	reply := o.dispatch(ctx, kind, userID, text)

	o.mu.Lock()
	st = o.sessions[kind]
	st.Messages = append(st.Messages, reply)
	st.Sending = false
	o.epochs[kind]++
	o.persistLocked(kind)
	l := o.listener
	o.mu.Unlock()

	if l != nil {
		l.OnMessage(kind, reply)
	}
}

// dispatch resolves the conversation and performs the bot-specific request.
// It always returns exactly one bot-authored message.
func (o *Orchestrator) dispatch(ctx context.Context, kind bot.Kind, userID int, text string) bot.Message {
	convID := ""
	if conv, ok := o.convs.Active(); ok && conv.BotKind == kind {
		convID = conv.ID
	} else {
		id, err := o.convs.Create(ctx, kind, conversation.DefaultTitle)
		if err != nil {
			slog.Warn("failed to resolve conversation for send", "bot", kind, "error", err)
			return o.errorMessage(kind, MsgConversationFailed)
		}
		convID = id
	}

	switch kind {
	case bot.KindAlpha:
		return o.sendAlpha(ctx, convID, userID, text)
	default:
		return o.sendDrive(ctx, convID, userID, text)
	}
}

func (o *Orchestrator) sendAlpha(ctx context.Context, convID string, userID int, text string) bot.Message {
	sessionID := o.resolveAlphaSession(convID)
	if sessionID == "" {
		// Precondition, not a network failure: no call is attempted.
		return o.errorMessage(bot.KindAlpha, MsgAttachFilesFirst)
	}

	resp, err := o.gw.AlphaChat(ctx, gateway.AlphaChatRequest{
		SessionID:      sessionID,
		Message:        text,
		ConversationID: convID,
		UserID:         userID,
	})
	if err != nil {
		slog.Warn("alphabot send failed", "error", err)
		return o.errorMessage(bot.KindAlpha, Classify(err))
	}

	return bot.Message{
		ID:          identity.BotMessageID(),
		Author:      bot.AuthorBot,
		Bot:         bot.KindAlpha,
		Text:        resp.Answer,
		CreatedAt:   time.Now(),
		Suggestions: resp.Suggestions,
		SessionRef:  resp.SessionID,
		Chart:       resp.Chart,
	}
}

func (o *Orchestrator) sendDrive(ctx context.Context, convID string, userID int, text string) bot.Message {
	o.mu.Lock()
	corr := o.sessions[bot.KindDrive].CorrelationID
	o.mu.Unlock()

	resp, err := o.gw.DriveChat(ctx, gateway.DriveChatRequest{
		Message:        text,
		ConversationID: corr,
		UserID:         userID,
	})
	if err != nil {
		slog.Warn("drivebot send failed", "error", err)
		return o.errorMessage(bot.KindDrive, Classify(err))
	}

	// The backend may assign or replace the correlation id; rebind.
	if resp.ConversationID != "" && resp.ConversationID != corr {
		o.mu.Lock()
		o.sessions[bot.KindDrive].CorrelationID = resp.ConversationID
		o.mu.Unlock()
		if err := o.store.SaveCorrelationID(bot.KindDrive, resp.ConversationID); err != nil {
			slog.Warn("failed to persist correlation id", "error", err)
		}
	}
	_ = convID // server-side scoping only; DriveBot history follows the correlation id

	return bot.Message{
		ID:          identity.BotMessageID(),
		Author:      bot.AuthorBot,
		Bot:         bot.KindDrive,
		Text:        resp.Response,
		CreatedAt:   time.Now(),
		Suggestions: resp.Suggestions,
		Chart:       resp.Chart,
	}
}

// resolveAlphaSession finds the backend session for an AlphaBot send: the
// binding for the active conversation, else the global fallback.
func (o *Orchestrator) resolveAlphaSession(convID string) string {
	if convID != "" {
		if id, err := o.store.SessionBinding(convID); err != nil {
			slog.Warn("failed to read session binding", "error", err)
		} else if id != "" {
			return id
		}
	}
	id, err := o.store.FallbackSession()
	if err != nil {
		slog.Warn("failed to read fallback session", "error", err)
		return ""
	}
	return id
}

// AddMessage appends a message to the active bot's log without touching the
// network or the sending flag. Used for synthesized informational entries
// such as upload confirmations.
func (o *Orchestrator) AddMessage(msg bot.Message) {
	o.mu.Lock()
	kind := o.active
	st := o.sessions[kind]
	st.Messages = append(st.Messages, msg)
	o.epochs[kind]++
	o.persistLocked(kind)
	l := o.listener
	o.mu.Unlock()

	if l != nil && msg.Author == bot.AuthorBot {
		l.OnMessage(kind, msg)
	}
}

// Clear empties the active bot's log. For AlphaBot it also invalidates the
// session bindings, so the next send hits the attach-files precondition.
// For DriveBot it generates a fresh client-side correlation id, so a later
// send cannot resurrect server-side history. Any in-flight reconciliation
// for this bot is invalidated.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	kind := o.active
	st := o.sessions[kind]
	st.Messages = nil
	o.epochs[kind]++
	o.persistLocked(kind)
	o.mu.Unlock()

	var convID string
	if conv, ok := o.convs.Active(); ok {
		convID = conv.ID
	}

	switch kind {
	case bot.KindAlpha:
		if convID != "" {
			if err := o.store.UnbindSession(convID); err != nil {
				slog.Warn("failed to unbind session", "error", err)
			}
		}
		if err := o.store.SaveFallbackSession(""); err != nil {
			slog.Warn("failed to clear fallback session", "error", err)
		}
		o.mu.Lock()
		st.CorrelationID = ""
		o.mu.Unlock()
	case bot.KindDrive:
		fresh := identity.ConversationID()
		o.mu.Lock()
		st.CorrelationID = fresh
		o.mu.Unlock()
		if err := o.store.SaveCorrelationID(kind, fresh); err != nil {
			slog.Warn("failed to persist correlation id", "error", err)
		}
	}
}

// Reconcile replaces the active bot's log with the authoritative remote
// history for the active conversation. It is the single reconciliation
// entry point, invoked by the dispatcher whenever the active bot, the
// active conversation or the authenticated user changes.
//
// A missing or kind-mismatched conversation forces an empty log with no
// fetch. A failed fetch also forces empty: a blank conversation view is
// preferred over a wrong one. Results that arrive after the pointer moved,
// after a Clear, or after anything was appended to the log are discarded.
func (o *Orchestrator) Reconcile(ctx context.Context) {
	o.mu.Lock()
	kind := o.active
	st := o.sessions[kind]
	if st.Sending {
		// The send path owns the log until it completes; reconciling now
		// would drop the optimistic append.
		o.mu.Unlock()
		return
	}
	epoch := o.epochs[kind]
	userID := o.userID
	o.mu.Unlock()

	conv, ok := o.convs.Active()
	if !ok || conv.BotKind != kind || userID == 0 {
		o.mu.Lock()
		if o.epochs[kind] == epoch {
			o.sessions[kind].Messages = nil
			o.persistLocked(kind)
		}
		o.mu.Unlock()
		return
	}

	msgs, err := o.gw.ConversationMessages(ctx, conv.ID, userID)

	o.mu.Lock()
	defer o.mu.Unlock()

	// Stale guard: discard if this bot was cleared, re-selected or appended
	// to while the fetch was in flight, if the pointer moved, or if another
	// bot is active now.
	if o.epochs[kind] != epoch || o.active != kind {
		return
	}
	if cur, ok := o.convs.Active(); !ok || cur.ID != conv.ID {
		return
	}

	if err != nil {
		// Background event only; never surfaced as a chat message.
		slog.Warn("history reconciliation failed, forcing empty log",
			"bot", kind, "conversationId", conv.ID, "error", err)
		o.sessions[kind].Messages = nil
	} else {
		o.sessions[kind].Messages = msgs
	}
	o.persistLocked(kind)
}

func (o *Orchestrator) errorMessage(kind bot.Kind, text string) bot.Message {
	return bot.Message{
		ID:        identity.ErrorMessageID(),
		Author:    bot.AuthorBot,
		Bot:       kind,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// persistLocked writes the bot's log through the store. Caller holds o.mu.
// Persistence failures are logged and never interrupt the conversation.
func (o *Orchestrator) persistLocked(kind bot.Kind) {
	if err := o.store.SaveHistory(kind, o.sessions[kind].Messages); err != nil {
		slog.Error("failed to persist message history", "bot", kind, "error", err)
	}
}
