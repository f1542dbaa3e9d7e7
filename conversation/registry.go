package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphachat/client/bot"
)

// Gateway is the slice of the remote API the registry needs.
type Gateway interface {
	ListConversations(ctx context.Context, userID int) ([]Conversation, error)
	CreateConversation(ctx context.Context, userID int, kind bot.Kind, title string) (string, error)
	RenameConversation(ctx context.Context, conversationID string, userID int, title string) error
	DeleteConversation(ctx context.Context, conversationID string, userID int) error
}

// PointerStore persists the active-conversation pointer per user.
type PointerStore interface {
	ActivePointer(userID int) (string, error)
	SaveActivePointer(userID int, conversationID string) error
	ClearActivePointer(userID int) error
}

// Registry owns the authoritative conversation list for the logged-in user
// and the active-conversation pointer. It never touches message logs; the
// orchestrator reconciles those when the pointer moves.
type Registry struct {
	gw    Gateway
	store PointerStore

	mu            sync.RWMutex
	userID        int
	conversations []Conversation
	activeID      string

	listener OnChangeListener
}

func NewRegistry(gw Gateway, store PointerStore) *Registry {
	return &Registry{gw: gw, store: store}
}

// SetListener registers the change listener. Must be called before use.
func (r *Registry) SetListener(l OnChangeListener) {
	r.mu.Lock()
	r.listener = l
	r.mu.Unlock()
}

// SetUser switches the registry to a new user (or logs out with userID 0).
// The persisted pointer for that user is restored; the conversation list is
// cleared until the next Load.
func (r *Registry) SetUser(userID int) {
	r.mu.Lock()
	r.userID = userID
	r.conversations = nil
	r.activeID = ""

	if userID != 0 {
		if saved, err := r.store.ActivePointer(userID); err != nil {
			slog.Warn("failed to restore active conversation pointer", "error", err)
		} else {
			r.activeID = saved
		}
	}
	r.mu.Unlock()

	r.notify()
}

// Load fetches the full conversation list and replaces the local one
// wholesale. Last fetch wins; there is no merge.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()

	if userID == 0 {
		return ErrNoUser
	}

	list, err := r.gw.ListConversations(ctx, userID)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	r.mu.Lock()
	// Discard a stale fetch if the user changed while it was in flight.
	if r.userID != userID {
		r.mu.Unlock()
		return nil
	}
	r.conversations = list
	r.mu.Unlock()
	return nil
}

// Create makes a new remote conversation, reloads the list, and activates it.
func (r *Registry) Create(ctx context.Context, kind bot.Kind, title string) (string, error) {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()

	if userID == 0 {
		return "", ErrNoUser
	}
	if title == "" {
		title = DefaultTitle
	}

	id, err := r.gw.CreateConversation(ctx, userID, kind, title)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	if err := r.Load(ctx); err != nil {
		slog.Warn("failed to reload conversations after create", "error", err)
	}

	r.setActive(userID, id)
	return id, nil
}

// Switch updates the active pointer. It does not fetch messages; the
// orchestrator reconciles on the change notification.
func (r *Registry) Switch(conversationID string) {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()

	if userID == 0 {
		return
	}
	r.setActive(userID, conversationID)
}

// Rename updates a conversation title remotely and in the local list.
func (r *Registry) Rename(ctx context.Context, conversationID, title string) error {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()

	if userID == 0 {
		return ErrNoUser
	}

	if err := r.gw.RenameConversation(ctx, conversationID, userID, title); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}

	r.mu.Lock()
	for i := range r.conversations {
		if r.conversations[i].ID == conversationID {
			r.conversations[i].Title = title
		}
	}
	r.mu.Unlock()
	return nil
}

// Delete removes a conversation remotely and locally. If it was active, the
// pointer is cleared.
func (r *Registry) Delete(ctx context.Context, conversationID string) error {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()

	if userID == 0 {
		return ErrNoUser
	}

	if err := r.gw.DeleteConversation(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	r.mu.Lock()
	kept := r.conversations[:0]
	for _, c := range r.conversations {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	r.conversations = kept
	wasActive := r.activeID == conversationID
	if wasActive {
		r.activeID = ""
	}
	r.mu.Unlock()

	if wasActive {
		if err := r.store.ClearActivePointer(userID); err != nil {
			slog.Warn("failed to clear active conversation pointer", "error", err)
		}
		r.notify()
	}
	return nil
}

// List returns a copy of the current conversation list.
func (r *Registry) List() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conversation, len(r.conversations))
	copy(out, r.conversations)
	return out
}

// Active resolves the conversation referenced by the pointer.
// Returns found=false when the pointer is empty or dangling.
func (r *Registry) Active() (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return Conversation{}, false
	}
	for _, c := range r.conversations {
		if c.ID == r.activeID {
			return c, true
		}
	}
	return Conversation{}, false
}

// ActiveID returns the raw pointer value, which may be dangling.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

func (r *Registry) setActive(userID int, conversationID string) {
	r.mu.Lock()
	r.activeID = conversationID
	r.mu.Unlock()

	if err := r.store.SaveActivePointer(userID, conversationID); err != nil {
		slog.Warn("failed to persist active conversation pointer", "error", err)
	}
	r.notify()
}

func (r *Registry) notify() {
	r.mu.RLock()
	l := r.listener
	r.mu.RUnlock()

	if l != nil {
		l.OnActiveConversationChange()
	}
}
