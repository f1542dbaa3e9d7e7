package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alphachat/client/bot"
	"github.com/alphachat/client/store"
)

type fakeGateway struct {
	mu   sync.Mutex
	list []Conversation

	listErr   error
	createErr error
	renameErr error
	deleteErr error

	nextID      string
	createCalls int
}

func (f *fakeGateway) ListConversations(ctx context.Context, userID int) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Conversation, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeGateway) CreateConversation(ctx context.Context, userID int, kind bot.Kind, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.list = append(f.list, Conversation{ID: f.nextID, UserID: userID, BotKind: kind, Title: title})
	return f.nextID, nil
}

func (f *fakeGateway) RenameConversation(ctx context.Context, conversationID string, userID int, title string) error {
	return f.renameErr
}

func (f *fakeGateway) DeleteConversation(ctx context.Context, conversationID string, userID int) error {
	return f.deleteErr
}

type changeRecorder struct {
	mu    sync.Mutex
	count int
}

func (c *changeRecorder) OnActiveConversationChange() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *changeRecorder) notifications() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func newTestRegistry(t *testing.T, gw *fakeGateway) (*Registry, *store.FileStore, *changeRecorder) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	rec := &changeRecorder{}
	r := NewRegistry(gw, st)
	r.SetListener(rec)
	return r, st, rec
}

func TestLoad_RequiresUser(t *testing.T) {
	r, _, _ := newTestRegistry(t, &fakeGateway{})

	if err := r.Load(context.Background()); !errors.Is(err, ErrNoUser) {
		t.Errorf("expected ErrNoUser, got %v", err)
	}
}

func TestLoad_ReplacesListWholesale(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a", Title: "primeira"}}}
	r, _, _ := newTestRegistry(t, gw)
	r.SetUser(1)

	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := r.List(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected list after first load: %+v", got)
	}

	// Remote list shrank; local copy must not keep stale entries.
	gw.mu.Lock()
	gw.list = []Conversation{{ID: "b", Title: "segunda"}}
	gw.mu.Unlock()

	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := r.List(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("expected wholesale replacement, got %+v", got)
	}
}

func TestCreate_ActivatesAndPersistsPointer(t *testing.T) {
	gw := &fakeGateway{nextID: "c-1"}
	r, st, _ := newTestRegistry(t, gw)
	r.SetUser(1)

	id, err := r.Create(context.Background(), bot.KindAlpha, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "c-1" {
		t.Errorf("unexpected id %q", id)
	}

	active, ok := r.Active()
	if !ok || active.ID != "c-1" {
		t.Errorf("expected new conversation active, got %+v ok=%v", active, ok)
	}
	if active.Title != DefaultTitle {
		t.Errorf("empty title must default to %q, got %q", DefaultTitle, active.Title)
	}

	saved, err := st.ActivePointer(1)
	if err != nil || saved != "c-1" {
		t.Errorf("pointer not persisted: %q, %v", saved, err)
	}
}

func TestSwitch_MovesPointerAndNotifies(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a"}, {ID: "b"}}}
	r, st, rec := newTestRegistry(t, gw)
	r.SetUser(1)
	r.Load(context.Background())
	before := rec.notifications()

	r.Switch("b")

	if got := r.ActiveID(); got != "b" {
		t.Errorf("expected pointer on b, got %q", got)
	}
	if saved, _ := st.ActivePointer(1); saved != "b" {
		t.Errorf("pointer not persisted, got %q", saved)
	}
	if rec.notifications() != before+1 {
		t.Errorf("expected one change notification, got %d", rec.notifications()-before)
	}
}

func TestActive_DanglingPointerNotFound(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a"}}}
	r, _, _ := newTestRegistry(t, gw)
	r.SetUser(1)
	r.Load(context.Background())

	r.Switch("ghost")

	if _, ok := r.Active(); ok {
		t.Error("dangling pointer must not resolve")
	}
	if got := r.ActiveID(); got != "ghost" {
		t.Errorf("raw pointer should survive, got %q", got)
	}
}

func TestRename_UpdatesLocalEntry(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a", Title: "velho"}}}
	r, _, _ := newTestRegistry(t, gw)
	r.SetUser(1)
	r.Load(context.Background())

	if err := r.Rename(context.Background(), "a", "novo"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if got := r.List(); got[0].Title != "novo" {
		t.Errorf("expected renamed entry, got %+v", got)
	}
}

func TestRename_RemoteFailureKeepsLocalTitle(t *testing.T) {
	gw := &fakeGateway{
		list:      []Conversation{{ID: "a", Title: "velho"}},
		renameErr: errors.New("boom"),
	}
	r, _, _ := newTestRegistry(t, gw)
	r.SetUser(1)
	r.Load(context.Background())

	if err := r.Rename(context.Background(), "a", "novo"); err == nil {
		t.Fatal("expected error")
	}
	if got := r.List(); got[0].Title != "velho" {
		t.Errorf("local title must not change on remote failure, got %+v", got)
	}
}

func TestDelete_ActiveClearsPointer(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a"}, {ID: "b"}}}
	r, st, _ := newTestRegistry(t, gw)
	r.SetUser(1)
	r.Load(context.Background())
	r.Switch("a")

	if err := r.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := r.Active(); ok {
		t.Error("deleted conversation must not remain active")
	}
	if saved, _ := st.ActivePointer(1); saved != "" {
		t.Errorf("persisted pointer must be cleared, got %q", saved)
	}
	if got := r.List(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("expected only b to remain, got %+v", got)
	}
}

func TestDelete_InactiveKeepsPointer(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a"}, {ID: "b"}}}
	r, _, _ := newTestRegistry(t, gw)
	r.SetUser(1)
	r.Load(context.Background())
	r.Switch("a")

	if err := r.Delete(context.Background(), "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := r.ActiveID(); got != "a" {
		t.Errorf("pointer must survive deleting another conversation, got %q", got)
	}
}

func TestSetUser_RestoresPersistedPointer(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a"}}}
	r, st, _ := newTestRegistry(t, gw)
	st.SaveActivePointer(7, "a")

	r.SetUser(7)
	r.Load(context.Background())

	active, ok := r.Active()
	if !ok || active.ID != "a" {
		t.Errorf("expected restored pointer to resolve, got %+v ok=%v", active, ok)
	}
}

func TestSetUser_PointersAreScopedPerUser(t *testing.T) {
	gw := &fakeGateway{list: []Conversation{{ID: "a"}}}
	r, st, _ := newTestRegistry(t, gw)
	st.SaveActivePointer(1, "a")

	r.SetUser(2)

	if got := r.ActiveID(); got != "" {
		t.Errorf("another user's pointer must not leak, got %q", got)
	}
}
