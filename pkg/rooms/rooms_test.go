package rooms

import (
	"context"
	"sort"
	"testing"
	"time"

	"collabd/pkg/broker"
	"collabd/pkg/models"
	"collabd/pkg/store"
)

func seedStore(t *testing.T) *store.Pebble {
	t.Helper()
	st, err := store.OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	// user 1 leads project 10 and collaborates on 20; project 30 is foreign
	if err := st.PutProject(ctx, models.Project{ID: 10, LeaderID: 1}); err != nil {
		t.Fatalf("PutProject: %v", err)
	}
	if err := st.PutProject(ctx, models.Project{ID: 20, LeaderID: 2, Collaborators: []int64{1}}); err != nil {
		t.Fatalf("PutProject: %v", err)
	}
	if err := st.PutProject(ctx, models.Project{ID: 30, LeaderID: 3}); err != nil {
		t.Fatalf("PutProject: %v", err)
	}
	if err := st.PutProjectChat(ctx, models.ProjectChat{ID: "pc-10", ProjectID: 10}); err != nil {
		t.Fatalf("PutProjectChat: %v", err)
	}
	// project 20 has no chat row yet
	return st
}

func TestEntitledRooms(t *testing.T) {
	st := seedStore(t)
	got, err := Entitled(context.Background(), st, 1)
	if err != nil {
		t.Fatalf("Entitled: %v", err)
	}
	sort.Strings(got)
	want := []string{General, "chats:pc-10", "kanban:10", "kanban:20"}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected %v; got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v; got %v", want, got)
		}
	}
}

func TestEntitledOutsiderGetsGeneralOnly(t *testing.T) {
	st := seedStore(t)
	got, err := Entitled(context.Background(), st, 99)
	if err != nil {
		t.Fatalf("Entitled: %v", err)
	}
	if len(got) != 1 || got[0] != General {
		t.Fatalf("expected [general]; got %v", got)
	}
}

func TestSubscribeAndApplyDirectives(t *testing.T) {
	b := broker.NewMemory(time.Second)
	r := NewRouter(b)
	r.Subscribe("chan.1", []string{General, "chats:pc-10"})
	if got := b.Members(General); len(got) != 1 {
		t.Fatalf("expected chan.1 in general; got %v", got)
	}

	pc := models.ProjectChat{ID: "pc-10", ProjectID: 10}
	// re-adding an existing membership is a no-op
	r.Apply("chan.1", ProjectDirectives(pc, true))
	if got := b.Members("chats:pc-10"); len(got) != 1 {
		t.Fatalf("expected idempotent add; got %v", got)
	}
	if got := b.Members("kanban:10"); len(got) != 1 {
		t.Fatalf("expected kanban membership added; got %v", got)
	}

	r.Apply("chan.1", ProjectDirectives(pc, false))
	if got := b.Members("chats:pc-10"); len(got) != 0 {
		t.Fatalf("expected chat membership removed; got %v", got)
	}
	if got := b.Members("kanban:10"); len(got) != 0 {
		t.Fatalf("expected kanban membership removed; got %v", got)
	}
	// removal is idempotent too
	r.Apply("chan.1", ProjectDirectives(pc, false))

	r.Unsubscribe("chan.1", []string{General})
	if got := b.Members(General); len(got) != 0 {
		t.Fatalf("expected general membership removed; got %v", got)
	}
}

func TestRoomNames(t *testing.T) {
	if ChatRoom("pc-1") != "chats:pc-1" {
		t.Fatalf("unexpected chat room name %q", ChatRoom("pc-1"))
	}
	if KanbanRoom(7) != "kanban:7" {
		t.Fatalf("unexpected kanban room name %q", KanbanRoom(7))
	}
}
