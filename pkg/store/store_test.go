package store

import (
	"context"
	"testing"

	"collabd/pkg/models"
)

func openTest(t *testing.T) *Pebble {
	t.Helper()
	s, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u := models.User{ID: 7, Username: "ada", FirstName: "Ada", IsActive: true}
	if err := s.PutUser(ctx, u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	got, err := s.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "ada" || !got.IsActive {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := s.GetUser(ctx, 8); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestListCollaboratorProjects(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	projects := []models.Project{
		{ID: 1, LeaderID: 10},
		{ID: 2, LeaderID: 11, Collaborators: []int64{10, 12}},
		{ID: 3, LeaderID: 13},
	}
	for _, p := range projects {
		if err := s.PutProject(ctx, p); err != nil {
			t.Fatalf("PutProject: %v", err)
		}
	}
	got, err := s.ListCollaboratorProjects(ctx, 10)
	if err != nil {
		t.Fatalf("ListCollaboratorProjects: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected projects 1 and 2; got %+v", got)
	}
}

func TestCreateDirectChatCanonical(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	c1, err := s.CreateDirectChat(ctx, 9, 4)
	if err != nil {
		t.Fatalf("CreateDirectChat: %v", err)
	}
	if c1.ID != "4_9" || c1.UserA != 4 || c1.UserB != 9 {
		t.Fatalf("expected canonical 4_9; got %+v", c1)
	}
	// the reversed pair resolves to the same row
	c2, err := s.CreateDirectChat(ctx, 4, 9)
	if err != nil {
		t.Fatalf("CreateDirectChat again: %v", err)
	}
	if c2.ID != c1.ID {
		t.Fatalf("expected same chat; got %+v", c2)
	}
}

func TestSelfChatRow(t *testing.T) {
	s := openTest(t)
	c, err := s.CreateDirectChat(context.Background(), 5, 5)
	if err != nil {
		t.Fatalf("CreateDirectChat: %v", err)
	}
	if c.ID != "5_5" || c.UserA != 5 || c.UserB != 5 {
		t.Fatalf("unexpected self chat %+v", c)
	}
}

func TestProjectChatIndex(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	pc := models.ProjectChat{ID: "pc-42", ProjectID: 42}
	if err := s.PutProjectChat(ctx, pc); err != nil {
		t.Fatalf("PutProjectChat: %v", err)
	}
	got, err := s.GetProjectChatByProject(ctx, 42)
	if err != nil {
		t.Fatalf("GetProjectChatByProject: %v", err)
	}
	if got.ID != "pc-42" {
		t.Fatalf("expected pc-42; got %+v", got)
	}
	if _, err := s.GetProjectChatByProject(ctx, 43); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestCreateMessageAssignsOrderedIDs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	var prev string
	for i := 0; i < 5; i++ {
		m, err := s.CreateMessage(ctx, models.Message{ChatID: "1_2", ChatKind: models.KindDirect, AuthorID: 1, Text: "hi"})
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		if m.ID == "" || m.CreatedAt == 0 {
			t.Fatalf("expected assigned id and timestamp; got %+v", m)
		}
		if prev != "" && m.ID <= prev {
			t.Fatalf("expected ids to sort in creation order; %q <= %q", m.ID, prev)
		}
		prev = m.ID
	}
}

func TestListMessagesOrderLimitBefore(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 4; i++ {
		m, err := s.CreateMessage(ctx, models.Message{ChatID: "1_2", ChatKind: models.KindDirect, AuthorID: 1, Text: "m"})
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		ids = append(ids, m.ID)
	}
	// a different chat must not leak in
	if _, err := s.CreateMessage(ctx, models.Message{ChatID: "1_3", ChatKind: models.KindDirect, AuthorID: 1, Text: "other"}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	all, err := s.ListMessages(ctx, models.KindDirect, "1_2", "", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 messages; got %d", len(all))
	}
	for i, m := range all {
		if m.ID != ids[i] {
			t.Fatalf("expected oldest-first order; got %v", all)
		}
	}

	last2, err := s.ListMessages(ctx, models.KindDirect, "1_2", "", 2)
	if err != nil {
		t.Fatalf("ListMessages limit: %v", err)
	}
	if len(last2) != 2 || last2[0].ID != ids[2] || last2[1].ID != ids[3] {
		t.Fatalf("expected newest 2 in order; got %v", last2)
	}

	older, err := s.ListMessages(ctx, models.KindDirect, "1_2", ids[2], 0)
	if err != nil {
		t.Fatalf("ListMessages before: %v", err)
	}
	if len(older) != 2 || older[1].ID != ids[1] {
		t.Fatalf("expected messages strictly before %s; got %v", ids[2], older)
	}
}

func TestUpdateMessagePatch(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	m, err := s.CreateMessage(ctx, models.Message{ChatID: "1_2", ChatKind: models.KindDirect, AuthorID: 1, Text: "draft"})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	text := "final"
	edited := true
	editedAt := int64(123)
	got, err := s.UpdateMessage(ctx, m.ID, MessagePatch{Text: &text, IsEdited: &edited, EditedAt: &editedAt})
	if err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
	if got.Text != "final" || !got.IsEdited || got.EditedAt != 123 {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.IsDeleted || got.IsRead {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if _, err := s.UpdateMessage(ctx, "missing", MessagePatch{Text: &text}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestBoardColumns(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if err := s.PutBoard(ctx, models.Board{ID: 1, ProjectID: 9}); err != nil {
		t.Fatalf("PutBoard: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		col := models.BoardColumn{ID: i, BoardID: 1, Name: string(rune('A' - 1 + i)), Order: int(i)}
		if err := s.PutBoardColumn(ctx, col); err != nil {
			t.Fatalf("PutBoardColumn: %v", err)
		}
	}
	cols, err := s.ListBoardColumns(ctx, 1)
	if err != nil {
		t.Fatalf("ListBoardColumns: %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns; got %d", len(cols))
	}
	if err := s.DeleteBoardColumn(ctx, 1, 2); err != nil {
		t.Fatalf("DeleteBoardColumn: %v", err)
	}
	cols, _ = s.ListBoardColumns(ctx, 1)
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns after delete; got %d", len(cols))
	}
}

func TestNextIDMonotonic(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	var prev int64
	for i := 0; i < 5; i++ {
		n, err := s.NextID(ctx, "board_column")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if n <= prev {
			t.Fatalf("expected strictly increasing ids; got %d after %d", n, prev)
		}
		prev = n
	}
	// a separate sequence starts from 1
	n, err := s.NextID(ctx, "other")
	if err != nil {
		t.Fatalf("NextID other: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected fresh sequence to start at 1; got %d", n)
	}
}
