package models

import "testing"

func TestDirectChatIDCanonical(t *testing.T) {
	if got := DirectChatID(9, 4); got != "4_9" {
		t.Fatalf("expected 4_9; got %q", got)
	}
	if DirectChatID(4, 9) != DirectChatID(9, 4) {
		t.Fatalf("expected both orderings to agree")
	}
	if got := DirectChatID(5, 5); got != "5_5" {
		t.Fatalf("expected 5_5 self chat; got %q", got)
	}
}

func TestParseDirectChatID(t *testing.T) {
	a, b, err := ParseDirectChatID("4_9")
	if err != nil {
		t.Fatalf("ParseDirectChatID: %v", err)
	}
	if a != 4 || b != 9 {
		t.Fatalf("expected (4, 9); got (%d, %d)", a, b)
	}
	for _, bad := range []string{"", "4", "4_", "_9", "a_b", "4-9"} {
		if _, _, err := ParseDirectChatID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestProjectMembership(t *testing.T) {
	p := Project{ID: 1, LeaderID: 10, Collaborators: []int64{11, 12}}
	for _, id := range []int64{10, 11, 12} {
		if !p.IsMember(id) {
			t.Fatalf("expected %d to be a member", id)
		}
	}
	if p.IsMember(13) {
		t.Fatalf("expected 13 to be an outsider")
	}
}

func TestMessagePublicHidesTombstoneText(t *testing.T) {
	m := Message{ID: "m1", Text: "secret", ReplyToID: "m0", IsDeleted: true}
	pub := m.Public()
	if pub.Text != "" || pub.ReplyToID != "" {
		t.Fatalf("expected tombstone stripped; got %+v", pub)
	}
	if !pub.IsDeleted || pub.ID != "m1" {
		t.Fatalf("expected row identity preserved; got %+v", pub)
	}
	live := Message{ID: "m2", Text: "keep"}
	if live.Public().Text != "keep" {
		t.Fatalf("expected live message untouched")
	}
}
