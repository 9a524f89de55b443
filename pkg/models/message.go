package models

type Message struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id"`
	ChatKind string `json:"chat_kind"`
	AuthorID int64  `json:"author_id"`
	Text     string `json:"text"`
	// Optional reply-to message id; always a message of the same chat.
	ReplyToID string `json:"reply_to_id,omitempty"`
	// Timestamps are UTC nanoseconds.
	CreatedAt int64 `json:"created_at"`
	EditedAt  int64 `json:"edited_at,omitempty"`
	IsEdited  bool  `json:"is_edited"`
	// IsDeleted marks a tombstone; the row persists but its text is not
	// surfaced to clients.
	IsDeleted bool `json:"is_deleted"`
	IsRead    bool `json:"is_read"`
}

// Public returns the message as surfaced to clients: tombstoned messages
// keep their row but lose their text.
func (m Message) Public() Message {
	if m.IsDeleted {
		m.Text = ""
		m.ReplyToID = ""
	}
	return m
}
