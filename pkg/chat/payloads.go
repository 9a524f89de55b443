package chat

import "collabd/pkg/models"

// Outbound content shapes. NEW_MESSAGE and EDIT_MESSAGE carry the full
// serialized message; DELETE_MESSAGE and READ_MESSAGE carry just ids.

type messagePayload struct {
	ChatID  string         `json:"chat_id"`
	Message models.Message `json:"message"`
}

type messageRefPayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

type typingPayload struct {
	ChatID string `json:"chat_id"`
	UserID int64  `json:"user_id"`
	// EndTime is ISO-8601 (RFC 3339); clients stop the indicator then.
	EndTime string `json:"end_time"`
}

type presencePayload struct {
	UserID int64 `json:"user_id"`
}
