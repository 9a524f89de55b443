package models

import "encoding/json"

// Event types accepted on the chat socket and echoed on outbound frames.
const (
	EventNewMessage    = "NEW_MESSAGE"
	EventEditMessage   = "EDIT_MESSAGE"
	EventDeleteMessage = "DELETE_MESSAGE"
	EventReadMessage   = "READ_MESSAGE"
	EventTyping        = "TYPING"
	EventSetOnline     = "SET_ONLINE"
	EventSetOffline    = "SET_OFFLINE"
	EventKanban        = "kanban_event"
)

// Event is the inbound frame envelope.
type Event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Frame is the outbound frame envelope; Content is serialized as-is.
type Frame struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// ErrorFrame is the reply sent to the originating channel when a domain
// error occurs. The connection stays open.
type ErrorFrame struct {
	Error string `json:"error"`
}
