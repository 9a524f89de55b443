package chat

import "errors"

// ErrUnknownEventType is fatal: the connection is closed with 4400.
var ErrUnknownEventType = errors.New("unknown event type")

// DomainError is a recoverable chat-level failure. It is converted to an
// {"error": "..."} frame on the originating channel; the connection stays
// open.
type DomainError struct {
	Code   string
	Detail string
}

func (e *DomainError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

func errNonMatchingDirectChatID(chatID string) *DomainError {
	return &DomainError{Code: "NonMatchingDirectChatId", Detail: "caller is not a party of chat " + chatID}
}

func errUserNotInChat(chatID string) *DomainError {
	return &DomainError{Code: "UserNotInChat", Detail: "caller is not a member of chat " + chatID}
}

func errUserNotMessageAuthor(messageID string) *DomainError {
	return &DomainError{Code: "UserNotMessageAuthor", Detail: "caller did not author message " + messageID}
}

func errWrongChatID(messageID string) *DomainError {
	return &DomainError{Code: "WrongChatId", Detail: "message " + messageID + " does not match the chat"}
}

func errChatNotFound(chatID string) *DomainError {
	return &DomainError{Code: "ChatNotFound", Detail: "chat " + chatID + " does not exist"}
}

func errMessageDeleted(messageID string) *DomainError {
	return &DomainError{Code: "MessageDeleted", Detail: "message " + messageID + " is deleted"}
}

func errMissingField(key string) *DomainError {
	return &DomainError{Code: "MissingField", Detail: "required content key " + key + " is absent"}
}

func errMalformedFrame() *DomainError {
	return &DomainError{Code: "MalformedFrame", Detail: "frame is not valid JSON"}
}

func errInvalidText(detail string) *DomainError {
	return &DomainError{Code: "InvalidMessageText", Detail: detail}
}

func errPersistence() *DomainError {
	return &DomainError{Code: "PersistenceUnavailable"}
}
