// Package chat is the state machine behind the chat socket: it parses
// inbound event envelopes, authorizes them per chat kind, persists message
// rows and emits outbound frames through the broker. One dispatcher call
// runs per inbound frame on the connection's task, so a producer's events
// are serialized.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"collabd/pkg/broker"
	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/presence"
	"collabd/pkg/rooms"
	"collabd/pkg/store"
)

// Sender identifies the authenticated connection an event arrived on.
type Sender struct {
	UserID  int64
	Channel string
}

type Dispatcher struct {
	store    store.Store
	presence *presence.Registry
	broker   broker.Broker

	// now is swappable in tests.
	now func() time.Time
}

func NewDispatcher(st store.Store, pr *presence.Registry, b broker.Broker) *Dispatcher {
	return &Dispatcher{store: st, presence: pr, broker: b, now: time.Now}
}

// strategy is the per-chat-kind behavior behind the shared dispatch rule.
type strategy interface {
	newMessage(ctx context.Context, sender Sender, chatID, text, replyTo string) error
	editMessage(ctx context.Context, sender Sender, chatID, messageID, text string) error
	deleteMessage(ctx context.Context, sender Sender, chatID, messageID string) error
	readMessage(ctx context.Context, sender Sender, chatID, messageID string) error
	typing(ctx context.Context, sender Sender, chatID string) error
}

// eventContent is the common inbound content shape; pointers distinguish
// absent keys from zero values.
type eventContent struct {
	ChatType  *string `json:"chat_type"`
	ChatID    *string `json:"chat_id"`
	Text      *string `json:"text"`
	MessageID *string `json:"message_id"`
	ReplyTo   *string `json:"reply_to"`
}

// Dispatch processes one inbound frame. A returned *DomainError is
// recoverable (error frame); ErrUnknownEventType closes the connection
// with 4400.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Sender, raw []byte) error {
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return errMalformedFrame()
	}

	switch ev.Type {
	case models.EventSetOnline:
		if err := d.presence.SetOnline(sender.UserID); err != nil {
			logger.Error("set_online_failed", "user", sender.UserID, "error", err)
			return errPersistence()
		}
		d.broker.GroupSend(rooms.General, models.Frame{
			Type:    models.EventSetOnline,
			Content: presencePayload{UserID: sender.UserID},
		})
		return nil
	case models.EventSetOffline:
		if err := d.presence.SetOffline(sender.UserID); err != nil {
			logger.Error("set_offline_failed", "user", sender.UserID, "error", err)
			return errPersistence()
		}
		d.broker.GroupSend(rooms.General, models.Frame{
			Type:    models.EventSetOffline,
			Content: presencePayload{UserID: sender.UserID},
		})
		return nil
	case models.EventNewMessage, models.EventEditMessage, models.EventDeleteMessage,
		models.EventReadMessage, models.EventTyping:
		return d.dispatchChat(ctx, sender, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
}

func (d *Dispatcher) dispatchChat(ctx context.Context, sender Sender, ev models.Event) error {
	var c eventContent
	if len(ev.Content) > 0 {
		if err := json.Unmarshal(ev.Content, &c); err != nil {
			return errMalformedFrame()
		}
	}
	if c.ChatType == nil {
		return errMissingField("chat_type")
	}
	if c.ChatID == nil {
		return errMissingField("chat_id")
	}

	var strat strategy
	switch *c.ChatType {
	case models.KindDirect:
		strat = &directStrategy{d: d}
	case models.KindProject:
		strat = &projectStrategy{d: d}
	default:
		return &DomainError{Code: "UnknownChatType", Detail: "chat_type " + *c.ChatType + " is not supported"}
	}

	chatID := *c.ChatID
	switch ev.Type {
	case models.EventNewMessage:
		if c.Text == nil {
			return errMissingField("text")
		}
		replyTo := ""
		if c.ReplyTo != nil {
			replyTo = *c.ReplyTo
		}
		return strat.newMessage(ctx, sender, chatID, *c.Text, replyTo)
	case models.EventEditMessage:
		if c.MessageID == nil {
			return errMissingField("message_id")
		}
		if c.Text == nil {
			return errMissingField("text")
		}
		return strat.editMessage(ctx, sender, chatID, *c.MessageID, *c.Text)
	case models.EventDeleteMessage:
		if c.MessageID == nil {
			return errMissingField("message_id")
		}
		return strat.deleteMessage(ctx, sender, chatID, *c.MessageID)
	case models.EventReadMessage:
		if c.MessageID == nil {
			return errMissingField("message_id")
		}
		return strat.readMessage(ctx, sender, chatID, *c.MessageID)
	case models.EventTyping:
		return strat.typing(ctx, sender, chatID)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
}

// typingWindow is how long a TYPING indicator stays live client-side.
const typingWindow = 5 * time.Second

func (d *Dispatcher) typingEndTime() string {
	return d.now().Add(typingWindow).UTC().Format(time.RFC3339)
}

// resolveReplyTo returns replyTo if it references an existing message of
// the same chat, and "" otherwise. A dangling or cross-chat reference is
// dropped rather than failing the send.
func (d *Dispatcher) resolveReplyTo(ctx context.Context, chatKind, chatID, replyTo string) string {
	if replyTo == "" {
		return ""
	}
	m, err := d.store.GetMessage(ctx, replyTo)
	if err != nil || m.ChatKind != chatKind || m.ChatID != chatID {
		return ""
	}
	return replyTo
}
