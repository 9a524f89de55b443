package chat

import (
	"context"
	"errors"

	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/store"
	"collabd/pkg/validation"
)

// directStrategy handles 1-to-1 chats. The caller must be one of the two
// ids in the chat id; the canonical "<min>_<max>" form always wins over the
// supplied one. Events are sent to both parties' current channels; a
// self-chat collapses to a single send.
type directStrategy struct {
	d *Dispatcher
}

// resolve validates the caller against the supplied chat id and returns
// the canonical id plus the counterpart user id.
func (s *directStrategy) resolve(sender Sender, chatID string) (string, int64, error) {
	a, b, err := models.ParseDirectChatID(chatID)
	if err != nil {
		return "", 0, errNonMatchingDirectChatID(chatID)
	}
	var other int64
	switch sender.UserID {
	case a:
		other = b
	case b:
		other = a
	default:
		return "", 0, errNonMatchingDirectChatID(chatID)
	}
	return models.DirectChatID(sender.UserID, other), other, nil
}

// emitBoth sends the frame to the caller's channel and, when bound, to the
// other user's channel. For a self-chat both parties are the caller.
func (s *directStrategy) emitBoth(sender Sender, other int64, f models.Frame) {
	s.d.broker.Send(sender.Channel, f)
	if other == sender.UserID {
		return
	}
	ch, ok, err := s.d.presence.Lookup(other)
	if err != nil {
		logger.Warn("presence_lookup_failed", "user", other, "error", err)
		return
	}
	if ok {
		s.d.broker.Send(ch, f)
	}
}

func (s *directStrategy) newMessage(ctx context.Context, sender Sender, chatID, text, replyTo string) error {
	canonical, other, err := s.resolve(sender, chatID)
	if err != nil {
		return err
	}
	trimmed, verr := validation.MessageText(text)
	if verr != nil {
		return errInvalidText(verr.Error())
	}

	// the chat row is created lazily on first send
	if _, err := s.d.store.GetDirectChat(ctx, canonical); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return errPersistence()
		}
		if _, err := s.d.store.CreateDirectChat(ctx, sender.UserID, other); err != nil {
			return errPersistence()
		}
	}

	msg := models.Message{
		ChatID:    canonical,
		ChatKind:  models.KindDirect,
		AuthorID:  sender.UserID,
		Text:      trimmed,
		ReplyToID: s.d.resolveReplyTo(ctx, models.KindDirect, canonical, replyTo),
	}
	saved, err := s.d.store.CreateMessage(ctx, msg)
	if err != nil {
		return errPersistence()
	}
	s.emitBoth(sender, other, models.Frame{
		Type:    models.EventNewMessage,
		Content: messagePayload{ChatID: canonical, Message: saved},
	})
	return nil
}

// load fetches a message and checks it belongs to the canonical chat.
func (s *directStrategy) load(ctx context.Context, canonical, messageID string) (models.Message, error) {
	m, err := s.d.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Message{}, errWrongChatID(messageID)
		}
		return models.Message{}, errPersistence()
	}
	if m.ChatKind != models.KindDirect || m.ChatID != canonical {
		return models.Message{}, errWrongChatID(messageID)
	}
	return m, nil
}

func (s *directStrategy) editMessage(ctx context.Context, sender Sender, chatID, messageID, text string) error {
	canonical, other, err := s.resolve(sender, chatID)
	if err != nil {
		return err
	}
	m, err := s.load(ctx, canonical, messageID)
	if err != nil {
		return err
	}
	if m.AuthorID != sender.UserID {
		return errUserNotMessageAuthor(messageID)
	}
	if m.IsDeleted {
		return errMessageDeleted(messageID)
	}
	trimmed, verr := validation.MessageText(text)
	if verr != nil {
		return errInvalidText(verr.Error())
	}
	edited := true
	editedAt := s.d.now().UTC().UnixNano()
	updated, err := s.d.store.UpdateMessage(ctx, messageID, store.MessagePatch{
		Text:     &trimmed,
		IsEdited: &edited,
		EditedAt: &editedAt,
	})
	if err != nil {
		return errPersistence()
	}
	s.emitBoth(sender, other, models.Frame{
		Type:    models.EventEditMessage,
		Content: messagePayload{ChatID: canonical, Message: updated},
	})
	return nil
}

func (s *directStrategy) deleteMessage(ctx context.Context, sender Sender, chatID, messageID string) error {
	canonical, other, err := s.resolve(sender, chatID)
	if err != nil {
		return err
	}
	m, err := s.load(ctx, canonical, messageID)
	if err != nil {
		return err
	}
	if m.AuthorID != sender.UserID {
		return errUserNotMessageAuthor(messageID)
	}
	if m.IsDeleted {
		return errMessageDeleted(messageID)
	}
	deleted := true
	if _, err := s.d.store.UpdateMessage(ctx, messageID, store.MessagePatch{IsDeleted: &deleted}); err != nil {
		return errPersistence()
	}
	s.emitBoth(sender, other, models.Frame{
		Type:    models.EventDeleteMessage,
		Content: messageRefPayload{ChatID: canonical, MessageID: messageID},
	})
	return nil
}

func (s *directStrategy) readMessage(ctx context.Context, sender Sender, chatID, messageID string) error {
	canonical, other, err := s.resolve(sender, chatID)
	if err != nil {
		return err
	}
	m, err := s.load(ctx, canonical, messageID)
	if err != nil {
		return err
	}
	// only the counterpart's messages can be marked read; in a self-chat
	// every message is the caller's own, so reads always fail
	if m.AuthorID != other || m.AuthorID == sender.UserID {
		return errWrongChatID(messageID)
	}
	read := true
	if _, err := s.d.store.UpdateMessage(ctx, messageID, store.MessagePatch{IsRead: &read}); err != nil {
		return errPersistence()
	}
	s.emitBoth(sender, other, models.Frame{
		Type:    models.EventReadMessage,
		Content: messageRefPayload{ChatID: canonical, MessageID: messageID},
	})
	return nil
}

func (s *directStrategy) typing(ctx context.Context, sender Sender, chatID string) error {
	canonical, other, err := s.resolve(sender, chatID)
	if err != nil {
		return err
	}
	s.emitBoth(sender, other, models.Frame{
		Type: models.EventTyping,
		Content: typingPayload{
			ChatID:  canonical,
			UserID:  sender.UserID,
			EndTime: s.d.typingEndTime(),
		},
	})
	return nil
}
