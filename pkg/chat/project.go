package chat

import (
	"context"
	"errors"

	"collabd/pkg/models"
	"collabd/pkg/rooms"
	"collabd/pkg/store"
	"collabd/pkg/validation"
)

// projectStrategy handles group chats owned by projects. Authorization is
// membership-based (leader or collaborator) and events fan out to the
// chat's room, reaching every currently-subscribed member's channel.
type projectStrategy struct {
	d *Dispatcher
}

// authorize loads the chat and its project and checks the caller's
// membership.
func (s *projectStrategy) authorize(ctx context.Context, sender Sender, chatID string) error {
	pc, err := s.d.store.GetProjectChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errChatNotFound(chatID)
		}
		return errPersistence()
	}
	project, err := s.d.store.GetProject(ctx, pc.ProjectID)
	if err != nil {
		return errPersistence()
	}
	if !project.IsMember(sender.UserID) {
		return errUserNotInChat(chatID)
	}
	return nil
}

func (s *projectStrategy) emit(chatID string, f models.Frame) {
	s.d.broker.GroupSend(rooms.ChatRoom(chatID), f)
}

func (s *projectStrategy) newMessage(ctx context.Context, sender Sender, chatID, text, replyTo string) error {
	if err := s.authorize(ctx, sender, chatID); err != nil {
		return err
	}
	trimmed, verr := validation.MessageText(text)
	if verr != nil {
		return errInvalidText(verr.Error())
	}
	msg := models.Message{
		ChatID:    chatID,
		ChatKind:  models.KindProject,
		AuthorID:  sender.UserID,
		Text:      trimmed,
		ReplyToID: s.d.resolveReplyTo(ctx, models.KindProject, chatID, replyTo),
	}
	saved, err := s.d.store.CreateMessage(ctx, msg)
	if err != nil {
		return errPersistence()
	}
	s.emit(chatID, models.Frame{
		Type:    models.EventNewMessage,
		Content: messagePayload{ChatID: chatID, Message: saved},
	})
	return nil
}

func (s *projectStrategy) load(ctx context.Context, chatID, messageID string) (models.Message, error) {
	m, err := s.d.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Message{}, errWrongChatID(messageID)
		}
		return models.Message{}, errPersistence()
	}
	if m.ChatKind != models.KindProject || m.ChatID != chatID {
		return models.Message{}, errWrongChatID(messageID)
	}
	return m, nil
}

func (s *projectStrategy) editMessage(ctx context.Context, sender Sender, chatID, messageID, text string) error {
	if err := s.authorize(ctx, sender, chatID); err != nil {
		return err
	}
	m, err := s.load(ctx, chatID, messageID)
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
	s.emit(chatID, models.Frame{
		Type:    models.EventEditMessage,
		Content: messagePayload{ChatID: chatID, Message: updated},
	})
	return nil
}

func (s *projectStrategy) deleteMessage(ctx context.Context, sender Sender, chatID, messageID string) error {
	if err := s.authorize(ctx, sender, chatID); err != nil {
		return err
	}
	m, err := s.load(ctx, chatID, messageID)
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
	s.emit(chatID, models.Frame{
		Type:    models.EventDeleteMessage,
		Content: messageRefPayload{ChatID: chatID, MessageID: messageID},
	})
	return nil
}

func (s *projectStrategy) readMessage(ctx context.Context, sender Sender, chatID, messageID string) error {
	if err := s.authorize(ctx, sender, chatID); err != nil {
		return err
	}
	m, err := s.load(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if m.AuthorID == sender.UserID {
		return errWrongChatID(messageID)
	}
	read := true
	if _, err := s.d.store.UpdateMessage(ctx, messageID, store.MessagePatch{IsRead: &read}); err != nil {
		return errPersistence()
	}
	s.emit(chatID, models.Frame{
		Type:    models.EventReadMessage,
		Content: messageRefPayload{ChatID: chatID, MessageID: messageID},
	})
	return nil
}

func (s *projectStrategy) typing(ctx context.Context, sender Sender, chatID string) error {
	if err := s.authorize(ctx, sender, chatID); err != nil {
		return err
	}
	s.emit(chatID, models.Frame{
		Type: models.EventTyping,
		Content: typingPayload{
			ChatID:  chatID,
			UserID:  sender.UserID,
			EndTime: s.d.typingEndTime(),
		},
	})
	return nil
}
