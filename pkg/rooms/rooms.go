// Package rooms computes which fan-out rooms a user is entitled to and
// applies membership changes to the broker.
package rooms

import (
	"context"
	"errors"
	"fmt"

	"collabd/pkg/broker"
	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/store"
)

// General is the singleton room every connection joins; presence events
// broadcast there.
const General = "general"

// ChatRoom names the fan-out room for a project chat.
func ChatRoom(chatID string) string { return "chats:" + chatID }

// KanbanRoom names the fan-out room for a project's board events.
func KanbanRoom(projectID int64) string { return fmt.Sprintf("kanban:%d", projectID) }

// Entitled returns the rooms a user may join: general, plus the chat and
// kanban rooms of every project they lead or collaborate on.
func Entitled(ctx context.Context, st store.Store, userID int64) ([]string, error) {
	out := []string{General}
	projects, err := st.ListCollaboratorProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		pc, err := st.GetProjectChatByProject(ctx, p.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// project without a chat row yet; kanban room still applies
				out = append(out, KanbanRoom(p.ID))
				continue
			}
			return nil, err
		}
		out = append(out, ChatRoom(pc.ID), KanbanRoom(p.ID))
	}
	return out, nil
}

// Directive is one membership change for a channel. Applying a directive
// twice is a no-op.
type Directive struct {
	Add  bool
	Room string
}

type Router struct {
	broker broker.Broker
}

func NewRouter(b broker.Broker) *Router {
	return &Router{broker: b}
}

// Subscribe joins the channel to every given room.
func (r *Router) Subscribe(channel string, roomNames []string) {
	for _, room := range roomNames {
		r.broker.GroupAdd(room, channel)
	}
	logger.Debug("channel_subscribed", "channel", channel, "rooms", len(roomNames))
}

// Unsubscribe removes the channel from every given room.
func (r *Router) Unsubscribe(channel string, roomNames []string) {
	for _, room := range roomNames {
		r.broker.GroupDiscard(room, channel)
	}
}

// Apply replays membership directives (collaborator added or removed,
// project deleted) in order; broker semantics make it idempotent.
func (r *Router) Apply(channel string, dirs []Directive) {
	for _, d := range dirs {
		if d.Add {
			r.broker.GroupAdd(d.Room, channel)
		} else {
			r.broker.GroupDiscard(d.Room, channel)
		}
	}
}

// ProjectDirectives converts a membership change on a project into the
// add/remove directives for one user's channel.
func ProjectDirectives(pc models.ProjectChat, added bool) []Directive {
	return []Directive{
		{Add: added, Room: ChatRoom(pc.ID)},
		{Add: added, Room: KanbanRoom(pc.ProjectID)},
	}
}
