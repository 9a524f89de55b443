// Package store is the narrow persistence port for the realtime core:
// users, projects, chats, messages and board columns. The pebble
// implementation is the only one shipped; the interface keeps the chat and
// kanban services storage-agnostic.
package store

import (
	"context"
	"errors"

	"collabd/pkg/models"
)

// ErrNotFound is returned for any missing row.
var ErrNotFound = errors.New("not found")

// MessagePatch is a partial update applied under the message row lock.
// Nil fields are left untouched.
type MessagePatch struct {
	Text      *string
	IsEdited  *bool
	EditedAt  *int64
	IsDeleted *bool
	IsRead    *bool
}

type Store interface {
	// Users and projects are created by the surrounding platform; the core
	// reads them and seeds them in tests and dev tooling.
	GetUser(ctx context.Context, id int64) (models.User, error)
	PutUser(ctx context.Context, u models.User) error
	GetProject(ctx context.Context, id int64) (models.Project, error)
	PutProject(ctx context.Context, p models.Project) error
	// ListCollaboratorProjects returns every project the user leads or
	// collaborates on.
	ListCollaboratorProjects(ctx context.Context, userID int64) ([]models.Project, error)

	GetDirectChat(ctx context.Context, id string) (models.DirectChat, error)
	// CreateDirectChat creates (or returns) the canonical chat row for the
	// unordered pair (a, b).
	CreateDirectChat(ctx context.Context, a, b int64) (models.DirectChat, error)
	GetProjectChat(ctx context.Context, id string) (models.ProjectChat, error)
	GetProjectChatByProject(ctx context.Context, projectID int64) (models.ProjectChat, error)
	PutProjectChat(ctx context.Context, pc models.ProjectChat) error

	// CreateMessage assigns the id and created timestamp when unset and
	// persists the row plus its chat-ordered index entry.
	CreateMessage(ctx context.Context, m models.Message) (models.Message, error)
	GetMessage(ctx context.Context, id string) (models.Message, error)
	UpdateMessage(ctx context.Context, id string, patch MessagePatch) (models.Message, error)
	// ListMessages returns up to limit messages of a chat ordered oldest
	// first; a non-empty beforeID restricts to strictly older messages.
	ListMessages(ctx context.Context, chatKind, chatID, beforeID string, limit int) ([]models.Message, error)

	GetBoard(ctx context.Context, id int64) (models.Board, error)
	PutBoard(ctx context.Context, b models.Board) error
	ListBoardColumns(ctx context.Context, boardID int64) ([]models.BoardColumn, error)
	PutBoardColumn(ctx context.Context, col models.BoardColumn) error
	DeleteBoardColumn(ctx context.Context, boardID, colID int64) error
	// LockBoard takes the pessimistic per-board lock used by the two-phase
	// column renumber; the returned func releases it.
	LockBoard(boardID int64) func()

	// NextID returns a monotonically increasing id for the named sequence.
	NextID(ctx context.Context, seq string) (int64, error)

	Close() error
}
