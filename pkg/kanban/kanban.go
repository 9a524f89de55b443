// Package kanban applies board column mutations and broadcasts the result
// into the project's kanban room. The reorder transaction uses a two-phase
// renumber: temporary orders first, final 1..n orders second, so a unique
// (board, order) constraint holds throughout on constraint-enforcing
// backends.
package kanban

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"collabd/pkg/broker"
	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/rooms"
	"collabd/pkg/store"
	"collabd/pkg/validation"
)

var (
	ErrLastColumn    = errors.New("a board must keep at least one column")
	ErrDuplicateName = errors.New("column name already used on this board")
	ErrColumnNotFound = errors.New("column not found")
)

// tempOrderOffset lifts phase-A orders clear of the live 1..n range.
const tempOrderOffset = 1000

type Service struct {
	store  store.Store
	broker broker.Broker
}

func New(st store.Store, b broker.Broker) *Service {
	return &Service{store: st, broker: b}
}

type ColumnView struct {
	ID    int64  `json:"id"`
	Order int    `json:"order"`
	Name  string `json:"name"`
}

type columnEvent struct {
	Action    string       `json:"action"`
	BoardID   int64        `json:"board_id"`
	ProjectID int64        `json:"project_id"`
	Columns   []ColumnView `json:"columns"`
}

// sortColumns orders by (order, id), the load order every mutation works on.
func sortColumns(cols []models.BoardColumn) {
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Order != cols[j].Order {
			return cols[i].Order < cols[j].Order
		}
		return cols[i].ID < cols[j].ID
	})
}

func views(cols []models.BoardColumn) []ColumnView {
	out := make([]ColumnView, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnView{ID: c.ID, Order: c.Order, Name: c.Name})
	}
	return out
}

func (s *Service) emit(ctx context.Context, action string, boardID int64, cols []models.BoardColumn) error {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	s.broker.GroupSend(rooms.KanbanRoom(board.ProjectID), models.Frame{
		Type: models.EventKanban,
		Content: columnEvent{
			Action:    action,
			BoardID:   boardID,
			ProjectID: board.ProjectID,
			Columns:   views(cols),
		},
	})
	return nil
}

// CreateColumn appends a column at order n+1.
func (s *Service) CreateColumn(ctx context.Context, boardID int64, name string) (models.BoardColumn, error) {
	name, err := validation.ColumnName(name)
	if err != nil {
		return models.BoardColumn{}, err
	}
	unlock := s.store.LockBoard(boardID)
	defer unlock()

	cols, err := s.store.ListBoardColumns(ctx, boardID)
	if err != nil {
		return models.BoardColumn{}, err
	}
	for _, c := range cols {
		if c.Name == name {
			return models.BoardColumn{}, ErrDuplicateName
		}
	}
	id, err := s.store.NextID(ctx, "board_column")
	if err != nil {
		return models.BoardColumn{}, err
	}
	col := models.BoardColumn{ID: id, BoardID: boardID, Name: name, Order: len(cols) + 1}
	if err := s.store.PutBoardColumn(ctx, col); err != nil {
		return models.BoardColumn{}, err
	}
	cols = append(cols, col)
	sortColumns(cols)
	if err := s.emit(ctx, "column.created", boardID, cols); err != nil {
		return models.BoardColumn{}, err
	}
	logger.Info("column_created", "board", boardID, "column", id, "name", name)
	return col, nil
}

// RenameColumn changes a column's name, keeping per-board uniqueness.
func (s *Service) RenameColumn(ctx context.Context, boardID, colID int64, name string) (models.BoardColumn, error) {
	name, err := validation.ColumnName(name)
	if err != nil {
		return models.BoardColumn{}, err
	}
	unlock := s.store.LockBoard(boardID)
	defer unlock()

	cols, err := s.store.ListBoardColumns(ctx, boardID)
	if err != nil {
		return models.BoardColumn{}, err
	}
	var target *models.BoardColumn
	for i := range cols {
		if cols[i].ID == colID {
			target = &cols[i]
		} else if cols[i].Name == name {
			return models.BoardColumn{}, ErrDuplicateName
		}
	}
	if target == nil {
		return models.BoardColumn{}, ErrColumnNotFound
	}
	target.Name = name
	if err := s.store.PutBoardColumn(ctx, *target); err != nil {
		return models.BoardColumn{}, err
	}
	sortColumns(cols)
	if err := s.emit(ctx, "column.renamed", boardID, cols); err != nil {
		return models.BoardColumn{}, err
	}
	return *target, nil
}

// DeleteColumn removes a column and renumbers the rest 1..n. The last
// column of a board cannot be deleted.
func (s *Service) DeleteColumn(ctx context.Context, boardID, colID int64) error {
	unlock := s.store.LockBoard(boardID)
	defer unlock()

	cols, err := s.store.ListBoardColumns(ctx, boardID)
	if err != nil {
		return err
	}
	if len(cols) <= 1 {
		return ErrLastColumn
	}
	sortColumns(cols)
	idx := -1
	for i, c := range cols {
		if c.ID == colID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrColumnNotFound
	}
	if err := s.store.DeleteBoardColumn(ctx, boardID, colID); err != nil {
		return err
	}
	cols = append(cols[:idx], cols[idx+1:]...)
	if err := s.renumber(ctx, cols); err != nil {
		return err
	}
	if err := s.emit(ctx, "column.deleted", boardID, cols); err != nil {
		return err
	}
	logger.Info("column_deleted", "board", boardID, "column", colID)
	return nil
}

// Reorder moves a column to the 1-based newOrder, clamped to [1, n], and
// returns the final column list. A move to the current index is a no-op
// apart from the broadcast.
func (s *Service) Reorder(ctx context.Context, boardID, colID int64, newOrder int) ([]models.BoardColumn, error) {
	unlock := s.store.LockBoard(boardID)
	defer unlock()

	cols, err := s.store.ListBoardColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrColumnNotFound
	}
	sortColumns(cols)

	idx := -1
	for i, c := range cols {
		if c.ID == colID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrColumnNotFound
	}

	if newOrder < 1 {
		newOrder = 1
	}
	if newOrder > len(cols) {
		newOrder = len(cols)
	}

	moved := cols[idx]
	rest := append(append([]models.BoardColumn{}, cols[:idx]...), cols[idx+1:]...)
	final := make([]models.BoardColumn, 0, len(cols))
	final = append(final, rest[:newOrder-1]...)
	final = append(final, moved)
	final = append(final, rest[newOrder-1:]...)

	// phase A: park every column on a temporary order
	for i := range final {
		final[i].Order = i + 1 + tempOrderOffset
		if err := s.store.PutBoardColumn(ctx, final[i]); err != nil {
			return nil, err
		}
	}
	// phase B: assign the final 1..n permutation
	if err := s.renumber(ctx, final); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, "column.reordered", boardID, final); err != nil {
		return nil, err
	}
	logger.Info("columns_reordered", "board", boardID, "column", colID, "order", newOrder)
	return final, nil
}

// Columns returns the board's columns in display order.
func (s *Service) Columns(ctx context.Context, boardID int64) ([]models.BoardColumn, error) {
	cols, err := s.store.ListBoardColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	sortColumns(cols)
	return cols, nil
}

func (s *Service) renumber(ctx context.Context, cols []models.BoardColumn) error {
	for i := range cols {
		cols[i].Order = i + 1
		if err := s.store.PutBoardColumn(ctx, cols[i]); err != nil {
			return fmt.Errorf("renumber column %d: %w", cols[i].ID, err)
		}
	}
	return nil
}
