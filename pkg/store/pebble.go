package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"collabd/pkg/logger"
	"collabd/pkg/models"
)

// Pebble implements Store over a single pebble database.
//
// Key scheme:
//
//	user:<id>
//	project:<id>
//	chat:direct:<chat_id>
//	chat:project:<chat_id>
//	chat:projidx:<project_id>      -> project chat id
//	msgid:<message_id>             -> message row
//	msg:<kind>:<chat_id>:<message_id> -> message id (chat-ordered index)
//	board:<id>
//	column:<board_id>:<column_id>
//	seq:<name>                     -> counter
//
// Message ids embed a padded nanosecond timestamp plus a process-local
// sequence, so the chat index iterates in creation order.
type Pebble struct {
	db *pebble.DB

	seqMu   sync.Mutex
	msgMu   sync.Mutex
	msgRows map[string]*sync.Mutex
	boardMu sync.Mutex
	boards  map[int64]*sync.Mutex
}

var msgSeq uint64

// OpenPebble opens (or creates) the durable store at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("store_opened", "path", path)
	return &Pebble{
		db:      db,
		msgRows: make(map[string]*sync.Mutex),
		boards:  make(map[int64]*sync.Mutex),
	}, nil
}

func (s *Pebble) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Pebble) get(key string, v any) error {
	b, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	uerr := json.Unmarshal(b, v)
	_ = closer.Close()
	if uerr != nil {
		return fmt.Errorf("corrupt row %q: %w", key, uerr)
	}
	return nil
}

func (s *Pebble) set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal row %q: %w", key, err)
	}
	return s.db.Set([]byte(key), b, pebble.Sync)
}

func userKey(id int64) string    { return fmt.Sprintf("user:%d", id) }
func projectKey(id int64) string { return fmt.Sprintf("project:%d", id) }
func directKey(id string) string { return "chat:direct:" + id }
func projChatKey(id string) string {
	return "chat:project:" + id
}
func projChatIdxKey(projectID int64) string {
	return fmt.Sprintf("chat:projidx:%d", projectID)
}
func msgKey(id string) string { return "msgid:" + id }
func msgIdxKey(kind, chatID, msgID string) string {
	return fmt.Sprintf("msg:%s:%s:%s", kind, chatID, msgID)
}
func boardKey(id int64) string { return fmt.Sprintf("board:%d", id) }
func columnKey(boardID, colID int64) string {
	return fmt.Sprintf("column:%d:%020d", boardID, colID)
}

func (s *Pebble) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.get(userKey(id), &u)
	return u, err
}

func (s *Pebble) PutUser(ctx context.Context, u models.User) error {
	return s.set(userKey(u.ID), u)
}

func (s *Pebble) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.get(projectKey(id), &p)
	return p, err
}

func (s *Pebble) PutProject(ctx context.Context, p models.Project) error {
	return s.set(projectKey(p.ID), p)
}

func (s *Pebble) ListCollaboratorProjects(ctx context.Context, userID int64) ([]models.Project, error) {
	iter, err := s.db.NewIter(prefixIter("project:"))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Project
	for iter.First(); iter.Valid(); iter.Next() {
		var p models.Project
		if json.Unmarshal(iter.Value(), &p) != nil {
			continue
		}
		if p.IsMember(userID) {
			out = append(out, p)
		}
	}
	return out, iter.Error()
}

func (s *Pebble) GetDirectChat(ctx context.Context, id string) (models.DirectChat, error) {
	var c models.DirectChat
	err := s.get(directKey(id), &c)
	return c, err
}

func (s *Pebble) CreateDirectChat(ctx context.Context, a, b int64) (models.DirectChat, error) {
	id := models.DirectChatID(a, b)
	if existing, err := s.GetDirectChat(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return models.DirectChat{}, err
	}
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	c := models.DirectChat{ID: id, UserA: lo, UserB: hi}
	if err := s.set(directKey(id), c); err != nil {
		return models.DirectChat{}, err
	}
	logger.Info("direct_chat_created", "chat", id)
	return c, nil
}

func (s *Pebble) GetProjectChat(ctx context.Context, id string) (models.ProjectChat, error) {
	var c models.ProjectChat
	err := s.get(projChatKey(id), &c)
	return c, err
}

func (s *Pebble) GetProjectChatByProject(ctx context.Context, projectID int64) (models.ProjectChat, error) {
	var id string
	if err := s.get(projChatIdxKey(projectID), &id); err != nil {
		return models.ProjectChat{}, err
	}
	return s.GetProjectChat(ctx, id)
}

func (s *Pebble) PutProjectChat(ctx context.Context, pc models.ProjectChat) error {
	if err := s.set(projChatKey(pc.ID), pc); err != nil {
		return err
	}
	return s.set(projChatIdxKey(pc.ProjectID), pc.ID)
}

func (s *Pebble) CreateMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UTC().UnixNano()
	}
	if m.ID == "" {
		n := atomic.AddUint64(&msgSeq, 1)
		m.ID = fmt.Sprintf("%020d-%06d", m.CreatedAt, n)
	}
	if err := s.set(msgKey(m.ID), m); err != nil {
		logger.Error("save_message_failed", "chat", m.ChatID, "error", err)
		return models.Message{}, err
	}
	if err := s.set(msgIdxKey(m.ChatKind, m.ChatID, m.ID), m.ID); err != nil {
		return models.Message{}, err
	}
	logger.Info("message_saved", "chat", m.ChatID, "kind", m.ChatKind, "msg_id", m.ID)
	return m, nil
}

func (s *Pebble) GetMessage(ctx context.Context, id string) (models.Message, error) {
	var m models.Message
	err := s.get(msgKey(id), &m)
	return m, err
}

func (s *Pebble) UpdateMessage(ctx context.Context, id string, patch MessagePatch) (models.Message, error) {
	unlock := s.lockMessage(id)
	defer unlock()

	var m models.Message
	if err := s.get(msgKey(id), &m); err != nil {
		return models.Message{}, err
	}
	if patch.Text != nil {
		m.Text = *patch.Text
	}
	if patch.IsEdited != nil {
		m.IsEdited = *patch.IsEdited
	}
	if patch.EditedAt != nil {
		m.EditedAt = *patch.EditedAt
	}
	if patch.IsDeleted != nil {
		m.IsDeleted = *patch.IsDeleted
	}
	if patch.IsRead != nil {
		m.IsRead = *patch.IsRead
	}
	if err := s.set(msgKey(id), m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

func (s *Pebble) ListMessages(ctx context.Context, chatKind, chatID, beforeID string, limit int) ([]models.Message, error) {
	prefix := fmt.Sprintf("msg:%s:%s:", chatKind, chatID)
	opts := prefixIter(prefix)
	if beforeID != "" {
		opts.UpperBound = []byte(prefix + beforeID)
	}
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		var id string
		if json.Unmarshal(iter.Value(), &id) == nil {
			ids = append(ids, id)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMessage(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Pebble) GetBoard(ctx context.Context, id int64) (models.Board, error) {
	var b models.Board
	err := s.get(boardKey(id), &b)
	return b, err
}

func (s *Pebble) PutBoard(ctx context.Context, b models.Board) error {
	return s.set(boardKey(b.ID), b)
}

func (s *Pebble) ListBoardColumns(ctx context.Context, boardID int64) ([]models.BoardColumn, error) {
	iter, err := s.db.NewIter(prefixIter(fmt.Sprintf("column:%d:", boardID)))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.BoardColumn
	for iter.First(); iter.Valid(); iter.Next() {
		var c models.BoardColumn
		if json.Unmarshal(iter.Value(), &c) != nil {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

func (s *Pebble) PutBoardColumn(ctx context.Context, col models.BoardColumn) error {
	return s.set(columnKey(col.BoardID, col.ID), col)
}

func (s *Pebble) DeleteBoardColumn(ctx context.Context, boardID, colID int64) error {
	return s.db.Delete([]byte(columnKey(boardID, colID)), pebble.Sync)
}

func (s *Pebble) LockBoard(boardID int64) func() {
	s.boardMu.Lock()
	mu, ok := s.boards[boardID]
	if !ok {
		mu = &sync.Mutex{}
		s.boards[boardID] = mu
	}
	s.boardMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Pebble) lockMessage(id string) func() {
	s.msgMu.Lock()
	mu, ok := s.msgRows[id]
	if !ok {
		mu = &sync.Mutex{}
		s.msgRows[id] = mu
	}
	s.msgMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Pebble) NextID(ctx context.Context, seq string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	key := "seq:" + seq
	var cur int64
	b, closer, err := s.db.Get([]byte(key))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		cur = 0
	case err != nil:
		return 0, err
	default:
		cur, _ = strconv.ParseInt(string(b), 10, 64)
		_ = closer.Close()
	}
	cur++
	if err := s.db.Set([]byte(key), []byte(strconv.FormatInt(cur, 10)), pebble.Sync); err != nil {
		return 0, err
	}
	return cur, nil
}

func prefixIter(prefix string) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	}
}

func prefixUpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}
