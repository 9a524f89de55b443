package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"collabd/pkg/kanban"
	"collabd/pkg/models"
	"collabd/pkg/store"
	"collabd/pkg/utils"
)

func pathInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return v, err == nil
}

// boardProject authorizes the caller against the board's project and
// returns the board.
func (a *API) boardProject(w http.ResponseWriter, r *http.Request) (models.Board, bool) {
	boardID, ok := pathInt64(r, "board")
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "invalid board id")
		return models.Board{}, false
	}
	board, err := a.store.GetBoard(r.Context(), boardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "board not found")
		} else {
			utils.JSONError(w, http.StatusInternalServerError, "storage unavailable")
		}
		return models.Board{}, false
	}
	project, err := a.store.GetProject(r.Context(), board.ProjectID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "storage unavailable")
		return models.Board{}, false
	}
	if !project.IsMember(userFrom(r.Context()).ID) {
		utils.JSONError(w, http.StatusForbidden, "not a project member")
		return models.Board{}, false
	}
	return board, true
}

func (a *API) listColumns(w http.ResponseWriter, r *http.Request) {
	board, ok := a.boardProject(w, r)
	if !ok {
		return
	}
	cols, err := a.kanban.Columns(r.Context(), board.ID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"board_id": board.ID, "columns": cols})
}

func (a *API) createColumn(w http.ResponseWriter, r *http.Request) {
	board, ok := a.boardProject(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	col, err := a.kanban.CreateColumn(r.Context(), board.ID, body.Name)
	if err != nil {
		writeKanbanError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, col)
}

func (a *API) renameColumn(w http.ResponseWriter, r *http.Request) {
	board, ok := a.boardProject(w, r)
	if !ok {
		return
	}
	colID, ok := pathInt64(r, "column")
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "invalid column id")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	col, err := a.kanban.RenameColumn(r.Context(), board.ID, colID, body.Name)
	if err != nil {
		writeKanbanError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, col)
}

func (a *API) deleteColumn(w http.ResponseWriter, r *http.Request) {
	board, ok := a.boardProject(w, r)
	if !ok {
		return
	}
	colID, ok := pathInt64(r, "column")
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "invalid column id")
		return
	}
	if err := a.kanban.DeleteColumn(r.Context(), board.ID, colID); err != nil {
		writeKanbanError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reorderColumn(w http.ResponseWriter, r *http.Request) {
	board, ok := a.boardProject(w, r)
	if !ok {
		return
	}
	colID, ok := pathInt64(r, "column")
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "invalid column id")
		return
	}
	var body struct {
		NewOrder int `json:"new_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cols, err := a.kanban.Reorder(r.Context(), board.ID, colID, body.NewOrder)
	if err != nil {
		writeKanbanError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"board_id": board.ID, "columns": cols})
}

func writeKanbanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kanban.ErrColumnNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, kanban.ErrLastColumn), errors.Is(err, kanban.ErrDuplicateName):
		utils.JSONError(w, http.StatusConflict, err.Error())
	default:
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	}
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, chatID := vars["kind"], vars["chat"]
	caller := userFrom(r.Context())

	switch kind {
	case models.KindDirect:
		ua, ub, err := models.ParseDirectChatID(chatID)
		if err != nil || (caller.ID != ua && caller.ID != ub) {
			utils.JSONError(w, http.StatusForbidden, "not a chat participant")
			return
		}
		chatID = models.DirectChatID(ua, ub)
	case models.KindProject:
		pc, err := a.store.GetProjectChat(r.Context(), chatID)
		if err != nil {
			utils.JSONError(w, http.StatusNotFound, "chat not found")
			return
		}
		project, err := a.store.GetProject(r.Context(), pc.ProjectID)
		if err != nil || !project.IsMember(caller.ID) {
			utils.JSONError(w, http.StatusForbidden, "not a chat participant")
			return
		}
	default:
		utils.JSONError(w, http.StatusBadRequest, "unknown chat kind")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	msgs, err := a.store.ListMessages(r.Context(), kind, chatID, r.URL.Query().Get("before"), limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Public())
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"chat_id": chatID, "messages": out})
}

func (a *API) userOnline(w http.ResponseWriter, r *http.Request) {
	target, ok := pathInt64(r, "user")
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	online, err := a.presence.IsOnline(target, userFrom(r.Context()).ID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user_id": target, "online": online})
}
