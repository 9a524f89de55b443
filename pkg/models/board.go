package models

type Board struct {
	ID        int64 `json:"id"`
	ProjectID int64 `json:"project_id"`
}

// BoardColumn orders are a permutation of 1..n per board; names are unique
// per board. At least one column exists at all times.
type BoardColumn struct {
	ID         int64  `json:"id"`
	BoardID    int64  `json:"board_id"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
	TasksCount int    `json:"tasks_count"`
}
