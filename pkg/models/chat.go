package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Chat kinds carried in message rows and event content.
const (
	KindDirect  = "direct"
	KindProject = "project"
)

// DirectChat is a durable 1-to-1 conversation. Its id is the canonical
// "<min>_<max>" pair form; a self-chat has UserA == UserB.
type DirectChat struct {
	ID    string `json:"id"`
	UserA int64  `json:"user_a"`
	UserB int64  `json:"user_b"`
}

// ProjectChat is the group conversation owned 1:1 by a project. Its
// participant set is the project leader plus collaborators.
type ProjectChat struct {
	ID        string `json:"id"`
	ProjectID int64  `json:"project_id"`
}

// DirectChatID returns the canonical chat id for an unordered user pair.
// Both orderings of (a, b) map to the same id.
func DirectChatID(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ParseDirectChatID splits an "a_b" chat id into its two user ids.
func ParseDirectChatID(id string) (int64, int64, error) {
	parts := strings.SplitN(id, "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed direct chat id %q", id)
	}
	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed direct chat id %q", id)
	}
	b, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed direct chat id %q", id)
	}
	return a, b, nil
}
