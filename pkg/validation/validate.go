package validation

import (
	"fmt"
	"strings"
)

// MaxMessageLen caps message text length after trimming.
const MaxMessageLen = 8192

// MessageText trims the provided text and validates it: non-empty and at
// most MaxMessageLen characters. Returns the trimmed text.
func MessageText(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("message text is empty")
	}
	if len([]rune(t)) > MaxMessageLen {
		return "", fmt.Errorf("message text exceeds %d characters", MaxMessageLen)
	}
	return t, nil
}

// ColumnName validates a kanban column name.
func ColumnName(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("column name is empty")
	}
	if len([]rune(t)) > 128 {
		return "", fmt.Errorf("column name exceeds 128 characters")
	}
	return t, nil
}
