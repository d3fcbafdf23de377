package models

import "fmt"

// Student is a registered user as served by GET /api/students.
type Student struct {
	ID         int64  `json:"id" validate:"min=1"`
	Name       string `json:"name"`
	Username   string `json:"username" validate:"required"`
	EventCount int    `json:"event_count" validate:"min=0"`
}

// SortKey orders the student list.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByUsername SortKey = "username"
	SortByEvents   SortKey = "events"
)

// ParseSortKey validates a raw sort key.
func ParseSortKey(raw string) (SortKey, error) {
	switch k := SortKey(raw); k {
	case SortByName, SortByUsername, SortByEvents:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", raw)
	}
}
