package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventSection names one of the two event groupings returned by the backend.
type EventSection string

const (
	SectionCurrent  EventSection = "current"
	SectionPrevious EventSection = "previous"
)

// CategoryFilter selects which event sections are visible.
type CategoryFilter string

const (
	CategoryAll      CategoryFilter = "all"
	CategoryCurrent  CategoryFilter = "current"
	CategoryPrevious CategoryFilter = "previous"
)

// ParseCategoryFilter validates a raw filter value.
func ParseCategoryFilter(raw string) (CategoryFilter, error) {
	switch f := CategoryFilter(raw); f {
	case CategoryAll, CategoryCurrent, CategoryPrevious:
		return f, nil
	default:
		return "", fmt.Errorf("unknown category filter %q", raw)
	}
}

// EventAction is the single interaction an event card offers to the viewer.
type EventAction string

const (
	ActionRegister   EventAction = "register"
	ActionFull       EventAction = "full"
	ActionRegistered EventAction = "registered"
	ActionNone       EventAction = "none"
)

// Event is a scheduled school activity as served by GET /api/events.
type Event struct {
	ID              int64  `json:"id" validate:"min=1"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	Location        string `json:"location"`
	Date            Date   `json:"date"`
	Time            string `json:"time,omitempty"`
	MaxStudents     *int   `json:"max_students,omitempty" validate:"omitempty,min=0"`
	RegisteredCount int    `json:"registered_count" validate:"min=0"`
	IsRegistered    bool   `json:"is_registered"`
}

// HasCapacityLimit reports whether the event caps registrations.
func (e Event) HasCapacityLimit() bool {
	return e.MaxStudents != nil
}

// IsFull reports whether registrations reached capacity. Events without a cap are never full.
func (e Event) IsFull() bool {
	return e.HasCapacityLimit() && e.RegisteredCount >= *e.MaxStudents
}

// EventCollections is the payload of GET /api/events.
type EventCollections struct {
	Current  []Event `json:"current" validate:"dive"`
	Previous []Event `json:"previous" validate:"dive"`
}

// Section returns the events for the named section.
func (c EventCollections) Section(section EventSection) []Event {
	if section == SectionPrevious {
		return c.Previous
	}
	return c.Current
}

// Date is a calendar date. The backend sends either YYYY-MM-DD or an ISO datetime.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{dateLayout, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999", time.RFC3339}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event date: %w", err)
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return nil
		}
	}
	return fmt.Errorf("event date: unsupported format %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}
