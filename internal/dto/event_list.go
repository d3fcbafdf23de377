package dto

import "github.com/noah-isme/school-events-gateway/internal/models"

// EventListView is the presentation snapshot of the event list.
type EventListView struct {
	Loading    bool                  `json:"loading"`
	SearchTerm string                `json:"search_term"`
	Filter     models.CategoryFilter `json:"filter"`
	Counts     EventCounts           `json:"counts"`
	Sections   []EventSectionView    `json:"sections"`
}

// EventCounts carries per-section totals for filter badges and section titles.
type EventCounts struct {
	Current          int `json:"current"`
	Previous         int `json:"previous"`
	FilteredCurrent  int `json:"filtered_current"`
	FilteredPrevious int `json:"filtered_previous"`
}

// EventSectionView is one visible section of the event list.
type EventSectionView struct {
	Section      models.EventSection `json:"section"`
	Title        string              `json:"title"`
	Cards        []EventCard         `json:"cards"`
	EmptyMessage string              `json:"empty_message,omitempty"`
}

// EventCard is a single rendered event.
type EventCard struct {
	models.Event
	Action        models.EventAction `json:"action"`
	ActionLabel   string             `json:"action_label,omitempty"`
	StatusLabel   string             `json:"status_label"`
	DateLabel     string             `json:"date_label"`
	CapacityLabel string             `json:"capacity_label"`
	DetailURL     string             `json:"detail_url"`
}

// RegistrationResult is returned after a successful registration.
type RegistrationResult struct {
	EventID int64         `json:"event_id"`
	Message string        `json:"message"`
	View    EventListView `json:"view"`
}
