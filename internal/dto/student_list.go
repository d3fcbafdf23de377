package dto

import "github.com/noah-isme/school-events-gateway/internal/models"

// StudentListView is the presentation snapshot of the student list.
type StudentListView struct {
	Loading       bool           `json:"loading"`
	SearchTerm    string         `json:"search_term"`
	SortKey       models.SortKey `json:"sort"`
	TotalCount    int            `json:"total_count"`
	FilteredCount int            `json:"filtered_count"`
	Cards         []StudentCard  `json:"cards"`
	EmptyMessage  string         `json:"empty_message,omitempty"`
}

// StudentCard is a single rendered student.
type StudentCard struct {
	models.Student
	Initials      string `json:"initials"`
	Handle        string `json:"handle"`
	EventsLabel   string `json:"events_label"`
	EventsPageURL string `json:"events_url"`
}
