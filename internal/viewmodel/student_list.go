package viewmodel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/school-events-gateway/internal/dto"
	"github.com/noah-isme/school-events-gateway/internal/models"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
)

// StudentFetcher loads the student roster.
type StudentFetcher interface {
	FetchStudents(ctx context.Context) ([]models.Student, error)
}

// StudentListParams groups StudentList dependencies.
type StudentListParams struct {
	Fetcher StudentFetcher
	Logger  *zap.Logger
	// Locale drives name collation; the zero value means Czech.
	Locale language.Tag
}

// StudentList holds the student list state and derives its filtered, sorted view.
type StudentList struct {
	fetcher StudentFetcher
	logger  *zap.Logger
	locale  language.Tag
	printer *message.Printer

	mu         sync.RWMutex
	students   []models.Student
	loading    bool
	lastErr    error
	searchTerm string
	sortKey    models.SortKey
}

// NewStudentList constructs a StudentList in its initial loading state, sorted by name.
func NewStudentList(p StudentListParams) *StudentList {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Locale == language.Und {
		p.Locale = language.Czech
	}
	return &StudentList{
		fetcher:  p.Fetcher,
		logger:   p.Logger,
		locale:   p.Locale,
		printer:  newPrinter(p.Locale),
		students: []models.Student{},
		loading:  true,
		sortKey:  models.SortByName,
	}
}

// Load fetches the roster and replaces the snapshot. Failures keep the previous
// snapshot and end the loading state.
func (vm *StudentList) Load(ctx context.Context) error {
	students, err := vm.fetcher.FetchStudents(ctx)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.loading = false
	if err != nil {
		vm.lastErr = asFetchFailure(err, "load students")
		vm.logger.Error("error fetching students", zap.Error(err))
		return vm.lastErr
	}
	vm.students = students
	vm.lastErr = nil
	return nil
}

// Loading reports whether the first load is still pending.
func (vm *StudentList) Loading() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.loading
}

// LastError returns the error of the most recent load, if it failed.
func (vm *StudentList) LastError() error {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.lastErr
}

// SetSearchTerm stores the raw search term.
func (vm *StudentList) SetSearchTerm(term string) {
	vm.mu.Lock()
	vm.searchTerm = term
	vm.mu.Unlock()
}

// SearchTerm returns the stored search term.
func (vm *StudentList) SearchTerm() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.searchTerm
}

// SetSortKey changes the ordering. Unknown keys are rejected and the current key is kept.
func (vm *StudentList) SetSortKey(raw string) error {
	key, err := models.ParseSortKey(raw)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "sort must be one of name, username, events")
	}
	vm.mu.Lock()
	vm.sortKey = key
	vm.mu.Unlock()
	return nil
}

// SortKey returns the active sort key.
func (vm *StudentList) SortKey() models.SortKey {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.sortKey
}

// FilteredSorted returns the students matching the search term, sorted by the active key.
func (vm *StudentList) FilteredSorted() []models.Student {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filteredSortedLocked()
}

func (vm *StudentList) filteredSortedLocked() []models.Student {
	out := make([]models.Student, 0, len(vm.students))
	for _, s := range vm.students {
		if matchesSearch(vm.searchTerm, s.Name, s.Username) {
			out = append(out, s)
		}
	}
	sortStudents(out, vm.sortKey, vm.locale)
	return out
}

// sortStudents orders students in place. The sort is stable for every key.
func sortStudents(students []models.Student, key models.SortKey, locale language.Tag) {
	switch key {
	case models.SortByName:
		// Collators keep internal buffers and are not safe for concurrent use.
		col := collate.New(locale)
		sort.SliceStable(students, func(i, j int) bool {
			return col.CompareString(students[i].Name, students[j].Name) < 0
		})
	case models.SortByUsername:
		col := collate.New(language.Und)
		sort.SliceStable(students, func(i, j int) bool {
			return col.CompareString(students[i].Username, students[j].Username) < 0
		})
	case models.SortByEvents:
		sort.SliceStable(students, func(i, j int) bool {
			return students[i].EventCount > students[j].EventCount
		})
	}
}

// TotalCount returns the number of loaded students.
func (vm *StudentList) TotalCount() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.students)
}

// FilteredCount returns the number of students matching the search term.
func (vm *StudentList) FilteredCount() int {
	return len(vm.FilteredSorted())
}

// NoResults reports whether the filtered list is empty.
func (vm *StudentList) NoResults() bool {
	return vm.FilteredCount() == 0
}

// EmptyMessage returns the text shown when the filtered list is empty.
func (vm *StudentList) EmptyMessage() string {
	return emptyStudentsMessage(vm.SearchTerm())
}

// View builds the presentation snapshot.
func (vm *StudentList) View() dto.StudentListView {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	students := vm.filteredSortedLocked()
	view := dto.StudentListView{
		Loading:       vm.loading,
		SearchTerm:    vm.searchTerm,
		SortKey:       vm.sortKey,
		TotalCount:    len(vm.students),
		FilteredCount: len(students),
		Cards:         make([]dto.StudentCard, 0, len(students)),
	}
	for _, s := range students {
		view.Cards = append(view.Cards, dto.StudentCard{
			Student:       s,
			Initials:      Initials(s.Name),
			Handle:        "@" + s.Username,
			EventsLabel:   vm.printer.Sprintf("%d akcí", s.EventCount),
			EventsPageURL: fmt.Sprintf("/student/%d/events", s.ID),
		})
	}
	if len(students) == 0 {
		view.EmptyMessage = emptyStudentsMessage(vm.searchTerm)
	}
	return view
}
