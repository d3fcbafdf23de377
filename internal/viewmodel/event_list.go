package viewmodel

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/school-events-gateway/internal/dto"
	"github.com/noah-isme/school-events-gateway/internal/models"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
)

// EventFetcher loads the event collections.
type EventFetcher interface {
	FetchEvents(ctx context.Context) (models.EventCollections, error)
}

// Registrar registers the viewer for an event.
type Registrar interface {
	Register(ctx context.Context, eventID int64) error
}

type registrationRecorder interface {
	RecordRegistration(outcome string)
}

// Registration outcomes reported to the recorder.
const (
	RegistrationSucceeded  = "success"
	RegistrationFailed     = "failure"
	RegistrationInFlight   = "in_flight"
	RegistrationRefused    = "unavailable"
	RegistrationGuardError = "guard_error"
)

// EventListParams groups EventList dependencies.
type EventListParams struct {
	Fetcher   EventFetcher
	Registrar Registrar
	// Guard defaults to a MemoryGuard owned by the view-model.
	Guard RegistrationGuard
	// GuardScope namespaces guard keys, e.g. per viewer session.
	GuardScope string
	Metrics    registrationRecorder
	Logger     *zap.Logger
	Locale     language.Tag
}

// EventList holds the event list state and derives its filtered views.
type EventList struct {
	fetcher    EventFetcher
	registrar  Registrar
	guard      RegistrationGuard
	guardScope string
	metrics    registrationRecorder
	logger     *zap.Logger
	printer    *message.Printer

	mu         sync.RWMutex
	events     models.EventCollections
	loading    bool
	lastErr    error
	searchTerm string
	filter     models.CategoryFilter
}

// NewEventList constructs an EventList in its initial loading state.
func NewEventList(p EventListParams) *EventList {
	if p.Guard == nil {
		p.Guard = NewMemoryGuard()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &EventList{
		fetcher:    p.Fetcher,
		registrar:  p.Registrar,
		guard:      p.Guard,
		guardScope: p.GuardScope,
		metrics:    p.Metrics,
		logger:     p.Logger,
		printer:    newPrinter(p.Locale),
		events:     models.EventCollections{Current: []models.Event{}, Previous: []models.Event{}},
		loading:    true,
		filter:     models.CategoryAll,
	}
}

// Load fetches the events and replaces the snapshot. On failure the previous
// snapshot is kept, the error is logged and recorded, and loading still ends.
func (vm *EventList) Load(ctx context.Context) error {
	events, err := vm.fetcher.FetchEvents(ctx)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.loading = false
	if err != nil {
		vm.lastErr = asFetchFailure(err, "load events")
		vm.logger.Error("error fetching events", zap.Error(err))
		return vm.lastErr
	}
	vm.events = events
	vm.lastErr = nil
	return nil
}

// Loading reports whether the first load is still pending.
func (vm *EventList) Loading() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.loading
}

// LastError returns the error of the most recent load, if it failed.
func (vm *EventList) LastError() error {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.lastErr
}

// SetSearchTerm stores the raw search term.
func (vm *EventList) SetSearchTerm(term string) {
	vm.mu.Lock()
	vm.searchTerm = term
	vm.mu.Unlock()
}

// SearchTerm returns the stored search term.
func (vm *EventList) SearchTerm() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.searchTerm
}

// SetCategoryFilter selects the visible sections. Unknown values are rejected
// and the current filter is kept.
func (vm *EventList) SetCategoryFilter(raw string) error {
	filter, err := models.ParseCategoryFilter(raw)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "filter must be one of all, current, previous")
	}
	vm.mu.Lock()
	vm.filter = filter
	vm.mu.Unlock()
	return nil
}

// CategoryFilter returns the active filter.
func (vm *EventList) CategoryFilter() models.CategoryFilter {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

// FilteredCurrent returns the upcoming events matching the search term, in order.
func (vm *EventList) FilteredCurrent() []models.Event {
	return vm.filtered(models.SectionCurrent)
}

// FilteredPrevious returns the past events matching the search term, in order.
func (vm *EventList) FilteredPrevious() []models.Event {
	return vm.filtered(models.SectionPrevious)
}

func (vm *EventList) filtered(section models.EventSection) []models.Event {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return filterEvents(vm.events.Section(section), vm.searchTerm)
}

func filterEvents(events []models.Event, term string) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if matchesSearch(term, e.Title, e.Description, e.Location) {
			out = append(out, e)
		}
	}
	return out
}

// VisibleSections returns the sections to render for the active filter.
func (vm *EventList) VisibleSections() []models.EventSection {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return visibleSections(vm.filter)
}

func visibleSections(filter models.CategoryFilter) []models.EventSection {
	switch filter {
	case models.CategoryCurrent:
		return []models.EventSection{models.SectionCurrent}
	case models.CategoryPrevious:
		return []models.EventSection{models.SectionPrevious}
	default:
		return []models.EventSection{models.SectionCurrent, models.SectionPrevious}
	}
}

// Counts returns unfiltered section sizes and the filtered counts.
func (vm *EventList) Counts() dto.EventCounts {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return dto.EventCounts{
		Current:          len(vm.events.Current),
		Previous:         len(vm.events.Previous),
		FilteredCurrent:  len(filterEvents(vm.events.Current, vm.searchTerm)),
		FilteredPrevious: len(filterEvents(vm.events.Previous, vm.searchTerm)),
	}
}

// NoResults reports whether every visible section is empty after filtering.
func (vm *EventList) NoResults() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, section := range visibleSections(vm.filter) {
		if len(filterEvents(vm.events.Section(section), vm.searchTerm)) > 0 {
			return false
		}
	}
	return true
}

// EmptyMessage returns the text shown when section has no cards.
func (vm *EventList) EmptyMessage(section models.EventSection) string {
	return emptyEventsMessage(section, vm.SearchTerm())
}

// ActionFor returns the action an event card offers. Registered and full are
// mutually exclusive and both replace the register action; past events offer none.
func ActionFor(e models.Event, section models.EventSection) models.EventAction {
	switch {
	case section == models.SectionPrevious:
		return models.ActionNone
	case e.IsRegistered:
		return models.ActionRegistered
	case e.IsFull():
		return models.ActionFull
	default:
		return models.ActionRegister
	}
}

// Register registers the viewer for eventID and refreshes the list on success.
// It returns the success message, or a registration error carrying the server
// message. Local state is never changed optimistically.
func (vm *EventList) Register(ctx context.Context, eventID int64) (string, error) {
	if err := vm.refuseUnavailable(eventID); err != nil {
		vm.record(RegistrationRefused)
		return "", err
	}

	release, ok, err := vm.guard.TryAcquire(ctx, GuardKey(vm.guardScope, eventID))
	switch {
	case err != nil:
		// The guard only prevents duplicate clicks; a broken guard must not block registration.
		vm.record(RegistrationGuardError)
		vm.logger.Warn("registration guard unavailable", zap.Int64("event_id", eventID), zap.Error(err))
	case !ok:
		vm.record(RegistrationInFlight)
		return "", appErrors.ErrRegistrationInFlight
	default:
		defer release()
	}

	if err := vm.registrar.Register(ctx, eventID); err != nil {
		vm.record(RegistrationFailed)
		vm.logger.Error("error registering", zap.Int64("event_id", eventID), zap.Error(err))
		return "", asRegistrationFailure(err)
	}
	vm.record(RegistrationSucceeded)

	if err := vm.Load(ctx); err != nil {
		vm.logger.Warn("refresh after registration failed", zap.Int64("event_id", eventID), zap.Error(err))
	}
	return MessageRegistered, nil
}

func (vm *EventList) refuseUnavailable(eventID int64) error {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, section := range []models.EventSection{models.SectionCurrent, models.SectionPrevious} {
		for _, e := range vm.events.Section(section) {
			if e.ID != eventID {
				continue
			}
			switch ActionFor(e, section) {
			case models.ActionRegister:
				return nil
			case models.ActionFull:
				return appErrors.Clone(appErrors.ErrRegistrationUnavailable, labelFull)
			case models.ActionRegistered:
				return appErrors.Clone(appErrors.ErrRegistrationUnavailable, unavailableAlreadyJoined)
			default:
				return appErrors.Clone(appErrors.ErrRegistrationUnavailable, unavailablePast)
			}
		}
	}
	return nil
}

func (vm *EventList) record(outcome string) {
	if vm.metrics != nil {
		vm.metrics.RecordRegistration(outcome)
	}
}

// View builds the presentation snapshot of the visible sections.
func (vm *EventList) View() dto.EventListView {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	view := dto.EventListView{
		Loading:    vm.loading,
		SearchTerm: vm.searchTerm,
		Filter:     vm.filter,
		Counts: dto.EventCounts{
			Current:  len(vm.events.Current),
			Previous: len(vm.events.Previous),
		},
		Sections: []dto.EventSectionView{},
	}

	for _, section := range []models.EventSection{models.SectionCurrent, models.SectionPrevious} {
		filtered := filterEvents(vm.events.Section(section), vm.searchTerm)
		if section == models.SectionCurrent {
			view.Counts.FilteredCurrent = len(filtered)
		} else {
			view.Counts.FilteredPrevious = len(filtered)
		}
	}

	for _, section := range visibleSections(vm.filter) {
		filtered := filterEvents(vm.events.Section(section), vm.searchTerm)
		sv := dto.EventSectionView{
			Section: section,
			Title:   sectionTitle(vm.printer, section, vm.searchTerm, len(filtered)),
			Cards:   make([]dto.EventCard, 0, len(filtered)),
		}
		for _, e := range filtered {
			sv.Cards = append(sv.Cards, vm.card(e, section))
		}
		if len(filtered) == 0 {
			sv.EmptyMessage = emptyEventsMessage(section, vm.searchTerm)
		}
		view.Sections = append(view.Sections, sv)
	}
	return view
}

func (vm *EventList) card(e models.Event, section models.EventSection) dto.EventCard {
	action := ActionFor(e, section)
	return dto.EventCard{
		Event:         e,
		Action:        action,
		ActionLabel:   actionLabel(action),
		StatusLabel:   statusLabel(section),
		DateLabel:     dateLabel(e.Date),
		CapacityLabel: capacityLabel(vm.printer, e),
		DetailURL:     fmt.Sprintf("/event/%d", e.ID),
	}
}

func asFetchFailure(err error, message string) error {
	if appErrors.Is(err, appErrors.ErrFetchFailure) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrFetchFailure.Code, appErrors.ErrFetchFailure.Status, message)
}

func asRegistrationFailure(err error) error {
	if appErrors.Is(err, appErrors.ErrRegistrationFailure) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrRegistrationFailure.Code, appErrors.ErrRegistrationFailure.Status, appErrors.ErrRegistrationFailure.Message)
}
