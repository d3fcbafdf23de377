package viewmodel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-events-gateway/internal/models"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
)

func intPtr(v int) *int { return &v }

type fakeEventAPI struct {
	mu          sync.Mutex
	responses   []models.EventCollections
	fetchErr    error
	fetchCalls  int
	registerErr error
	registered  []int64
	// started receives a value each time Register is entered; block, when set,
	// holds Register until closed.
	started chan struct{}
	block   chan struct{}
}

func (f *fakeEventAPI) FetchEvents(context.Context) (models.EventCollections, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return models.EventCollections{}, f.fetchErr
	}
	idx := f.fetchCalls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeEventAPI) Register(_ context.Context, eventID int64) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, eventID)
	return f.registerErr
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *countingRecorder) RecordRegistration(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

func sampleEvents() models.EventCollections {
	return models.EventCollections{
		Current: []models.Event{
			{ID: 1, Title: "Maturitní ples", Description: "Večerní společenská akce", Location: "Velký sál", Date: models.NewDate(2025, time.May, 1), Time: "19:00", MaxStudents: intPtr(100), RegisteredCount: 40},
			{ID: 2, Title: "Exkurze", Description: "Návštěva pivovaru", Location: "Plzeň", Date: models.NewDate(2025, time.May, 12), MaxStudents: intPtr(20), RegisteredCount: 20},
			{ID: 3, Title: "Sportovní den", Description: "Atletika a fotbal", Location: "Hřiště", Date: models.NewDate(2025, time.June, 2), RegisteredCount: 55, IsRegistered: true},
		},
		Previous: []models.Event{
			{ID: 4, Title: "Lyžařský kurz", Description: "Týden na horách", Location: "Špindlerův Mlýn", Date: models.NewDate(2025, time.January, 20), MaxStudents: intPtr(30), RegisteredCount: 12},
		},
	}
}

func newEventList(api *fakeEventAPI, rec *countingRecorder) *EventList {
	p := EventListParams{Fetcher: api, Registrar: api, Logger: zap.NewNop()}
	if rec != nil {
		p.Metrics = rec
	}
	return NewEventList(p)
}

func ids(events []models.Event) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestEventListInitialState(t *testing.T) {
	vm := newEventList(&fakeEventAPI{}, nil)

	assert.True(t, vm.Loading())
	assert.Equal(t, models.CategoryAll, vm.CategoryFilter())
	assert.Empty(t, vm.FilteredCurrent())
	assert.Empty(t, vm.FilteredPrevious())
}

func TestEventListLoadReplacesState(t *testing.T) {
	api := &fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}
	vm := newEventList(api, nil)

	require.NoError(t, vm.Load(context.Background()))

	assert.False(t, vm.Loading())
	assert.NoError(t, vm.LastError())
	assert.Equal(t, []int64{1, 2, 3}, ids(vm.FilteredCurrent()))
	assert.Equal(t, []int64{4}, ids(vm.FilteredPrevious()))
}

func TestEventListLoadFailureKeepsPreviousState(t *testing.T) {
	api := &fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}
	vm := newEventList(api, nil)
	require.NoError(t, vm.Load(context.Background()))

	api.fetchErr = errors.New("connection refused")
	err := vm.Load(context.Background())

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrFetchFailure))
	assert.False(t, vm.Loading())
	assert.Equal(t, err, vm.LastError())
	assert.Len(t, vm.FilteredCurrent(), 3)
}

func TestEventListFirstLoadFailureEndsLoadingWithEmptyLists(t *testing.T) {
	vm := newEventList(&fakeEventAPI{fetchErr: errors.New("timeout")}, nil)

	require.Error(t, vm.Load(context.Background()))
	assert.False(t, vm.Loading())
	assert.Empty(t, vm.FilteredCurrent())
	assert.True(t, vm.NoResults())
}

func TestEventListSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	vm := newEventList(&fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}, nil)
	require.NoError(t, vm.Load(context.Background()))

	cases := map[string][]int64{
		"PLES":    {1},
		"pivovar": {2},
		"hřiště":  {3},
		"a":       {1, 2, 3},
		"":        {1, 2, 3},
	}
	for term, want := range cases {
		vm.SetSearchTerm(term)
		assert.Equal(t, want, ids(vm.FilteredCurrent()), "term %q", term)
	}

	vm.SetSearchTerm("MLÝN")
	assert.Equal(t, []int64{4}, ids(vm.FilteredPrevious()))
	assert.Empty(t, vm.FilteredCurrent())
}

func TestEventListFilteredIsSubsetContainingTerm(t *testing.T) {
	events := sampleEvents()
	vm := newEventList(&fakeEventAPI{responses: []models.EventCollections{events}}, nil)
	require.NoError(t, vm.Load(context.Background()))

	for _, term := range []string{"e", "S", "den", "ská", "zzz", " "} {
		vm.SetSearchTerm(term)
		got := vm.FilteredCurrent()
		assert.LessOrEqual(t, len(got), len(events.Current))
		last := -1
		for _, e := range got {
			lower := strings.ToLower(term)
			assert.True(t,
				strings.Contains(strings.ToLower(e.Title), lower) ||
					strings.Contains(strings.ToLower(e.Description), lower) ||
					strings.Contains(strings.ToLower(e.Location), lower))
			pos := indexOf(events.Current, e.ID)
			require.GreaterOrEqual(t, pos, 0)
			assert.Greater(t, pos, last, "order must be preserved")
			last = pos
		}
	}
}

func indexOf(events []models.Event, id int64) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func TestEventListCategoryFilter(t *testing.T) {
	vm := newEventList(&fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}, nil)

	assert.Equal(t, []models.EventSection{models.SectionCurrent, models.SectionPrevious}, vm.VisibleSections())

	require.NoError(t, vm.SetCategoryFilter("previous"))
	assert.Equal(t, []models.EventSection{models.SectionPrevious}, vm.VisibleSections())

	require.NoError(t, vm.SetCategoryFilter("current"))
	assert.Equal(t, []models.EventSection{models.SectionCurrent}, vm.VisibleSections())

	err := vm.SetCategoryFilter("upcoming")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, models.CategoryCurrent, vm.CategoryFilter())
}

func TestActionFor(t *testing.T) {
	full := models.Event{MaxStudents: intPtr(10), RegisteredCount: 10}
	open := models.Event{MaxStudents: intPtr(20), RegisteredCount: 5}
	unlimited := models.Event{RegisteredCount: 500}
	registeredWithRoom := models.Event{MaxStudents: intPtr(20), RegisteredCount: 5, IsRegistered: true}
	registeredAndFull := models.Event{MaxStudents: intPtr(5), RegisteredCount: 5, IsRegistered: true}

	assert.Equal(t, models.ActionFull, ActionFor(full, models.SectionCurrent))
	assert.Equal(t, models.ActionRegister, ActionFor(open, models.SectionCurrent))
	assert.Equal(t, models.ActionRegister, ActionFor(unlimited, models.SectionCurrent))
	assert.Equal(t, models.ActionRegistered, ActionFor(registeredWithRoom, models.SectionCurrent))
	assert.Equal(t, models.ActionRegistered, ActionFor(registeredAndFull, models.SectionCurrent))
	assert.Equal(t, models.ActionNone, ActionFor(open, models.SectionPrevious))
}

func TestScenarioFullEventOffersNoRegistration(t *testing.T) {
	ples := models.Event{ID: 1, Title: "Ples", Description: "...", Location: "Sál", Date: models.NewDate(2025, time.May, 1), RegisteredCount: 10, MaxStudents: intPtr(10)}
	api := &fakeEventAPI{responses: []models.EventCollections{{Current: []models.Event{ples}, Previous: []models.Event{}}}}
	rec := &countingRecorder{}
	vm := newEventList(api, rec)
	require.NoError(t, vm.Load(context.Background()))

	view := vm.View()
	require.Len(t, view.Sections, 2)
	require.Len(t, view.Sections[0].Cards, 1)
	card := view.Sections[0].Cards[0]
	assert.Equal(t, models.ActionFull, card.Action)
	assert.Equal(t, "Plně obsazeno", card.ActionLabel)

	_, err := vm.Register(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRegistrationUnavailable))
	assert.Empty(t, api.registered)
	assert.Equal(t, []string{RegistrationRefused}, rec.outcomes)
}

func TestScenarioRegistrationRefetches(t *testing.T) {
	before := models.Event{ID: 1, Title: "Ples", Description: "...", Location: "Sál", Date: models.NewDate(2025, time.May, 1), RegisteredCount: 5, MaxStudents: intPtr(20)}
	after := before
	after.RegisteredCount = 6
	after.IsRegistered = true
	api := &fakeEventAPI{responses: []models.EventCollections{
		{Current: []models.Event{before}, Previous: []models.Event{}},
		{Current: []models.Event{after}, Previous: []models.Event{}},
	}}
	rec := &countingRecorder{}
	vm := newEventList(api, rec)
	require.NoError(t, vm.Load(context.Background()))
	assert.Equal(t, models.ActionRegister, vm.View().Sections[0].Cards[0].Action)

	msg, err := vm.Register(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, MessageRegistered, msg)
	assert.Equal(t, []int64{1}, api.registered)
	assert.Equal(t, 2, api.fetchCalls)
	current := vm.FilteredCurrent()
	require.Len(t, current, 1)
	assert.Equal(t, 6, current[0].RegisteredCount)
	assert.Equal(t, models.ActionRegistered, vm.View().Sections[0].Cards[0].Action)
	assert.Equal(t, []string{RegistrationSucceeded}, rec.outcomes)
}

func TestRegisterFailureKeepsStateAndSurfacesMessage(t *testing.T) {
	api := &fakeEventAPI{
		responses:   []models.EventCollections{sampleEvents()},
		registerErr: appErrors.Clone(appErrors.ErrRegistrationFailure, "Registrace je uzavřena"),
	}
	vm := newEventList(api, nil)
	require.NoError(t, vm.Load(context.Background()))

	_, err := vm.Register(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "Registrace je uzavřena", appErrors.FromError(err).Message)
	assert.Equal(t, 1, api.fetchCalls)
	assert.Equal(t, 40, vm.FilteredCurrent()[0].RegisteredCount)
}

func TestRegisterNetworkErrorUsesFallbackMessage(t *testing.T) {
	api := &fakeEventAPI{responses: []models.EventCollections{sampleEvents()}, registerErr: errors.New("EOF")}
	vm := newEventList(api, nil)
	require.NoError(t, vm.Load(context.Background()))

	_, err := vm.Register(context.Background(), 1)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRegistrationFailure.Code, appErr.Code)
	assert.Equal(t, "Chyba při registraci", appErr.Message)
}

func TestRegisterRefusesRegisteredAndPastEvents(t *testing.T) {
	api := &fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}
	vm := newEventList(api, nil)
	require.NoError(t, vm.Load(context.Background()))

	_, err := vm.Register(context.Background(), 3)
	assert.True(t, appErrors.Is(err, appErrors.ErrRegistrationUnavailable))
	_, err = vm.Register(context.Background(), 4)
	assert.True(t, appErrors.Is(err, appErrors.ErrRegistrationUnavailable))
	assert.Empty(t, api.registered)
}

func TestRegisterUnknownEventIsSentToServer(t *testing.T) {
	api := &fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}
	vm := newEventList(api, nil)

	_, err := vm.Register(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, []int64{99}, api.registered)
}

func TestRegisterRejectsDoubleSubmit(t *testing.T) {
	api := &fakeEventAPI{
		responses: []models.EventCollections{sampleEvents()},
		started:   make(chan struct{}, 1),
		block:     make(chan struct{}),
	}
	rec := &countingRecorder{}
	vm := newEventList(api, rec)
	require.NoError(t, vm.Load(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := vm.Register(context.Background(), 1)
		done <- err
	}()

	<-api.started
	_, err := vm.Register(context.Background(), 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrRegistrationInFlight))

	close(api.block)
	require.NoError(t, <-done)
	assert.Equal(t, []int64{1}, api.registered)

	// The guard is released once the first registration completes.
	_, err = vm.Register(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, rec.outcomes, RegistrationInFlight)
}

type brokenGuard struct{}

func (brokenGuard) TryAcquire(context.Context, string) (func(), bool, error) {
	return nil, false, errors.New("redis down")
}

func TestRegisterProceedsWhenGuardFails(t *testing.T) {
	api := &fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}
	vm := NewEventList(EventListParams{Fetcher: api, Registrar: api, Guard: brokenGuard{}})
	require.NoError(t, vm.Load(context.Background()))

	_, err := vm.Register(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, api.registered)
}

func TestEventListViewLabels(t *testing.T) {
	vm := newEventList(&fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}, nil)
	require.NoError(t, vm.Load(context.Background()))

	view := vm.View()
	require.Len(t, view.Sections, 2)
	current := view.Sections[0]
	assert.Equal(t, "Nadcházející akce", current.Title)
	assert.Equal(t, "1. 5. 2025", current.Cards[0].DateLabel)
	assert.Equal(t, "40/100 registrováno", current.Cards[0].CapacityLabel)
	assert.Equal(t, "55 registrováno", current.Cards[2].CapacityLabel)
	assert.Equal(t, "/event/1", current.Cards[0].DetailURL)
	assert.Equal(t, "Nadcházející", current.Cards[0].StatusLabel)
	assert.Equal(t, "Proběhlo", view.Sections[1].Cards[0].StatusLabel)
	assert.Equal(t, models.ActionNone, view.Sections[1].Cards[0].Action)
	assert.Equal(t, 3, view.Counts.Current)
	assert.Equal(t, 1, view.Counts.Previous)

	vm.SetSearchTerm("ples")
	view = vm.View()
	assert.Equal(t, "Nadcházející akce (1)", view.Sections[0].Title)
	assert.Equal(t, "Minulé akce (0)", view.Sections[1].Title)
	assert.Equal(t, "Žádné minulé akce nevyhovují vašemu hledání.", view.Sections[1].EmptyMessage)
	assert.Equal(t, 3, view.Counts.Current)
	assert.Equal(t, 1, view.Counts.FilteredCurrent)
}

func TestScenarioEventSearchWithoutResults(t *testing.T) {
	vm := newEventList(&fakeEventAPI{responses: []models.EventCollections{sampleEvents()}}, nil)
	require.NoError(t, vm.Load(context.Background()))

	vm.SetSearchTerm("xyz-not-found")

	assert.Empty(t, vm.FilteredCurrent())
	assert.Empty(t, vm.FilteredPrevious())
	assert.True(t, vm.NoResults())
	assert.Equal(t, "Žádné nadcházející akce nevyhovují vašemu hledání.", vm.EmptyMessage(models.SectionCurrent))

	vm.SetSearchTerm("")
	assert.False(t, vm.NoResults())
}
