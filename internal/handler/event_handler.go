package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/noah-isme/school-events-gateway/internal/client"
	"github.com/noah-isme/school-events-gateway/internal/dto"
	"github.com/noah-isme/school-events-gateway/internal/middleware"
	"github.com/noah-isme/school-events-gateway/internal/viewmodel"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
	"github.com/noah-isme/school-events-gateway/pkg/response"
)

type registrationRecorder interface {
	RecordRegistration(outcome string)
}

// EventHandlerParams groups EventHandler dependencies.
type EventHandlerParams struct {
	Fetcher   viewmodel.EventFetcher
	Registrar viewmodel.Registrar
	Guard     viewmodel.RegistrationGuard
	Metrics   registrationRecorder
	Logger    *zap.Logger
	Locale    language.Tag

	// SessionCookie names the cookie that scopes the registration guard.
	SessionCookie string
}

// EventHandler exposes the event list view-model over HTTP.
type EventHandler struct {
	params EventHandlerParams
}

// NewEventHandler constructs EventHandler. A shared guard is required so that
// requests for the same viewer see each other's in-flight registrations.
func NewEventHandler(p EventHandlerParams) *EventHandler {
	if p.Guard == nil {
		p.Guard = viewmodel.NewMemoryGuard()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.SessionCookie == "" {
		p.SessionCookie = defaultSessionCookie
	}
	return &EventHandler{params: p}
}

func (h *EventHandler) newList(c *gin.Context) (*viewmodel.EventList, context.Context) {
	session := middleware.Session(c)
	ctx := client.WithSession(c.Request.Context(), session)
	vm := viewmodel.NewEventList(viewmodel.EventListParams{
		Fetcher:    h.params.Fetcher,
		Registrar:  h.params.Registrar,
		Guard:      h.params.Guard,
		GuardScope: sessionScope(c, h.params.SessionCookie),
		Metrics:    h.params.Metrics,
		Logger:     h.params.Logger,
		Locale:     h.params.Locale,
	})
	return vm, ctx
}

func applyEventQuery(c *gin.Context, vm *viewmodel.EventList) error {
	vm.SetSearchTerm(c.Query("search"))
	if filter := c.Query("filter"); filter != "" {
		return vm.SetCategoryFilter(filter)
	}
	return nil
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param search query string false "Search in title, description and location"
// @Param filter query string false "all, current or previous"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	vm, ctx := h.newList(c)
	if err := applyEventQuery(c, vm); err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{}
	if err := vm.Load(ctx); err != nil {
		meta["load_error"] = appErrors.FromError(err).Message
	}
	meta["no_results"] = vm.NoResults()
	response.JSON(c, http.StatusOK, vm.View(), meta)
}

// Register godoc
// @Summary Register the viewer for an event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/register [post]
func (h *EventHandler) Register(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || eventID < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}

	vm, ctx := h.newList(c)
	if err := applyEventQuery(c, vm); err != nil {
		response.Error(c, err)
		return
	}
	// Without a snapshot the backend alone decides whether registration is allowed.
	if err := vm.Load(ctx); err != nil {
		h.params.Logger.Warn("events unavailable before registration", zap.Int64("event_id", eventID), zap.Error(err))
	}

	message, err := vm.Register(ctx, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RegistrationResult{EventID: eventID, Message: message, View: vm.View()})
}
