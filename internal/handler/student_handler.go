package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/noah-isme/school-events-gateway/internal/client"
	"github.com/noah-isme/school-events-gateway/internal/middleware"
	"github.com/noah-isme/school-events-gateway/internal/models"
	"github.com/noah-isme/school-events-gateway/internal/service"
	"github.com/noah-isme/school-events-gateway/internal/viewmodel"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
	"github.com/noah-isme/school-events-gateway/pkg/response"
)

type rosterExporter interface {
	Export(students []models.Student, format string) (*service.RosterFile, error)
}

// StudentHandler exposes the student list view-model over HTTP.
type StudentHandler struct {
	fetcher  viewmodel.StudentFetcher
	exporter rosterExporter
	logger   *zap.Logger
	locale   language.Tag
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(fetcher viewmodel.StudentFetcher, exporter rosterExporter, logger *zap.Logger, locale language.Tag) *StudentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentHandler{fetcher: fetcher, exporter: exporter, logger: logger, locale: locale}
}

func (h *StudentHandler) newList(c *gin.Context) (*viewmodel.StudentList, context.Context, error) {
	ctx := client.WithSession(c.Request.Context(), middleware.Session(c))
	vm := viewmodel.NewStudentList(viewmodel.StudentListParams{Fetcher: h.fetcher, Logger: h.logger, Locale: h.locale})
	vm.SetSearchTerm(c.Query("search"))
	if sort := c.Query("sort"); sort != "" {
		if err := vm.SetSortKey(sort); err != nil {
			return nil, nil, err
		}
	}
	return vm, ctx, nil
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or username"
// @Param sort query string false "name, username or events"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	vm, ctx, err := h.newList(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{}
	if err := vm.Load(ctx); err != nil {
		meta["load_error"] = appErrors.FromError(err).Message
	}
	view := vm.View()
	meta["no_results"] = view.FilteredCount == 0
	response.JSON(c, http.StatusOK, view, meta)
}

// Export godoc
// @Summary Export the filtered student list
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param search query string false "Search by name or username"
// @Param sort query string false "name, username or events"
// @Success 200 {file} file
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	vm, ctx, err := h.newList(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	// An export of a list that failed to load would silently be empty.
	if err := vm.Load(ctx); err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exporter.Export(vm.FilteredSorted(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
