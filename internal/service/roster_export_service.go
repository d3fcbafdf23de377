package service

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-events-gateway/internal/models"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
	"github.com/noah-isme/school-events-gateway/pkg/export"
)

const (
	rosterTitle      = "Přehled studentů"
	colName          = "Jméno"
	colUsername      = "Uživatelské jméno"
	colEventCount    = "Počet akcí"
	rosterFilePrefix = "studenti"
)

// RosterFile is a rendered student roster.
type RosterFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RosterExportService renders the student list, already filtered and sorted, to a file.
type RosterExportService struct {
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewRosterExportService constructs the service with CSV and PDF renderers.
func NewRosterExportService(csv export.Renderer, pdf export.Renderer, logger *zap.Logger) *RosterExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterExportService{
		renderers: map[export.Format]export.Renderer{export.FormatCSV: csv, export.FormatPDF: pdf},
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders students in the requested format, keeping their order.
func (s *RosterExportService) Export(students []models.Student, rawFormat string) (*RosterFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	renderer := s.renderers[format]

	body, err := renderer.Render(buildRosterDataset(students))
	if err != nil {
		s.logger.Error("roster export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &RosterFile{
		Filename:    fmt.Sprintf("%s-%s.%s", rosterFilePrefix, s.now().Format("20060102"), format),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func buildRosterDataset(students []models.Student) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			colName:       st.Name,
			colUsername:   st.Username,
			colEventCount: strconv.Itoa(st.EventCount),
		})
	}
	return export.Dataset{
		Title:   rosterTitle,
		Headers: []string{colName, colUsername, colEventCount},
		Rows:    rows,
	}
}
