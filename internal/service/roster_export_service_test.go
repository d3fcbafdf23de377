package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-events-gateway/internal/models"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
	"github.com/noah-isme/school-events-gateway/pkg/export"
)

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset) ([]byte, error) { return nil, errors.New("disk full") }
func (failingRenderer) ContentType() string                   { return "application/pdf" }

func fixedRosterService(pdf export.Renderer) *RosterExportService {
	svc := NewRosterExportService(nil, pdf, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestRosterExportCSVKeepsOrder(t *testing.T) {
	svc := fixedRosterService(nil)
	students := []models.Student{
		{ID: 2, Name: "Adam Kovář", Username: "adam", EventCount: 5},
		{ID: 1, Name: "Žofie Nováková", Username: "zofie", EventCount: 3},
	}

	file, err := svc.Export(students, "csv")
	require.NoError(t, err)
	assert.Equal(t, "studenti-20250501.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	body := bytes.TrimPrefix(file.Body, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Jméno", "Uživatelské jméno", "Počet akcí"}, records[0])
	assert.Equal(t, []string{"Adam Kovář", "adam", "5"}, records[1])
	assert.Equal(t, []string{"Žofie Nováková", "zofie", "3"}, records[2])
}

func TestRosterExportPDF(t *testing.T) {
	svc := fixedRosterService(nil)

	file, err := svc.Export([]models.Student{{ID: 1, Name: "Adam Kovář", Username: "adam"}}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestRosterExportRejectsUnknownFormat(t *testing.T) {
	_, err := fixedRosterService(nil).Export(nil, "docx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRosterExportRenderFailure(t *testing.T) {
	_, err := fixedRosterService(failingRenderer{}).Export(nil, "pdf")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
