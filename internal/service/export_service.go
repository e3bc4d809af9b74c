package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/internal/snapshot"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

// Supported export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

var exportContentTypes = map[string]string{
	ExportFormatCSV:  "text/csv",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type timetableLoader interface {
	Load(ctx context.Context, id string) (*models.Timetable, scheduler.Timetable, []scheduler.Course, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

type csvRenderer interface {
	Render(records interface{}) ([]byte, error)
}

type pdfRenderer interface {
	Render(grid export.Grid) ([]byte, error)
}

type xlsxRenderer interface {
	Render(grid export.Grid, sheet string) ([]byte, error)
}

// ExportResult is a rendered timetable file.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	// StoredPath is set when the export was archived to storage.
	StoredPath string
}

// ExportService renders stored timetables as CSV, PDF or XLSX.
type ExportService struct {
	timetables timetableLoader
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	xlsx       xlsxRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. storage may be nil, in
// which case exports are not archived.
func NewExportService(timetables timetableLoader, storage fileStorage, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{
		timetables: timetables,
		storage:    storage,
		csv:        csv,
		pdf:        pdf,
		xlsx:       xlsx,
		logger:     logger,
	}
}

// Export renders a stored version. An empty format means csv.
func (s *ExportService) Export(ctx context.Context, id, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	record, tt, courses, err := s.timetables.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := Render(tt, courses, format, fmt.Sprintf("Timetable %s v%d", tt.Cohort.Key(), record.Version), s.csv, s.pdf, s.xlsx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}

	result := &ExportResult{
		Filename:    storage.FileName(fmt.Sprintf("%s/v%d", tt.Cohort.Key(), record.Version), format),
		ContentType: contentType,
		Data:        data,
	}
	if s.storage != nil {
		path, saveErr := s.storage.Save(result.Filename, data)
		if saveErr != nil {
			s.logger.Warn("archive timetable export", zap.String("timetable_id", id), zap.Error(saveErr))
		} else {
			result.StoredPath = path
		}
	}
	return result, nil
}

// Render produces the bytes of a timetable in the given format. It is shared
// with the offline CLI.
func Render(tt scheduler.Timetable, courses []scheduler.Course, format, title string, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) ([]byte, error) {
	switch format {
	case ExportFormatCSV:
		rows := snapshot.SlotRows(tt)
		return csv.Render(&rows)
	case ExportFormatPDF:
		return pdf.Render(snapshot.BuildGrid(tt, snapshot.CourseCodes(courses), title))
	case ExportFormatXLSX:
		return xlsx.Render(snapshot.BuildGrid(tt, snapshot.CourseCodes(courses), title), sheetName(tt.Cohort))
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}

// sheetName fits excel's 31 character limit and forbidden characters.
func sheetName(c scheduler.Cohort) string {
	name := strings.ReplaceAll(c.Key(), "/", "-")
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
