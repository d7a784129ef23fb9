package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
	"github.com/noah-isme/sns-grievance-api/pkg/export"
)

type complaintRegister interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the register rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxRows  int
	Location *time.Location
}

// ExportResult is a rendered register ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
	Truncated   bool
}

// ExportService renders the filtered complaint register for staff.
type ExportService struct {
	complaints complaintRegister
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

var registerHeaders = []string{
	"Number", "Title", "Category", "Status", "Priority", "Address", "Latitude", "Longitude",
	"Submitted", "SLA Deadline", "Assigned To", "Resolved",
}

var registerWidths = map[string]float64{"Number": 1.6, "Title": 2.4, "Category": 1.4, "Address": 2.6}

// NewExportService constructs an ExportService.
func NewExportService(complaints complaintRegister, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		complaints: complaints,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ParseExportFormat normalises a requested format; empty means CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// Export renders every complaint matching filter, up to MaxRows, newest first.
func (s *ExportService) Export(ctx context.Context, filter models.ComplaintFilter, format ExportFormat, actor models.Actor) (*ExportResult, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may export the complaint register")
	}
	if err := filter.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	rows, truncated, err := s.collect(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaints for export")
	}
	dataset := s.dataset(rows)
	stamp := s.now().In(s.cfg.Location).Format("20060102_150405")

	result := &ExportResult{Rows: len(rows), Truncated: truncated}
	switch format {
	case ExportFormatPDF:
		result.Data, err = s.pdf.Render(dataset, "Complaint Register")
		result.ContentType = "application/pdf"
		result.Filename = fmt.Sprintf("complaints_%s.pdf", stamp)
	case ExportFormatCSV, "":
		result.Data, err = s.csv.Render(dataset)
		result.ContentType = "text/csv"
		result.Filename = fmt.Sprintf("complaints_%s.csv", stamp)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("complaint register exported",
		zap.String("format", string(format)),
		zap.Int("rows", result.Rows),
		zap.Bool("truncated", truncated),
		zap.String("actor", actor.ID),
	)
	return result, nil
}

// collect pages through the register since the repository caps each page.
func (s *ExportService) collect(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, bool, error) {
	out := make([]models.Complaint, 0)
	offset := 0
	for len(out) < s.cfg.MaxRows {
		limit := maxListLimit
		if remaining := s.cfg.MaxRows - len(out); remaining < limit {
			limit = remaining
		}
		page, err := s.complaints.List(ctx, filter.WithPage(limit, offset))
		if err != nil {
			return nil, false, err
		}
		out = append(out, page...)
		if len(page) < limit {
			return out, false, nil
		}
		offset += len(page)
	}
	more, err := s.complaints.List(ctx, filter.WithPage(1, offset))
	if err != nil {
		return nil, false, err
	}
	return out, len(more) > 0, nil
}

func (s *ExportService) dataset(rows []models.Complaint) export.Dataset {
	data := export.Dataset{Headers: registerHeaders, Widths: registerWidths, Rows: make([]map[string]string, 0, len(rows))}
	for _, c := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Number":       c.ComplaintNumber,
			"Title":        c.Title,
			"Category":     string(c.CategoryName),
			"Status":       string(c.Status),
			"Priority":     string(c.Priority),
			"Address":      c.Address,
			"Latitude":     strconv.FormatFloat(c.Latitude, 'f', 6, 64),
			"Longitude":    strconv.FormatFloat(c.Longitude, 'f', 6, 64),
			"Submitted":    s.formatTime(&c.SubmittedAt),
			"SLA Deadline": s.formatTime(c.SLADeadline),
			"Assigned To":  deref(c.AssignedTo),
			"Resolved":     s.formatTime(c.ResolvedAt),
		})
	}
	return data
}

func (s *ExportService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.cfg.Location).Format("2006-01-02 15:04")
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
