package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

// Export output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// exportColumns is the fixed column set of the flattened tabular forms.
var exportColumns = []string{
	"invoice_number", "invoice_date", "due_date", "vendor", "customer",
	"total_amount", "currency", "document_status", "processing_status",
	"trip_id", "created_at",
}

// ExportResult is a serialized dump ready to stream to the caller.
type ExportResult struct {
	ContentType string
	FileName    string
	Data        []byte
}

// ExportService serializes filtered record sets. JSON is the structured
// dump; csv and xlsx are the flattened one-row-per-invoice forms.
type ExportService struct {
	invoices port.InvoiceRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService creates the export service.
func NewExportService(invoices port.InvoiceRepository, logger *zap.Logger) *ExportService {
	return &ExportService{
		invoices: invoices,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export serializes every active record matching the filter. Zero matches
// is not an error: tabular formats come back header-only.
func (s *ExportService) Export(ctx context.Context, filter port.ListFilter, format string) (*ExportResult, error) {
	filter.Limit = 0 // exports are never paged

	records, _, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	stamp := s.now().Format("20060102-150405")

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to encode export")
		}
		return &ExportResult{
			ContentType: "application/json",
			FileName:    "invoices-" + stamp + ".json",
			Data:        data,
		}, nil

	case FormatCSV:
		data, err := s.renderCSV(records)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			ContentType: "text/csv",
			FileName:    "invoices-" + stamp + ".csv",
			Data:        data,
		}, nil

	case FormatXLSX:
		data, err := s.renderXLSX(records)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			FileName:    "invoices-" + stamp + ".xlsx",
			Data:        data,
		}, nil

	default:
		return nil, apperr.New(apperr.KindValidation, "unsupported export format %q", format)
	}
}

func (s *ExportService) renderCSV(records []*entity.InvoiceRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportColumns); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to write csv header")
	}
	for _, rec := range records {
		if err := w.Write(flattenRecord(rec)); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to flush csv")
	}
	return buf.Bytes(), nil
}

func (s *ExportService) renderXLSX(records []*entity.InvoiceRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoices"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to create xlsx style")
	}

	for col, name := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to address xlsx cell")
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to write xlsx header")
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to style xlsx header")
		}
	}

	for row, rec := range records {
		for col, value := range flattenRecord(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindStorage, err, "failed to address xlsx cell")
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, apperr.Wrap(apperr.KindStorage, err, "failed to write xlsx row")
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to render xlsx")
	}
	return buf.Bytes(), nil
}

func flattenRecord(rec *entity.InvoiceRecord) []string {
	vendor, customer, currency := "", "", ""
	amount := ""
	if rec.ParsedData != nil {
		vendor = rec.ParsedData.Vendor.Name
		customer = rec.ParsedData.Customer.Name
		currency = rec.ParsedData.Financial.Currency
		if rec.ParsedData.Financial.TotalAmount != nil {
			amount = strconv.FormatFloat(*rec.ParsedData.Financial.TotalAmount, 'f', 2, 64)
		}
	}

	return []string{
		rec.InvoiceNumber,
		formatExportDate(rec.InvoiceDate),
		formatExportDate(rec.DueDate),
		vendor,
		customer,
		amount,
		currency,
		rec.DocumentStatus,
		rec.ProcessingStatus,
		rec.TripID,
		rec.CreatedAt.Format(time.RFC3339),
	}
}

func formatExportDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
