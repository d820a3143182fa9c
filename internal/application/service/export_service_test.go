package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

func newTestExportService(records ...*entity.InvoiceRecord) *ExportService {
	return NewExportService(newFakeInvoiceRepo(records...), testLogger())
}

func parsedRecord() *entity.InvoiceRecord {
	rec := recordInState(entity.DocStatusParsed, entity.ProcStatusCompleted)
	parsed := parsedFixture(119)
	parsed.Financial.Currency = "EUR"
	rec.ParsedData = &parsed
	return rec
}

func TestExportService_JSON(t *testing.T) {
	rec := parsedRecord()
	svc := newTestExportService(rec)

	result, err := svc.Export(context.Background(), port.ListFilter{}, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "application/json", result.ContentType)
	assert.Contains(t, result.FileName, ".json")

	var records []*entity.InvoiceRecord
	require.NoError(t, json.Unmarshal(result.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, rec.InvoiceNumber, records[0].InvoiceNumber)
	require.NotNil(t, records[0].ParsedData)
	assert.Equal(t, "Grand Hotel", records[0].ParsedData.Vendor.Name)
}

func TestExportService_DefaultsToJSON(t *testing.T) {
	svc := newTestExportService()

	result, err := svc.Export(context.Background(), port.ListFilter{}, "")
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)
}

func TestExportService_CSV(t *testing.T) {
	rec := parsedRecord()
	svc := newTestExportService(rec)

	result, err := svc.Export(context.Background(), port.ListFilter{}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, rec.InvoiceNumber, rows[1][0])
	assert.Equal(t, "Grand Hotel", rows[1][3])
	assert.Equal(t, "119.00", rows[1][5])
	assert.Equal(t, "EUR", rows[1][6])
}

func TestExportService_CSV_HeaderOnlyOnZeroMatches(t *testing.T) {
	svc := newTestExportService()

	result, err := svc.Export(context.Background(), port.ListFilter{}, FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, exportColumns, rows[0])
}

func TestExportService_XLSX(t *testing.T) {
	rec := parsedRecord()
	svc := newTestExportService(rec)

	result, err := svc.Export(context.Background(), port.ListFilter{}, FormatXLSX)
	require.NoError(t, err)
	assert.Contains(t, result.FileName, ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, rec.InvoiceNumber, rows[1][0])
}

func TestExportService_UnknownFormat(t *testing.T) {
	svc := newTestExportService()

	_, err := svc.Export(context.Background(), port.ListFilter{}, "pdf")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestExportService_RecordWithoutParsedData(t *testing.T) {
	rec := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)
	svc := newTestExportService(rec)

	result, err := svc.Export(context.Background(), port.ListFilter{}, FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// parsed-only columns are blank, not fabricated
	assert.Equal(t, "", rows[1][3])
	assert.Equal(t, "", rows[1][5])
}
