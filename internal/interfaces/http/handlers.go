package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/application/service"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
	"github.com/tripoptimizer/invoice-engine/internal/domain/validation"
)

const dateLayout = "2006-01-02"

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoices  *service.InvoiceService
	workflow  *service.WorkflowEngine
	bulk      *service.BulkService
	queue     *service.QueueService
	analytics *service.AnalyticsService
	export    *service.ExportService
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	invoices *service.InvoiceService,
	workflow *service.WorkflowEngine,
	bulk *service.BulkService,
	queue *service.QueueService,
	analytics *service.AnalyticsService,
	export *service.ExportService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		invoices:  invoices,
		workflow:  workflow,
		bulk:      bulk,
		queue:     queue,
		analytics: analytics,
		export:    export,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

func (h *Handlers) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindInvalidTransition:
		status = http.StatusUnprocessableEntity
	}

	if status >= 500 {
		h.logger.Error("Request failed", zap.Error(err))
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
		Kind:    string(kind),
	})
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "invoice-engine",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// --- invoice CRUD -----------------------------------------------------------

type createInvoiceRequest struct {
	InvoiceNumber    string   `json:"invoice_number" binding:"required"`
	InvoiceDate      string   `json:"invoice_date"`
	DueDate          string   `json:"due_date"`
	OriginalFileName string   `json:"original_file_name"`
	FilePath         string   `json:"file_path"`
	FileSize         int64    `json:"file_size"`
	FileType         string   `json:"file_type"`
	MimeType         string   `json:"mime_type"`
	TripID           string   `json:"trip_id" binding:"required"`
	ExpenseID        string   `json:"expense_id"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags"`
}

// CreateInvoice handles POST /api/v1/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	invoiceDate, err := parseOptionalDate(req.InvoiceDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		h.fail(c, err)
		return
	}

	rec, err := h.invoices.Create(c.Request.Context(), service.CreateInvoiceInput{
		InvoiceNumber:    req.InvoiceNumber,
		InvoiceDate:      invoiceDate,
		DueDate:          dueDate,
		OriginalFileName: req.OriginalFileName,
		FilePath:         req.FilePath,
		FileSize:         req.FileSize,
		FileType:         req.FileType,
		MimeType:         req.MimeType,
		TripID:           req.TripID,
		ExpenseID:        req.ExpenseID,
		Category:         req.Category,
		Tags:             req.Tags,
	}, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusCreated, rec)
}

// GetInvoice handles GET /api/v1/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	detail, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, detail)
}

type listResponse struct {
	Items []*entity.InvoiceRecord `json:"items"`
	Total int64                   `json:"total"`
}

// ListInvoices handles GET /api/v1/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	items, total, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, listResponse{Items: items, Total: total})
}

type updateInvoiceRequest struct {
	InvoiceNumber *string  `json:"invoice_number"`
	InvoiceDate   *string  `json:"invoice_date"`
	DueDate       *string  `json:"due_date"`
	Category      *string  `json:"category"`
	Tags          []string `json:"tags"`
	TripID        *string  `json:"trip_id"`
	ExpenseID     *string  `json:"expense_id"`
}

// UpdateInvoice handles PUT and PATCH /api/v1/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	fields := service.UpdateInvoiceFields{
		InvoiceNumber: req.InvoiceNumber,
		Category:      req.Category,
		Tags:          req.Tags,
		TripID:        req.TripID,
		ExpenseID:     req.ExpenseID,
	}
	if req.InvoiceDate != nil {
		t, err := parseOptionalDate(*req.InvoiceDate)
		if err != nil {
			h.fail(c, err)
			return
		}
		fields.InvoiceDate = t
	}
	if req.DueDate != nil {
		t, err := parseOptionalDate(*req.DueDate)
		if err != nil {
			h.fail(c, err)
			return
		}
		fields.DueDate = t
	}

	rec, err := h.invoices.Update(c.Request.Context(), c.Param("id"), fields, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

// DeleteInvoice handles DELETE /api/v1/invoices/:id (soft delete)
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.workflow.SoftDelete(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, gin.H{"archived": true})
}

// --- workflow transitions ---------------------------------------------------

// StartProcessing handles POST /api/v1/invoices/:id/process/start
func (h *Handlers) StartProcessing(c *gin.Context) {
	rec, err := h.workflow.StartProcessing(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

type completeProcessingRequest struct {
	ParsedData      entity.ParsedData `json:"parsed_data" binding:"required"`
	ConfidenceScore *float64          `json:"confidence_score"`
	ProcessingTime  *float64          `json:"processing_time"`
}

// CompleteProcessing handles POST /api/v1/invoices/:id/process/complete
func (h *Handlers) CompleteProcessing(c *gin.Context) {
	var req completeProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	rec, err := h.workflow.CompleteProcessing(c.Request.Context(), c.Param("id"),
		actorFrom(c), req.ParsedData, req.ConfidenceScore, req.ProcessingTime)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

type failProcessingRequest struct {
	Error string `json:"error" binding:"required"`
}

// FailProcessing handles POST /api/v1/invoices/:id/process/fail
func (h *Handlers) FailProcessing(c *gin.Context) {
	var req failProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	rec, err := h.workflow.FailProcessing(c.Request.Context(), c.Param("id"), actorFrom(c), req.Error)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

type verifyRequest struct {
	Notes           string `json:"notes"`
	ConfidenceLevel string `json:"confidence_level"`
}

// VerifyInvoice handles POST /api/v1/invoices/:id/verify
func (h *Handlers) VerifyInvoice(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	rec, err := h.workflow.Verify(c.Request.Context(), c.Param("id"), actorFrom(c),
		req.Notes, req.ConfidenceLevel)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

type approveRequest struct {
	Notes         string `json:"notes"`
	ApprovalLevel string `json:"approval_level"`
}

// ApproveInvoice handles POST /api/v1/invoices/:id/approve
func (h *Handlers) ApproveInvoice(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	rec, err := h.workflow.Approve(c.Request.Context(), c.Param("id"), actorFrom(c),
		req.Notes, req.ApprovalLevel)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectInvoice handles POST /api/v1/invoices/:id/reject
func (h *Handlers) RejectInvoice(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	rec, err := h.workflow.Reject(c.Request.Context(), c.Param("id"), actorFrom(c), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rec)
}

// --- bulk operations --------------------------------------------------------

type bulkUpdateRequest struct {
	IDs       []string `json:"ids" binding:"required"`
	Category  *string  `json:"category"`
	Tags      []string `json:"tags"`
	ExpenseID *string  `json:"expense_id"`
}

// BulkUpdate handles POST /api/v1/invoices/bulk/update
func (h *Handlers) BulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	result, err := h.bulk.Update(c.Request.Context(), req.IDs, port.BulkFields{
		Category:  req.Category,
		Tags:      req.Tags,
		ExpenseID: req.ExpenseID,
	}, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, result)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BulkDelete handles POST /api/v1/invoices/bulk/delete
func (h *Handlers) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}

	result, err := h.bulk.Delete(c.Request.Context(), req.IDs, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, result)
}

// --- read side --------------------------------------------------------------

// ProcessingQueue handles GET /api/v1/processing-queue
func (h *Handlers) ProcessingQueue(c *gin.Context) {
	view, err := h.queue.View(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, view)
}

// AnalyticsOverview handles GET /api/v1/analytics/overview
func (h *Handlers) AnalyticsOverview(c *gin.Context) {
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	overview, err := h.analytics.Overview(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, overview)
}

// AnalyticsProcessing handles GET /api/v1/analytics/processing
func (h *Handlers) AnalyticsProcessing(c *gin.Context) {
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	groups, err := h.analytics.ProcessingMetrics(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, groups)
}

// AnalyticsTrend handles GET /api/v1/analytics/trend
func (h *Handlers) AnalyticsTrend(c *gin.Context) {
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	buckets, err := h.analytics.MonthlyTrend(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, buckets)
}

// ExportInvoices handles GET /api/v1/invoices/export
func (h *Handlers) ExportInvoices(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.export.Export(c.Request.Context(), filter, c.DefaultQuery("format", "json"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// ValidateParsedData handles POST /api/v1/validate
func (h *Handlers) ValidateParsedData(c *gin.Context) {
	var parsed entity.ParsedData
	if err := c.ShouldBindJSON(&parsed); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
		return
	}
	h.ok(c, http.StatusOK, validation.Validate(parsed))
}

// --- helpers ----------------------------------------------------------------

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func parseListFilter(c *gin.Context) (port.ListFilter, error) {
	filter := port.ListFilter{
		DocumentStatus:   c.Query("document_status"),
		ProcessingStatus: c.Query("processing_status"),
		Category:         c.Query("category"),
		TripID:           c.Query("trip_id"),
		Search:           c.Query("search"),
		SortBy:           c.Query("sort_by"),
		SortDir:          c.Query("sort_dir"),
	}

	from, err := parseOptionalDate(c.Query("from"))
	if err != nil {
		return filter, err
	}
	filter.From = from

	to, err := parseOptionalDate(c.Query("to"))
	if err != nil {
		return filter, err
	}
	filter.To = to

	var page struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		return filter, apperr.Wrap(apperr.KindValidation, err, "invalid pagination parameters")
	}
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	return filter, nil
}

func parseAnalyticsFilter(c *gin.Context) (port.AnalyticsFilter, error) {
	filter := port.AnalyticsFilter{TripID: c.Query("trip_id")}

	from, err := parseOptionalDate(c.Query("from"))
	if err != nil {
		return filter, err
	}
	filter.From = from

	to, err := parseOptionalDate(c.Query("to"))
	if err != nil {
		return filter, err
	}
	filter.To = to

	return filter, nil
}
