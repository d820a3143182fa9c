package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with all routes and middleware registered.
func NewRouter(h *Handlers, logger *zap.Logger, allowedOrigin string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware(allowedOrigin))
	router.Use(ActorMiddleware())

	router.GET("/health", h.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", h.CreateInvoice)
			invoices.GET("", h.ListInvoices)

			// fixed paths must register before the :id wildcard
			invoices.GET("/export", h.ExportInvoices)
			invoices.POST("/bulk/update", h.BulkUpdate)
			invoices.POST("/bulk/delete", h.BulkDelete)

			invoices.GET("/:id", h.GetInvoice)
			invoices.PUT("/:id", h.UpdateInvoice)
			invoices.PATCH("/:id", h.UpdateInvoice)
			invoices.DELETE("/:id", h.DeleteInvoice)

			invoices.POST("/:id/process/start", h.StartProcessing)
			invoices.POST("/:id/process/complete", h.CompleteProcessing)
			invoices.POST("/:id/process/fail", h.FailProcessing)
			invoices.POST("/:id/verify", h.VerifyInvoice)
			invoices.POST("/:id/approve", h.ApproveInvoice)
			invoices.POST("/:id/reject", h.RejectInvoice)
		}

		v1.GET("/processing-queue", h.ProcessingQueue)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/overview", h.AnalyticsOverview)
			analytics.GET("/processing", h.AnalyticsProcessing)
			analytics.GET("/trend", h.AnalyticsTrend)
		}

		v1.POST("/validate", h.ValidateParsedData)
	}

	return router
}
