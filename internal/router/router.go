// Package router wires the HTTP surface: routes, global middleware and
// the central error handler.
package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/grubermed/totenschein/internal/handler"
	"github.com/grubermed/totenschein/internal/middleware"
)

// New builds the echo instance with all routes registered.
func New(h *handler.Handler, metrics *middleware.Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api")

	// Orders and workflow transitions.
	api.POST("/orders", h.RegisterOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.POST("/orders/:id/complete", h.CompleteOrder)
	api.POST("/orders/:id/inquiry", h.MarkOrderForInquiry)
	api.POST("/orders/:id/inquiry/send", h.SendOrderInquiry)
	api.POST("/orders/:id/resume", h.ResumeOrder)
	api.POST("/orders/:id/dispatch", h.DispatchOrder)
	api.POST("/orders/:id/print", h.MarkOrderForPrint)

	// Batch operations.
	api.POST("/inquiries/confirm", h.ConfirmInquiryReplies)
	api.POST("/dispatch/batch", h.DispatchBatch)
	api.POST("/print/confirm", h.ConfirmPrintBatch)

	// Work queues.
	api.GET("/worklists/email", h.ListReadyForEmail)
	api.GET("/worklists/print", h.ListReadyForPrint)
	api.GET("/worklists/wait", h.ListWait)
	api.GET("/worklists/overdue", h.ListOverdue)
	api.GET("/worklists/inquiry", h.ListInquiryOrders)
	api.GET("/worklists/print-pending", h.ListPrintPending)

	// Invoices.
	api.POST("/invoices", h.CreateInvoice)
	api.GET("/orders/:id/invoices", h.ListInvoices)
	api.GET("/invoices/:id/document", h.GetInvoiceDocument)

	// Payments.
	api.POST("/payments", h.RecordPayment)

	// History.
	api.GET("/orders/:id/history", h.ListHistory)
	api.POST("/orders/:id/history", h.AddHistoryNote)

	// Address verification.
	api.POST("/addresses/verify", h.VerifyAddress)

	return e
}
