package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/service"
)

type createInvoiceRequest struct {
	OrderID     int64  `json:"order_id" validate:"required,gt=0"`
	Kind        string `json:"kind"`
	InvoiceDate string `json:"invoice_date"`
	Remark      string `json:"remark"`
}

// CreateInvoice creates the next invoice version of an order without
// moving the order through the workflow, e.g. after correcting case data.
func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.create_invoice", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.create_invoice", "order_id is required")
	}

	kind := domain.InvoiceKindFirst
	if req.Kind != "" {
		parsed, err := domain.ParseInvoiceKind(req.Kind)
		if err != nil {
			return domain.Invalid("handler.create_invoice", "unknown invoice kind")
		}
		kind = parsed
	}

	invoiceDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.InvoiceDate != "" {
		parsed, err := parseDate(req.InvoiceDate)
		if err != nil {
			return domain.Invalid("handler.create_invoice", "invoice_date must be YYYY-MM-DD")
		}
		invoiceDate = parsed
	}

	inv, err := h.invoices.CreateInvoice(c.Request().Context(), service.CreateInvoiceParams{
		OrderID:     req.OrderID,
		Kind:        kind,
		InvoiceDate: invoiceDate,
		Remark:      req.Remark,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toInvoiceView(inv))
}

// ListInvoices returns all invoice versions of an order, newest first.
func (h *Handler) ListInvoices(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	invoices, err := h.invoices.ListInvoices(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toInvoiceViews(invoices))
}

// GetInvoiceDocument streams the stored billing document of an invoice.
func (h *Handler) GetInvoiceDocument(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	doc, err := h.invoices.Document(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/html; charset=utf-8", doc)
}
