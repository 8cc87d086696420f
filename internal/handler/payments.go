package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/service"
)

type recordPaymentRequest struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	Amount      string `json:"amount" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Payer       string `json:"payer" validate:"required"`
}

// RecordPayment books a received payment and completes the order.
func (h *Handler) RecordPayment(c echo.Context) error {
	var req recordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.record_payment", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.record_payment", "amount, date and payer are required")
	}
	if req.OrderID == 0 && req.OrderNumber == 0 {
		return domain.Invalid("handler.record_payment", "order_id or order_number is required")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return domain.Invalid("handler.record_payment", "amount must be a decimal number")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.Invalid("handler.record_payment", "date must be YYYY-MM-DD")
	}

	result, err := h.orders.RecordPayment(c.Request().Context(), service.RecordPaymentParams{
		OrderID:     req.OrderID,
		OrderNumber: req.OrderNumber,
		Amount:      amount,
		Date:        date,
		Payer:       req.Payer,
	})
	if err != nil {
		return err
	}

	resp := echo.Map{
		"order":   toOrderView(result.Order),
		"invoice": toInvoiceView(result.Invoice),
	}
	if result.LedgerWarning != "" {
		resp["warning"] = result.LedgerWarning
	}
	return c.JSON(http.StatusOK, resp)
}
