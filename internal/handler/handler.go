package handler

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/grubermed/totenschein/internal/address"
	"github.com/grubermed/totenschein/internal/service"
)

// Handler carries the API dependencies. Handlers stay thin: parse,
// validate, delegate to a service, shape the response.
type Handler struct {
	orders   *service.OrderService
	invoices *service.InvoiceService
	intake   *service.IntakeService
	verifier address.Verifier
	validate *validator.Validate
	logger   *slog.Logger
}

func New(
	orders *service.OrderService,
	invoices *service.InvoiceService,
	intake *service.IntakeService,
	verifier address.Verifier,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		orders:   orders,
		invoices: invoices,
		intake:   intake,
		verifier: verifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}
