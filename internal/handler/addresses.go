package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grubermed/totenschein/internal/domain"
)

type verifyAddressRequest struct {
	Street      string `json:"street" validate:"required"`
	HouseNumber string `json:"house_number" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	City        string `json:"city" validate:"required"`
}

type verifyAddressResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VerifyAddress checks an entered address against the geocoding service
// before it is saved.
func (h *Handler) VerifyAddress(c echo.Context) error {
	var req verifyAddressRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.verify_address", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.verify_address", "street, house_number, postal_code and city are required")
	}

	result := h.verifier.Verify(c.Request().Context(), req.Street, req.HouseNumber, req.PostalCode, req.City)
	return c.JSON(http.StatusOK, verifyAddressResponse{
		Status:  string(result.Status),
		Message: result.Message,
	})
}
