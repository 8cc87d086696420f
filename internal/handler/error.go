package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grubermed/totenschein/internal/domain"
)

// ErrorCodeToHTTPStatus maps a domain error code to an HTTP status code.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope of the API.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPErrorHandler translates domain errors into JSON responses. Internal
// errors are logged with their operation chain and returned opaque.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := domain.ErrorCode(err)
		status := ErrorCodeToHTTPStatus(code)
		message := domain.ErrorMessage(err)

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			code = domain.EINVALID
			if status >= 500 {
				code = domain.EINTERNAL
			}
			if m, ok := httpErr.Message.(string); ok {
				message = m
			}
		}

		if status >= 500 {
			logger.Error("request failed",
				"op", domain.ErrorOp(err),
				"error", err,
				"path", c.Request().URL.Path,
			)
		}

		var body errorBody
		body.Error.Code = code
		body.Error.Message = message

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(status); err != nil {
				logger.Error("failed to write error response", "error", err)
			}
			return
		}
		if err := c.JSON(status, body); err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}
