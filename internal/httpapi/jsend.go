package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// jsendResponse is the envelope for every API body: success carries data,
// fail carries a client-side reason, error reports a server-side fault.
type jsendResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

const (
	jsendSuccess = "success"
	jsendFail    = "fail"
	jsendError   = "error"
)

func success(c echo.Context, data any) error {
	return successWithStatus(c, http.StatusOK, data)
}

func successWithStatus(c echo.Context, code int, data any) error {
	return c.JSON(code, jsendResponse{Status: jsendSuccess, Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, jsendResponse{Status: jsendFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func failUnauthorized(c echo.Context, message string) error {
	return fail(c, http.StatusUnauthorized, message, nil)
}

func serverError(c echo.Context, code int, message string) error {
	return c.JSON(code, jsendResponse{Status: jsendError, Message: message, Code: code})
}

func internalError(c echo.Context, message string) error {
	return serverError(c, http.StatusInternalServerError, message)
}

// unavailable marks a retryable storage outage.
func unavailable(c echo.Context, message string) error {
	return serverError(c, http.StatusServiceUnavailable, message)
}
