package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError is one entry of the data list of a 4xx/5xx envelope.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"dateInterval"`
	Message string                 `json:"message,omitempty" example:"dateInterval is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// DataResponse writes data in the envelope under statusCode.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// AcceptedResponse answers 202 and points Location at where the result will appear.
func AcceptedResponse(c echo.Context, location string, data interface{}) error {
	if location != "" {
		c.Response().Header().Set(echo.HeaderLocation, location)
	}
	return DataResponse(c, http.StatusAccepted, data)
}

func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse writes err under its own status; errors that are not an *AppError become a 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("unexpected server error").WithError(err)
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
