package response

import "partsreserve/pkg/apperror"

// Response represents a standard API response format
type Response struct {
	Status     string                 `json:"status"`      // "success" or "error"
	StatusCode int                    `json:"status_code"` // HTTP status code
	Data       interface{}            `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Code       string                 `json:"code,omitempty"`    // apperror code on failures
	Details    map[string]interface{} `json:"details,omitempty"` // context for the UI, e.g. current_stock
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError builds an error response from a typed application error and
// returns the HTTP status to write it with.
func FromError(err error) (int, Response) {
	appErr := apperror.From(err)
	status := appErr.HTTPStatus()
	msg := appErr.Message
	if appErr.Code == apperror.CodeInternal {
		msg = "internal server error"
	}
	return status, Response{
		Status:     "error",
		StatusCode: status,
		Error:      msg,
		Code:       string(appErr.Code),
		Details:    appErr.Details,
	}
}
