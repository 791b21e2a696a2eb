package response

import "net/http"

// Error is a structured error that maps onto an HTTP status. Sent through
// a Handle it is encoded as JSON.
type Error struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewError creates an Error with the given status and the standard
// status text as message.
func NewError(status int, code string) Error {
	return Error{Status: status, Code: code, Message: http.StatusText(status)}
}

func (e Error) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for the error.
func (e Error) StatusCode() int {
	return e.Status
}

// Is matches errors with the same status and code, so copies made with
// the With* helpers still match the predefined values.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Status == e.Status && t.Code == e.Code
}

// WithMessage returns a copy of the error with a custom message.
func (e Error) WithMessage(message string) Error {
	e.Message = message
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e Error) WithDetails(details map[string]any) Error {
	e.Details = details
	return e
}

// WithError returns a copy of the error with cause recorded in details.
func (e Error) WithError(err error) Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details["cause"] = err.Error()
	e.Details = details
	return e
}

var (
	ErrBadRequest            = NewError(http.StatusBadRequest, "bad_request")
	ErrNotFound              = NewError(http.StatusNotFound, "not_found")
	ErrRequestEntityTooLarge = NewError(http.StatusRequestEntityTooLarge, "request_entity_too_large")
	ErrTooManyRequests       = NewError(http.StatusTooManyRequests, "too_many_requests")
	ErrInternalServerError   = NewError(http.StatusInternalServerError, "internal_server_error")
	ErrNotImplemented        = NewError(http.StatusNotImplemented, "not_implemented")
	ErrServiceUnavailable    = NewError(http.StatusServiceUnavailable, "service_unavailable")
	ErrGatewayTimeout        = NewError(http.StatusGatewayTimeout, "gateway_timeout")
)
