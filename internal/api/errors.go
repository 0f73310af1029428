package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

// APIError implements huma.StatusError with the domain error shape.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler makes huma report domain errors with their own code
// and status. Call it after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return fromDomain(domainErr)
			}
		}

		var details any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = msgs
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
			Details: details,
		}
	}
}

// toAPIError converts a handler error into a response error.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return fromDomain(domainErr)
	}
	return &APIError{
		status:  http.StatusInternalServerError,
		Code:    string(domainerrors.CodeInternal),
		Message: err.Error(),
	}
}

func fromDomain(e *domainerrors.Error) *APIError {
	return &APIError{
		status:  e.HTTPStatus(),
		Code:    string(e.Code),
		Message: e.Error(),
		Details: e.Details,
	}
}

// statusToCode maps the statuses huma produces on its own to domain codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeInvalidState)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeChannelClosed)
	default:
		return string(domainerrors.CodeInternal)
	}
}
