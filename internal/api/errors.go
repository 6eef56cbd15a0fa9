package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
)

// genericErrorMessage replaces the message of errors that are not operational.
const genericErrorMessage = "Something went very wrong!"

// APIError is the error body of every huma response. It implements
// huma.StatusError.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Status  string `json:"status" doc:"fail for client errors, error for server errors"`
	Message string `json:"message" doc:"Human-readable error message"`
	Detail  string `json:"error,omitempty" doc:"Underlying error, development only"`
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

func newAPIError(status int, message string) *APIError {
	return &APIError{status: status, Status: domainerrors.StatusWord(status), Message: message}
}

// RegisterErrorHandler makes huma render errors in the envelope. Operational
// errors keep their message; anything else is logged and hidden unless
// development is set.
// Call this after creating the huma.API but before serving requests.
func RegisterErrorHandler(logger *slog.Logger, development bool) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var appErr *domainerrors.Error
			if errors.As(err, &appErr) {
				if appErr.HTTPStatus() >= http.StatusInternalServerError {
					logger.Error("request failed", "code", appErr.Code, "error", err)
				}
				return newAPIError(appErr.HTTPStatus(), appErr.Message)
			}
		}

		// Request decoding and schema failures raised by huma itself.
		if status >= 400 && status < 500 {
			if status == http.StatusUnprocessableEntity {
				status = http.StatusBadRequest
			}
			return newAPIError(status, describe(message, errs))
		}

		logger.Error("unexpected error", "status", status, "message", message, "errors", errs)
		apiErr := newAPIError(status, genericErrorMessage)
		if development {
			apiErr.Detail = message
			if joined := errors.Join(errs...); joined != nil {
				apiErr.Detail = joined.Error()
			}
		}
		return apiErr
	}
}

// describe folds huma's per-field error details into one message.
func describe(message string, errs []error) string {
	if len(errs) == 0 {
		return message
	}
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return "Invalid input data. " + strings.Join(parts, ". ")
}
