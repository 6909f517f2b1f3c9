package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
)

type ErrorType string

const (
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrForbidden      ErrorType = "FORBIDDEN"
	ErrConflict       ErrorType = "CONFLICT"
	ErrBadSignature   ErrorType = "BAD_SIGNATURE"
	ErrReadOnly       ErrorType = "READ_ONLY"
	ErrRateLimited    ErrorType = "RATE_LIMITED"
	ErrSystemPanic    ErrorType = "SYSTEM_PANIC"
)

// AppError is the standard error struct for the application. Business
// rejections of a fill are not AppErrors; they travel inside the receipt.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

// Wrap turns any error into an AppError. Structural guardrail errors become
// INVALID_REQUEST; anything unrecognised is INTERNAL_ERROR.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, guardrail.ErrMalformed) {
		return New(ErrInvalidRequest, err.Error(), err)
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrBadSignature:
		return http.StatusBadRequest
	case ErrForbidden, ErrReadOnly:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrSystemPanic:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrInvalidRequest:
		return "Check the request body against the guardrail and evidence schema."
	case ErrBadSignature:
		return "Re-sign the feed attestation with the registered feed key."
	case ErrConflict:
		return "Refresh the offer; it is no longer active."
	case ErrRateLimited:
		return "Retry after a short delay."
	case ErrReadOnly:
		return "Send writes to a node that is not in read-only mode."
	default:
		return ""
	}
}
