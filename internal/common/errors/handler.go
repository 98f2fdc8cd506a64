// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes and logs errors surfaced during a settlement run.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleCompanyError normalizes a per-company failure, logs it, and returns
// the StandardError so the caller can record it in the daily report.
func (h *ErrorHandler) HandleCompanyError(companyID int64, date string, err error) *StandardError {
	stdErr := h.normalizeError(err)

	fields := map[string]interface{}{
		"companyId":     companyID,
		"date":          date,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}

	// Idempotent skips are routine, not failures.
	if stdErr.Code == ErrCodeAlreadySettled {
		h.logger.Warn("Company already settled, skipping", fields)
		return stdErr
	}

	h.logger.Error("Company settlement failed", fields)
	return stdErr
}

// HandleRunError normalizes a run-level failure and logs it.
func (h *ErrorHandler) HandleRunError(date string, err error) *StandardError {
	stdErr := h.normalizeError(err)

	h.logger.Error("Settlement run failed", map[string]interface{}{
		"date":          date,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
	return stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		wrapped:   err,
	}
}
