// Package errors provides standardized error handling for the settlement engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Run-level outcomes
	ErrCodeSettlementBusy    ErrorCode = "SETTLEMENT_BUSY"
	ErrCodeSettlementAborted ErrorCode = "SETTLEMENT_ABORTED"
	ErrCodeLeaseAcquireFailed ErrorCode = "LEASE_ACQUIRE_FAILED"
	ErrCodeLeaseLost          ErrorCode = "LEASE_LOST"

	// Per-company outcomes
	ErrCodeCompanyError       ErrorCode = "COMPANY_ERROR"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeAlreadySettled     ErrorCode = "ALREADY_SETTLED"

	// Infrastructure
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeTransactionFailed        ErrorCode = "TRANSACTION_FAILED"

	ErrCodeReportIndexFailed      ErrorCode = "REPORT_INDEX_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeCatalogInvalid    ErrorCode = "CATALOG_INVALID"
	ErrCodeConfigInvalid     ErrorCode = "CONFIG_INVALID"
	ErrCodeBackupWriteFailed ErrorCode = "BACKUP_WRITE_FAILED"
)

// Sentinel errors for flow control with errors.Is.
var (
	// ErrSettlementBusy is returned when another process holds the run lease
	// for the same date.
	ErrSettlementBusy = errors.New("settlement already in progress for date")

	// ErrSettlementAborted is returned when a run stops before visiting every
	// company. Already-committed companies stay committed.
	ErrSettlementAborted = errors.New("settlement aborted")

	// ErrAlreadySettled marks a company whose record for the date already
	// exists. Treated as success by the orchestrator.
	ErrAlreadySettled = errors.New("company already settled for date")

	// ErrInvariantViolation marks corrupt balance-sheet state detected before
	// mutation. The company is skipped, never partially written.
	ErrInvariantViolation = errors.New("invariant violation")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	wrapped   error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel (if any) to errors.Is.
func (e *StandardError) Unwrap() error {
	return e.wrapped
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSettlementBusyError signals that the date lease is held elsewhere.
func NewSettlementBusyError(date string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettlementBusy,
		Message:   "Settlement already in progress",
		Details:   fmt.Sprintf("date: %s", date),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		wrapped:   ErrSettlementBusy,
	}
}

// NewSettlementAbortedError signals a run that stopped mid-way.
func NewSettlementAbortedError(date string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettlementAborted,
		Message:   "Settlement run aborted",
		Details:   fmt.Sprintf("date: %s, error: %s", date, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		wrapped:   ErrSettlementAborted,
	}
}

// NewLeaseAcquireFailedError creates a retryable lease store error.
func NewLeaseAcquireFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeaseAcquireFailed,
		Message:   "Failed to acquire run lease",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeaseLostError signals that the lease expired or was taken over mid-run.
func NewLeaseLostError(date string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeaseLost,
		Message:   "Run lease no longer held",
		Details:   fmt.Sprintf("date: %s", date),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		wrapped:   ErrSettlementAborted,
	}
}

// NewCompanyError wraps a per-company failure. The run continues with the
// next company.
func NewCompanyError(companyID int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompanyError,
		Message:   "Company settlement failed",
		Details:   fmt.Sprintf("companyId: %d, error: %s", companyID, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"companyId": companyID},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvariantViolationError creates a non-retryable corrupt-state error.
func NewInvariantViolationError(companyID int64, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvariantViolation,
		Message:   "Balance sheet invariant violated",
		Details:   fmt.Sprintf("companyId: %d, %s", companyID, details),
		Retryable: false,
		Metadata:  map[string]interface{}{"companyId": companyID},
		Timestamp: time.Now().UTC(),
		wrapped:   ErrInvariantViolation,
	}
}

// NewAlreadySettledError marks an idempotent skip.
func NewAlreadySettledError(companyID int64, date string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadySettled,
		Message:   "Company already settled",
		Details:   fmt.Sprintf("companyId: %d, date: %s", companyID, date),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		wrapped:   ErrAlreadySettled,
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionFailedError creates a retryable transaction error.
func NewTransactionFailedError(companyID int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionFailed,
		Message:   "Transaction commit failed",
		Details:   fmt.Sprintf("companyId: %d, error: %s", companyID, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"companyId": companyID},
		Timestamp: time.Now().UTC(),
	}
}

// NewReportIndexFailedError creates a retryable report archive error.
func NewReportIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReportIndexFailed,
		Message:   "Report archive indexing failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Report delivery failed",
		Details:   fmt.Sprintf("sink: %s, error: %s", sink, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogInvalidError creates a non-retryable catalog validation error.
func NewCatalogInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogInvalid,
		Message:   "Company type catalog failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigInvalidError creates a non-retryable configuration error.
func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackupWriteFailedError creates a retryable backup write error.
func NewBackupWriteFailedError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackupWriteFailed,
		Message:   "Ledger backup write failed",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeTransactionFailed,
		ErrCodeLeaseAcquireFailed,
		ErrCodeReportIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeBackupWriteFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeCompanyError,
		ErrCodeSettlementAborted:
		return 2 // Partial retry; the witness makes re-runs safe

	default:
		return 0 // Business outcomes: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SETTLEMENT") || strings.Contains(codeStr, "LEASE"):
		return "RUN"
	case strings.Contains(codeStr, "COMPANY") || strings.Contains(codeStr, "INVARIANT") || strings.Contains(codeStr, "SETTLED"):
		return "COMPANY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "TRANSACTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "REPORT") || strings.Contains(codeStr, "NOTIFICATION"):
		return "REPORTING"
	case strings.Contains(codeStr, "CATALOG") || strings.Contains(codeStr, "CONFIG"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
