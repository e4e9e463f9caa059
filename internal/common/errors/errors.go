// Package errors provides the structured error taxonomy for the licensure
// data plane and its BPMN workflow integration.
package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Kinds and Error Codes
// ==========================

// Kind classifies an error by who must act on it.
type Kind string

const (
	// KindInvalidRequest marks caller faults. Never retryable.
	KindInvalidRequest Kind = "INVALID_REQUEST"
	// KindInfrastructure marks transient store or transport faults.
	KindInfrastructure Kind = "INFRASTRUCTURE"
	// KindConsistency marks concurrent-modification conflicts resolved by redelivery.
	KindConsistency Kind = "CONSISTENCY"
	// KindProgramming marks caller bugs that must fail fast.
	KindProgramming Kind = "PROGRAMMING"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Caller faults
	ErrCodeInvalidCursor       ErrorCode = "INVALID_CURSOR"
	ErrCodeInvalidPageSize     ErrorCode = "INVALID_PAGE_SIZE"
	ErrCodeUnknownCompact      ErrorCode = "UNKNOWN_COMPACT"
	ErrCodeUnknownJurisdiction ErrorCode = "UNKNOWN_JURISDICTION"
	ErrCodeUnknownLicenseType  ErrorCode = "UNKNOWN_LICENSE_TYPE"
	ErrCodeMissingField        ErrorCode = "MISSING_FIELD"
	ErrCodeMalformedInput      ErrorCode = "MALFORMED_INPUT"
	ErrCodeProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"

	// Store and transport faults
	ErrCodeStoreThrottled     ErrorCode = "STORE_THROTTLED"
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeTransactionFailed  ErrorCode = "TRANSACTION_FAILED"
	ErrCodeProvisioningFailed ErrorCode = "PROVISIONING_FAILED"
	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeDeadlineExceeded   ErrorCode = "DEADLINE_EXCEEDED"
	ErrCodeQueryBudgetReached ErrorCode = "QUERY_BUDGET_REACHED"

	// Concurrency conflicts
	ErrCodeProviderVersionConflict ErrorCode = "PROVIDER_VERSION_CONFLICT"

	// Caller bugs
	ErrCodeWriterNotOpen ErrorCode = "WRITER_NOT_OPEN"

	// Side channels
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAuditWriteFailed       ErrorCode = "AUDIT_WRITE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Kind      Kind                   `json:"kind"`
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so store and transport failures stay
// inspectable through errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches identifying context (providerId, jurisdiction,
// compactTransactionId, ...) without altering the error identity.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidCursorError creates a non-retryable cursor decode error.
func NewInvalidCursorError(err error) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeInvalidCursor,
		Message:   "Pagination cursor is malformed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidPageSizeError creates a non-retryable page size error. A
// non-positive max means only the lower bound was violated.
func NewInvalidPageSizeError(size, max int) *StandardError {
	details := fmt.Sprintf("pageSize: %d", size)
	if max > 0 {
		details = fmt.Sprintf("pageSize: %d, max: %d", size, max)
	}
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeInvalidPageSize,
		Message:   "Requested page size is out of range",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownCompactError creates a non-retryable referential error.
func NewUnknownCompactError(compact string) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeUnknownCompact,
		Message:   "Compact is not registered",
		Details:   fmt.Sprintf("compact: %s", compact),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownJurisdictionError creates a non-retryable referential error.
func NewUnknownJurisdictionError(compact, jurisdiction string) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeUnknownJurisdiction,
		Message:   "Jurisdiction is not a member of the compact",
		Details:   fmt.Sprintf("compact: %s, jurisdiction: %s", compact, jurisdiction),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownLicenseTypeError creates a non-retryable referential error.
func NewUnknownLicenseTypeError(compact, licenseType string) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeUnknownLicenseType,
		Message:   "License type is not recognized for the compact",
		Details:   fmt.Sprintf("compact: %s, licenseType: %s", compact, licenseType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderNotFoundError creates a non-retryable lookup error.
func NewProviderNotFoundError(compact, providerID string) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeProviderNotFound,
		Message:   "Provider is not known to the compact",
		Details:   fmt.Sprintf("compact: %s, providerId: %s", compact, providerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingFieldError creates a non-retryable input error.
func NewMissingFieldError(field string) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeMissingField,
		Message:   "Required field is missing",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedInputError creates a non-retryable parse error for job variables.
func NewMalformedInputError(err error) *StandardError {
	return &StandardError{
		Kind:      KindInvalidRequest,
		Code:      ErrCodeMalformedInput,
		Message:   "Job input could not be parsed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStoreThrottledError creates a retryable store throttle error.
func NewStoreThrottledError(err error) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeStoreThrottled,
		Message:   "Record store throttled the request",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStoreUnavailableError creates a retryable store access error.
func NewStoreUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeStoreUnavailable,
		Message:   "Record store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTransactionFailedError creates a retryable transactional write error.
func NewTransactionFailedError(providerID, jurisdiction string, err error) *StandardError {
	e := &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeTransactionFailed,
		Message:   "Atomic record write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	return e.WithMetadata("providerId", providerID).WithMetadata("jurisdiction", jurisdiction)
}

// NewVersionConflictError creates a retryable concurrent-modification error.
// Redelivery re-reads the provider and retries the write.
func NewVersionConflictError(providerID string, err error) *StandardError {
	e := &StandardError{
		Kind:      KindConsistency,
		Code:      ErrCodeProviderVersionConflict,
		Message:   "Provider record was modified concurrently",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	return e.WithMetadata("providerId", providerID)
}

// NewProvisioningFailedError creates a retryable provisioning error. The
// compensating delete has already run by the time this is returned.
func NewProvisioningFailedError(providerID, transactionID string, err error) *StandardError {
	e := &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeProvisioningFailed,
		Message:   "Privilege provisioning failed and was rolled back",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	return e.WithMetadata("providerId", providerID).WithMetadata("compactTransactionId", transactionID)
}

// NewEventPublishFailedError creates a retryable transport error.
func NewEventPublishFailedError(err error) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeEventPublishFailed,
		Message:   "Event bus rejected the publish call",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDeadlineExceededError creates a retryable timeout error.
func NewDeadlineExceededError(operation string, err error) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeDeadlineExceeded,
		Message:   "Operation exceeded its deadline",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryBudgetReachedError creates a retryable pagination budget error.
func NewQueryBudgetReachedError(calls int) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeQueryBudgetReached,
		Message:   "Paginated query exhausted its store call budget",
		Details:   fmt.Sprintf("storeCalls: %d", calls),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWriterNotOpenError creates a fail-fast programming error.
func NewWriterNotOpenError() *StandardError {
	return &StandardError{
		Kind:      KindProgramming,
		Code:      ErrCodeWriterNotOpen,
		Message:   "Batch writer used outside an open session",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAuditWriteFailedError creates a non-retryable audit archive error.
// Audit writes are best effort; callers log this instead of failing the job.
func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Kind:      KindInfrastructure,
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Audit archive insert failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Retry Mapping
// ==========================

// GetRetryCount returns the remaining retries to request when failing a job.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreThrottled,
		ErrCodeStoreUnavailable,
		ErrCodeTransactionFailed,
		ErrCodeProvisioningFailed,
		ErrCodeEventPublishFailed,
		ErrCodeProviderVersionConflict,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeDeadlineExceeded,
		ErrCodeQueryBudgetReached:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorKind":         string(stdErr.Kind),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from anywhere in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if goerrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsKind reports whether the chain contains a StandardError of the given kind.
func IsKind(err error, kind Kind) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Kind == kind
	}
	return false
}

// IsCode reports whether the chain contains a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code == code
	}
	return false
}

// IsRetryable reports whether redelivering the triggering unit of work can succeed.
func IsRetryable(err error) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Retryable
	}
	return false
}
