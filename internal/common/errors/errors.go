package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeModelLoadFailed      ErrorCode = "MODEL_LOAD_FAILED"

	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMQuotaExceeded     ErrorCode = "LLM_QUOTA_EXCEEDED"
	ErrCodeLLMMalformedResponse ErrorCode = "LLM_MALFORMED_RESPONSE"
	ErrCodeLLMUnavailable       ErrorCode = "LLM_UNAVAILABLE"

	ErrCodeRetrievalFailed ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeSearchTimeout   ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound   ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeTemplateNotFound         ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"
	ErrCodeBusinessDataInvalid      ErrorCode = "BUSINESS_DATA_INVALID"

	ErrCodeCommitFailed     ErrorCode = "COMMIT_FAILED"
	ErrCodeCommitTimeout    ErrorCode = "COMMIT_TIMEOUT"
	ErrCodeSlotUnavailable  ErrorCode = "SLOT_UNAVAILABLE"
	ErrCodeNotificationFail ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	ErrCodeSessionBusy    ErrorCode = "SESSION_BUSY"
	ErrCodeSessionEnded   ErrorCode = "SESSION_ENDED"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeClassificationFailed, "Intent classification failed", err.Error(), false)
}

func NewModelLoadFailedError(modelName string, err error) *StandardError {
	return newError(ErrCodeModelLoadFailed, "Intent model could not be loaded",
		fmt.Sprintf("model: %s, error: %s", modelName, err.Error()), false)
}

func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Generative model call timed out", "", true)
}

func NewLLMQuotaExceededError(details string) *StandardError {
	return newError(ErrCodeLLMQuotaExceeded, "Generative model quota exceeded", details, true)
}

func NewLLMMalformedResponseError(details string) *StandardError {
	return newError(ErrCodeLLMMalformedResponse, "Generative model returned a malformed response", details, false)
}

func NewLLMUnavailableError(err error) *StandardError {
	return newError(ErrCodeLLMUnavailable, "Generative model unavailable", err.Error(), true)
}

func NewRetrievalFailedError(err error) *StandardError {
	return newError(ErrCodeRetrievalFailed, "Passage retrieval failed", err.Error(), true)
}

func NewSearchTimeoutError(index string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Search query timeout", fmt.Sprintf("index: %s", index), true)
}

func NewIndexNotFoundError(index string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Search index not found", fmt.Sprintf("index: %s", index), false)
}

func NewTemplateNotFoundError(key string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found in registry", fmt.Sprintf("template: %s", key), false)
}

func NewTemplateValidationFailedError(details string) *StandardError {
	return newError(ErrCodeTemplateValidationFailed, "Template registry validation failed", details, false)
}

func NewBusinessDataInvalidError(details string) *StandardError {
	return newError(ErrCodeBusinessDataInvalid, "Business data failed validation", details, false)
}

func NewCommitFailedError(kind string, err error) *StandardError {
	return newError(ErrCodeCommitFailed, "Order/reservation commit failed",
		fmt.Sprintf("kind: %s, error: %s", kind, err.Error()), true)
}

func NewCommitTimeoutError(kind string) *StandardError {
	return newError(ErrCodeCommitTimeout, "Order/reservation commit timed out", fmt.Sprintf("kind: %s", kind), true)
}

func NewSlotUnavailableError(slot string) *StandardError {
	return newError(ErrCodeSlotUnavailable, "Reservation slot is fully booked", fmt.Sprintf("slot: %s", slot), false)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFail, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", query, err.Error()), true)
}

func NewSessionBusyError(sessionID string) *StandardError {
	return newError(ErrCodeSessionBusy, "Session is processing another turn", fmt.Sprintf("session: %s", sessionID), true)
}

func NewSessionEndedError(sessionID string) *StandardError {
	return newError(ErrCodeSessionEnded, "Session ended while the turn was in flight", fmt.Sprintf("session: %s", sessionID), false)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// GetRetryCount reports how many times a caller may retry an operation that
// failed with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeCommitFailed,
		ErrCodeRetrievalFailed:
		return 3
	case ErrCodeCommitTimeout,
		ErrCodeSearchTimeout,
		ErrCodeLLMUnavailable:
		return 2
	case ErrCodeLLMTimeout, ErrCodeLLMQuotaExceeded, ErrCodeSessionBusy:
		return 1
	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "MODEL"):
		return "AI"
	case strings.Contains(codeStr, "RETRIEVAL") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "BUSINESS_DATA"):
		return "CONTENT"
	case strings.Contains(codeStr, "COMMIT") || strings.Contains(codeStr, "SLOT"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code onto the status the API adapter returns.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeSessionBusy:
		return http.StatusConflict
	case ErrCodeSessionEnded:
		return http.StatusGone
	case ErrCodeTemplateNotFound, ErrCodeIndexNotFound:
		return http.StatusNotFound
	case ErrCodeLLMTimeout, ErrCodeCommitTimeout, ErrCodeSearchTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeLLMQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
