package automation

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// Error codes used across the automation layer. Tests and API clients match
// on these, never on message text.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnknownActionType  = "UNKNOWN_ACTION_TYPE"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
	CodeActionFailed       = "ACTION_FAILED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodePersistenceFailed  = "PERSISTENCE_FAILED"
)

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func UnknownActionTypeError(key string, version *int) *AppError {
	msg := fmt.Sprintf("Unknown action type: %s", key)
	if version != nil {
		msg = fmt.Sprintf("Unknown action type: %s (version %d)", key, *version)
	}
	return &AppError{Code: CodeUnknownActionType, Status: 422, Message: msg}
}

func UnsupportedVersionError(key string, version int) *AppError {
	return &AppError{
		Code:    CodeUnsupportedVersion,
		Status:  422,
		Message: fmt.Sprintf("Action %s version %d has no migration path to the current schema", key, version),
	}
}

func ActionFailedError(key string, err error) *AppError {
	return &AppError{
		Code:    CodeActionFailed,
		Status:  500,
		Message: fmt.Sprintf("Action %s failed: %v", key, err),
	}
}

func PermissionDeniedError(msg string) *AppError {
	return &AppError{Code: CodePermissionDenied, Status: 403, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Status: 401, Message: msg}
}

func NotFoundError(what string) *AppError {
	return &AppError{Code: CodeNotFound, Status: 404, Message: fmt.Sprintf("%s not found", what)}
}

func PersistenceError(err error) *AppError {
	return &AppError{
		Code:    CodePersistenceFailed,
		Status:  500,
		Message: fmt.Sprintf("Persistence failure: %v", err),
	}
}

// CodeOf extracts the AppError code from an error chain, or "" if the error
// is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
