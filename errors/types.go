package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Dispatch errors
	ErrCodeDispatchInProgress  ErrorCode = "DISPATCH_IN_PROGRESS"
	ErrCodeUnknownToken        ErrorCode = "UNKNOWN_TOKEN"
	ErrCodeCircularWait        ErrorCode = "CIRCULAR_WAIT"
	ErrCodeWaitOutsideDispatch ErrorCode = "WAIT_OUTSIDE_DISPATCH"
	ErrCodeInvalidAction       ErrorCode = "INVALID_ACTION"

	// Middleware transport errors
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"
	ErrCodeRPCError     ErrorCode = "RPC_ERROR"
	ErrCodeRPCTimeout   ErrorCode = "RPC_TIMEOUT"

	// Command execution errors
	ErrCodeCommandFailed ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// MWError represents a structured error with context
type MWError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *MWError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *MWError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *MWError) WithDetail(key string, value interface{}) *MWError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *MWError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new MWError
func New(code ErrorCode, message string) *MWError {
	return &MWError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an MWError
func Wrap(err error, code ErrorCode, message string) *MWError {
	return &MWError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific MWError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, walking the wrap chain
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	mwErr, ok := err.(*MWError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return mwErr.Code
}
