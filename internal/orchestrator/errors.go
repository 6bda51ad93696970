package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorCode classifies orchestrator failures for transport adapters.
type ErrorCode string

const (
	ErrorValidation   ErrorCode = "VALIDATION_ERROR"
	ErrorUserNotFound ErrorCode = "USER_NOT_FOUND"
	ErrorLLMRun       ErrorCode = "LLM_RUN_FAILURE"
	ErrorStore        ErrorCode = "STORE_ERROR"
)

// Error is a coded orchestrator error.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("orchestrator: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("orchestrator: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the ErrorCode from an error chain, or ErrorStore when
// the error is not a coded orchestrator error.
func CodeOf(err error) ErrorCode {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr.Code
	}
	return ErrorStore
}
