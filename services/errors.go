package services

import (
	"errors"
	"fmt"
)

// ErrorKind groups failures by what a caller should do next.
type ErrorKind string

const (
	// KindValidation: the input is wrong; nothing was changed.
	KindValidation ErrorKind = "validation"
	// KindNotFound: an unknown user, task or referral code; nothing was changed.
	KindNotFound ErrorKind = "not_found"
	// KindConflict: the effect already exists or would collide; state preserved.
	KindConflict ErrorKind = "conflict"
	// KindOracle: the external service failed or said no; safe to retry.
	KindOracle ErrorKind = "oracle"
	// KindPersistence: the store failed; the operation was abandoned.
	KindPersistence ErrorKind = "persistence"
)

const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeTaskNotFound       = "TASK_NOT_FOUND"
	CodeHandleNotFound     = "HANDLE_NOT_FOUND"
	CodeAlreadyCompleted   = "ALREADY_COMPLETED"
	CodeDuplicateTarget    = "DUPLICATE_TARGET"
	CodeHandleTaken        = "HANDLE_TAKEN"
	CodeHandleMismatch     = "HANDLE_MISMATCH"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeOracleUnavailable  = "ORACLE_UNAVAILABLE"
	CodePersistence        = "PERSISTENCE_ERROR"
)

// ServiceError is the tagged result every engine returns on failure.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches on Code so the sentinels below work with errors.Is.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether repeating the same call may succeed.
func (e *ServiceError) Retryable() bool {
	return e.Kind == KindOracle || e.Kind == KindPersistence
}

var (
	ErrUserNotFound       = &ServiceError{Kind: KindNotFound, Code: CodeUserNotFound, Message: "user not found"}
	ErrTaskNotFound       = &ServiceError{Kind: KindNotFound, Code: CodeTaskNotFound, Message: "task not found"}
	ErrHandleNotFound     = &ServiceError{Kind: KindNotFound, Code: CodeHandleNotFound, Message: "external handle not found"}
	ErrAlreadyCompleted   = &ServiceError{Kind: KindConflict, Code: CodeAlreadyCompleted, Message: "task already completed"}
	ErrDuplicateTarget    = &ServiceError{Kind: KindConflict, Code: CodeDuplicateTarget, Message: "another task already uses this verification target"}
	ErrHandleTaken        = &ServiceError{Kind: KindConflict, Code: CodeHandleTaken, Message: "external handle is linked to another user"}
	ErrHandleMismatch     = &ServiceError{Kind: KindConflict, Code: CodeHandleMismatch, Message: "user is already linked to a different external handle"}
	ErrVerificationFailed = &ServiceError{Kind: KindOracle, Code: CodeVerificationFailed, Message: "follow could not be verified"}
)

func validationError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindValidation, Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func persistenceError(op string, err error) *ServiceError {
	return &ServiceError{Kind: KindPersistence, Code: CodePersistence, Message: op, Err: err}
}

func oracleError(code, msg string, err error) *ServiceError {
	return &ServiceError{Kind: KindOracle, Code: code, Message: msg, Err: err}
}

// withCause returns a copy of a sentinel carrying the underlying error.
func withCause(sentinel *ServiceError, err error) *ServiceError {
	cp := *sentinel
	cp.Err = err
	return &cp
}

// KindOf extracts the ErrorKind of err, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
