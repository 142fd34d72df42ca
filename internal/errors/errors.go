package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is the stable, client-facing name of a failure.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrInvalidTree    ErrorCode = "INVALID_TREE"
	ErrCancelled      ErrorCode = "CANCELLED"
	ErrInternal       ErrorCode = "INTERNAL"
)

// HTTP-style status per code. 499 is nginx's "client closed request".
var statusByCode = map[ErrorCode]int{
	ErrInvalidRequest: 400,
	ErrNotFound:       404,
	ErrFileNotFound:   404,
	ErrConflict:       409,
	ErrInvalidTree:    422,
	ErrCancelled:      499,
	ErrInternal:       500,
}

// KinoError is the error every ops call returns. The MCP layer serialises Code,
// Message and Details; the web layer maps Status onto the response.
type KinoError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

func newError(code ErrorCode, msg string, details map[string]any) *KinoError {
	return &KinoError{Code: code, Status: statusByCode[code], Message: msg, Details: details}
}

func (e *KinoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause of an INTERNAL error to errors.Is and errors.As.
func (e *KinoError) Unwrap() error { return e.cause }

// NewInvalidRequest reports a malformed or out-of-range argument.
func NewInvalidRequest(msg string) *KinoError {
	return newError(ErrInvalidRequest, msg, nil)
}

// NewNotFound reports a missing script, node, resource, task or version.
func NewNotFound(kind, identifier string) *KinoError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found: %s", kind, identifier),
		map[string]any{"kind": kind, "identifier": identifier})
}

// NewFileNotFound reports an import path that does not exist.
func NewFileNotFound(path string) *KinoError {
	return newError(ErrFileNotFound, fmt.Sprintf("file not found: %s", path),
		map[string]any{"path": path})
}

func NewConflict(msg string) *KinoError {
	return newError(ErrConflict, msg, nil)
}

// NewInvalidTree reports a mutation that would break Act → Scene → Beat nesting.
func NewInvalidTree(msg string) *KinoError {
	return newError(ErrInvalidTree, msg, nil)
}

// NewCancelled reports that ctx ended while op was running.
func NewCancelled(op string) *KinoError {
	return newError(ErrCancelled, op+" cancelled", map[string]any{"operation": op})
}

// NewInternal wraps an unexpected failure. The message is the cause's text and
// stays server-side; MCP clients only see "internal error".
func NewInternal(err error) *KinoError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	e := newError(ErrInternal, msg, nil)
	e.cause = err
	return e
}

// Is reports whether err is, or wraps, a KinoError with the given code.
func Is(err error, code ErrorCode) bool {
	var kErr *KinoError
	return stderrors.As(err, &kErr) && kErr.Code == code
}

// From returns the KinoError in err's chain, wrapping anything else as INTERNAL.
// It returns nil for a nil err.
func From(err error) *KinoError {
	if err == nil {
		return nil
	}
	var kErr *KinoError
	if stderrors.As(err, &kErr) {
		return kErr
	}
	return NewInternal(err)
}
