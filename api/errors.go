// Package api
// Author: momentics <momentics@gmail.com>
//
// Kernel result codes and error handling utilities. The trap layer returns
// raw result words; these helpers are for callers that want to interpret them.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrNoKernel = errors.New("no kernel installed")
)

// ReturnCode is the signed view of a command or subscribe result word.
// Non-negative values are success, possibly carrying a value.
type ReturnCode int

const (
	Success      ReturnCode = 0
	Fail         ReturnCode = -1
	EBusy        ReturnCode = -2
	EAlready     ReturnCode = -3
	EOff         ReturnCode = -4
	EReserve     ReturnCode = -5
	EInval       ReturnCode = -6
	ESize        ReturnCode = -7
	ECancel      ReturnCode = -8
	ENoMem       ReturnCode = -9
	ENoSupport   ReturnCode = -10
	ENoDevice    ReturnCode = -11
	EUninstalled ReturnCode = -12
	ENoAck       ReturnCode = -13
)

var codeNames = map[ReturnCode]string{
	Success:      "SUCCESS",
	Fail:         "FAIL",
	EBusy:        "EBUSY",
	EAlready:     "EALREADY",
	EOff:         "EOFF",
	EReserve:     "ERESERVE",
	EInval:       "EINVAL",
	ESize:        "ESIZE",
	ECancel:      "ECANCEL",
	ENoMem:       "ENOMEM",
	ENoSupport:   "ENOSUPPORT",
	ENoDevice:    "ENODEVICE",
	EUninstalled: "EUNINSTALLED",
	ENoAck:       "ENOACK",
}

// Code reinterprets a raw result word.
func Code(word uintptr) ReturnCode { return ReturnCode(int(word)) }

// Word encodes the code as a result register value.
func (c ReturnCode) Word() uintptr { return uintptr(int(c)) }

func (c ReturnCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	if c > 0 {
		return fmt.Sprintf("SUCCESS(%d)", int(c))
	}
	return fmt.Sprintf("ERROR(%d)", int(c))
}

// IsSuccess reports whether c carries no error.
func (c ReturnCode) IsSuccess() bool { return c >= 0 }

// Err returns nil on success, otherwise a structured *Error.
func (c ReturnCode) Err() error {
	if c.IsSuccess() {
		return nil
	}
	return NewError(c, c.String())
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ReturnCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is matches another *Error by code, so errors.Is(err, ENoDevice.Err()) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ReturnCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
