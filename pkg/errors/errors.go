/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"errors"
	"fmt"
)

// Error codes surfaced in tool responses. Every failure leaving the
// dispatcher carries exactly one of these.
const (
	CodeInvalidPayload   = "invalid_payload"
	CodeInvalidState     = "invalid_state"
	CodeRevisionMismatch = "invalid_state_revision_mismatch"
	CodeUnsupported      = "unsupported_format"
	CodeNotImplemented   = "not_implemented"
	CodeNoChange         = "no_change"
	CodeIO               = "io_error"
	CodeUnknown          = "unknown"
)

// Well-known machine-readable reasons carried in Details["reason"].
const (
	ReasonMissingAccountContext    = "missing_mcp_account_context"
	ReasonWorkspaceContextMismatch = "mcp_workspace_context_mismatch"
	ReasonProjectLocked            = "project_locked"
	ReasonForbiddenWorkspace       = "forbidden_workspace"
	ReasonForbiddenProjectWrite    = "forbidden_workspace_project_write"
	ReasonForbiddenFolderWrite     = "forbidden_workspace_folder_write"
	ReasonForbiddenProjectRead     = "forbidden_workspace_project_read"
	ReasonForbiddenFolderRead      = "forbidden_workspace_folder_read"
	ReasonWorkspaceNotFound        = "workspace_not_found"
	ReasonLockAcquireTimeout       = "lock_acquire_timeout"
	ReasonStateConflict            = "state_conflict"
)

// Error is the gateway error type. It carries the machine-readable code,
// a human message, an optional remediation hint, structured details, and
// the wrapped inner error.
type Error struct {
	Code       string
	Message    string
	Fix        string
	Details    map[string]any
	InnerError error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.InnerError == nil {
		return fmt.Sprintf("code %s. message %s", e.Code, e.Message)
	}
	return fmt.Sprintf("code %s. message %s: %s", e.Code, e.Message, e.InnerError.Error())
}

// Unwrap exposes the inner error to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.InnerError
}

// WithMessage sets the error message and returns the Error instance for chaining.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithFix sets the remediation hint and returns the Error instance for chaining.
func (e *Error) WithFix(fix string) *Error {
	e.Fix = fix
	return e
}

// WithError sets the inner error and returns the Error instance for chaining.
func (e *Error) WithError(err error) *Error {
	e.InnerError = err
	return e
}

// WithReason sets Details["reason"] and returns the Error instance for chaining.
func (e *Error) WithReason(reason string) *Error {
	return e.WithDetail("reason", reason)
}

// WithDetail sets one structured detail and returns the Error instance for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewInvalidPayload reports a shape or constraint violation in a request payload.
func NewInvalidPayload(message string) *Error {
	return newError(CodeInvalidPayload, message)
}

// NewInvalidState reports a failed precondition: no active project, lock held,
// authorization denied, missing MCP context, unsupported in profile.
func NewInvalidState(message string) *Error {
	return newError(CodeInvalidState, message)
}

// NewRevisionMismatch reports a failed ifRevision guard. Clients retry on it.
func NewRevisionMismatch(expected, actual string) *Error {
	return newError(CodeRevisionMismatch,
		fmt.Sprintf("project revision mismatch: expected %s, current %s", expected, actual)).
		WithDetail("expectedRevision", expected).
		WithDetail("currentRevision", actual).
		WithFix("Re-read the project state and retry with the current revision")
}

// NewUnsupportedFormat reports that the backend or codec is incapable of the
// requested format.
func NewUnsupportedFormat(message string) *Error {
	return newError(CodeUnsupported, message)
}

// NewNotImplemented reports a tool the backend does not implement.
func NewNotImplemented(message string) *Error {
	return newError(CodeNotImplemented, message)
}

// NewNoChange reports an operation that would not change anything.
func NewNoChange(message string) *Error {
	return newError(CodeNoChange, message)
}

// NewIOError reports a port (repository, blob store, transport) failure.
func NewIOError(err error) *Error {
	msg := "io failure"
	if err != nil {
		msg = err.Error()
	}
	return newError(CodeIO, msg).WithError(err)
}

// NewUnknown is the catch-all. It must not leak stack traces to clients.
func NewUnknown(message string) *Error {
	return newError(CodeUnknown, message)
}

// AsError extracts an *Error from err, or wraps err as unknown.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnknown(err.Error()).WithError(err)
}

// CodeOf returns the code of err, or CodeUnknown for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ReasonOf returns Details["reason"] when present.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Details != nil {
		if r, ok := e.Details["reason"].(string); ok {
			return r
		}
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
