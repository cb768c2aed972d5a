/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"gotest.tools/assert"
)

func TestErrorChaining(t *testing.T) {
	inner := stderrors.New("disk full")
	err := NewInvalidState("The project is locked by another session").
		WithReason(ReasonProjectLocked).
		WithFix("Retry after the holder releases the lock").
		WithError(inner)

	assert.Equal(t, err.Code, CodeInvalidState)
	assert.Equal(t, ReasonOf(err), ReasonProjectLocked)
	assert.Equal(t, err.Fix, "Retry after the holder releases the lock")
	assert.Assert(t, stderrors.Is(err, inner))
	assert.Equal(t, err.Error(), "code invalid_state. message The project is locked by another session: disk full")
}

func TestCodeOfUnwrapsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("claim failed: %w", NewInvalidPayload("id is required"))
	assert.Equal(t, CodeOf(err), CodeInvalidPayload)
	assert.Assert(t, IsCode(err, CodeInvalidPayload))
	assert.Assert(t, !IsCode(err, CodeInvalidState))
}

func TestAsErrorWrapsForeignErrors(t *testing.T) {
	foreign := stderrors.New("connection reset")
	wrapped := AsError(foreign)
	assert.Equal(t, wrapped.Code, CodeUnknown)
	assert.Equal(t, wrapped.Message, "connection reset")
	assert.Assert(t, stderrors.Is(wrapped, foreign))

	typed := NewNoChange("nothing to do")
	assert.Equal(t, AsError(typed), typed)
}

func TestRevisionMismatchDetails(t *testing.T) {
	err := NewRevisionMismatch("3", "5")
	assert.Equal(t, err.Code, CodeRevisionMismatch)
	assert.Equal(t, err.Details["expectedRevision"], "3")
	assert.Equal(t, err.Details["currentRevision"], "5")
	assert.Equal(t, err.Message, "project revision mismatch: expected 3, current 5")
	assert.Assert(t, err.Fix != "")
}

func TestIOErrorTakesInnerMessage(t *testing.T) {
	inner := stderrors.New("s3: bucket missing")
	err := NewIOError(inner)
	assert.Equal(t, err.Code, CodeIO)
	assert.Equal(t, err.Message, "s3: bucket missing")

	nilWrapped := NewIOError(nil)
	assert.Equal(t, nilWrapped.Message, "io failure")
}

func TestReasonOfForeignError(t *testing.T) {
	assert.Equal(t, ReasonOf(stderrors.New("plain")), "")
	assert.Equal(t, CodeOf(stderrors.New("plain")), CodeUnknown)
}
