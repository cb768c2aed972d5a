/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package types

import (
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
)

// Payload is a schemaless tool payload as it arrives from the transport.
type Payload map[string]any

// ToolError is the wire form of a failed tool call.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fix     string         `json:"fix,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ToolResponse is the envelope every tool call resolves to: {ok, data|error}.
type ToolResponse struct {
	Ok    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ToolError `json:"error,omitempty"`
}

// OkResponse wraps data in a successful envelope.
func OkResponse(data any) ToolResponse {
	return ToolResponse{Ok: true, Data: data}
}

// FailResponse converts err into a failed envelope. Foreign errors surface as
// code "unknown" without leaking internals.
func FailResponse(err error) ToolResponse {
	e := gatewayerrors.AsError(err)
	return ToolResponse{
		Ok: false,
		Error: &ToolError{
			Code:    e.Code,
			Message: e.Message,
			Fix:     e.Fix,
			Details: e.Details,
		},
	}
}
