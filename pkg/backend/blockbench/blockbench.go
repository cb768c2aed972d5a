/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package blockbench registers the desktop editor backend. The headless
// gateway has no editor bridge, so every tool reports not_implemented and
// health reports unavailable; the kind stays registered so clients get a
// stable error instead of an unknown-backend failure.
package blockbench

import (
	"context"
	"fmt"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// BackendKind identifies this backend in the registry.
const BackendKind = "blockbench"

// Backend is the unavailable desktop-editor stub.
type Backend struct{}

// New builds the stub backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Kind() string {
	return BackendKind
}

func (b *Backend) GetHealth(_ context.Context) backend.Health {
	return backend.Health{
		Kind:         BackendKind,
		Availability: backend.AvailabilityUnavailable,
		Version:      "",
		Details: map[string]any{
			"reason": "no editor bridge connected",
		},
	}
}

func (b *Backend) HandleTool(_ context.Context, name string, _ types.Payload, _ types.SessionContext) types.ToolResponse {
	return types.FailResponse(gatewayerrors.NewNotImplemented(
		fmt.Sprintf("tool %s requires a connected desktop editor", name)).
		WithFix("Use the engine backend or connect an editor bridge"))
}
