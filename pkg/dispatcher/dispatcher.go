/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package dispatcher is the single public entry point of the gateway. It
// turns one (toolName, payload, context) triple into exactly one ToolResponse
// with well-defined error codes and side-effect ordering.
package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/locks"
	"github.com/sigee-min/bbmcp-sub006/pkg/metrics"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/policy"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// projectIDKeys are the payload aliases accepted for the project id, in
// resolution order.
var projectIDKeys = []string{"projectId", "project_id", "projectName", "project", "name"}

// Options wires a Dispatcher.
type Options struct {
	Registry         *backend.Registry
	Locks            *locks.Manager
	Policy           *policy.Service
	Store            *pipeline.Store
	WorkspaceRepo    repository.WorkspaceRepository
	DefaultBackend   string
	DefaultTenant    string
	DefaultProjectID string
}

// Dispatcher validates, authorizes, locks and delegates tool calls.
type Dispatcher struct {
	registry         *backend.Registry
	locks            *locks.Manager
	policy           *policy.Service
	store            *pipeline.Store
	workspaceRepo    repository.WorkspaceRepository
	defaultBackend   string
	defaultTenant    string
	defaultProjectID string
}

// New builds a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.DefaultBackend == "" {
		opts.DefaultBackend = "engine"
	}
	if opts.DefaultTenant == "" {
		opts.DefaultTenant = "default"
	}
	if opts.DefaultProjectID == "" {
		opts.DefaultProjectID = "default-project"
	}
	return &Dispatcher{
		registry:         opts.Registry,
		locks:            opts.Locks,
		policy:           opts.Policy,
		store:            opts.Store,
		workspaceRepo:    opts.WorkspaceRepo,
		defaultBackend:   opts.DefaultBackend,
		defaultTenant:    opts.DefaultTenant,
		defaultProjectID: opts.DefaultProjectID,
	}
}

// Handle executes one tool call. It never panics outward and never returns a
// naked error: every outcome is a ToolResponse envelope.
func (d *Dispatcher) Handle(ctx context.Context, toolName string, payload types.Payload, mcpCtx types.MCPContext) types.ToolResponse {
	response, err := d.handle(ctx, toolName, payload, mcpCtx)
	if err != nil {
		typed := gatewayerrors.AsError(err)
		metrics.DispatchGuardFailures.WithLabelValues(toolName, typed.Code, gatewayerrors.ReasonOf(typed)).Inc()
		klog.Infof("tool %s rejected: code=%s reason=%s account=%s",
			toolName, typed.Code, gatewayerrors.ReasonOf(typed), mcpCtx.AccountID)
		return types.FailResponse(typed)
	}
	return response
}

func (d *Dispatcher) handle(ctx context.Context, toolName string, payload types.Payload, mcpCtx types.MCPContext) (types.ToolResponse, error) {
	meta, known := types.LookupTool(toolName)
	if !known {
		return types.ToolResponse{}, gatewayerrors.NewInvalidPayload(fmt.Sprintf("unknown tool: %s", toolName))
	}
	if payload == nil {
		payload = types.Payload{}
	}

	if mcpCtx.AccountID == "" {
		return types.ToolResponse{}, gatewayerrors.NewInvalidState("The MCP session carries no account context").
			WithReason(gatewayerrors.ReasonMissingAccountContext)
	}
	if payloadWorkspace, ok := payload["workspaceId"].(string); ok &&
		payloadWorkspace != "" && payloadWorkspace != mcpCtx.WorkspaceID {
		return types.ToolResponse{}, gatewayerrors.NewInvalidPayload("payload workspaceId differs from the session workspace").
			WithReason(gatewayerrors.ReasonWorkspaceContextMismatch)
	}

	backendKind := d.defaultBackend
	if requested, ok := payload["backend"].(string); ok && requested != "" {
		backendKind = requested
	}
	be := d.registry.Resolve(backendKind)
	if be == nil {
		return types.ToolResponse{}, gatewayerrors.NewInvalidState(fmt.Sprintf(
			"Requested backend is unavailable. Registered backends: %s",
			strings.Join(d.registry.ListKinds(), ", ")))
	}

	projectID := d.resolveProjectID(payload)
	session := types.SessionContext{
		TenantID:    d.defaultTenant,
		ActorID:     mcpCtx.AccountID,
		WorkspaceID: mcpCtx.WorkspaceID,
		ProjectID:   projectID,
	}
	actor := policy.Actor{AccountID: mcpCtx.AccountID, SystemRoles: mcpCtx.SystemRoles}

	if meta.Mutating {
		return d.handleMutating(ctx, toolName, payload, mcpCtx, session, actor, be)
	}
	if meta.RequiresProject {
		folderPath, err := d.folderPath(ctx, mcpCtx.WorkspaceID, projectID)
		if err != nil {
			return types.ToolResponse{}, err
		}
		if err := d.policy.AuthorizeProjectRead(ctx, mcpCtx.WorkspaceID, folderPath, projectID, toolName, actor); err != nil {
			return types.ToolResponse{}, err
		}
	}
	return be.HandleTool(ctx, toolName, payload, session), nil
}

func (d *Dispatcher) handleMutating(ctx context.Context, toolName string, payload types.Payload,
	mcpCtx types.MCPContext, session types.SessionContext, actor policy.Actor, be backend.Backend) (types.ToolResponse, error) {
	folderPath, err := d.folderPath(ctx, mcpCtx.WorkspaceID, session.ProjectID)
	if err != nil {
		return types.ToolResponse{}, err
	}
	if err := d.policy.AuthorizeProjectWrite(ctx, mcpCtx.WorkspaceID, folderPath, session.ProjectID, toolName, actor); err != nil {
		return types.ToolResponse{}, err
	}

	agentID := "mcp:" + mcpCtx.SessionID
	if _, err := d.locks.AcquireProjectLock(mcpCtx.WorkspaceID, session.ProjectID, agentID, mcpCtx.SessionID); err != nil {
		if locks.IsHeld(err) {
			return types.ToolResponse{}, gatewayerrors.NewInvalidState("The project is locked by another session").
				WithReason(gatewayerrors.ReasonProjectLocked).
				WithError(err)
		}
		return types.ToolResponse{}, err
	}
	// The lock is released on every exit path; only this holder may drop it.
	defer d.locks.ReleaseProjectLock(mcpCtx.WorkspaceID, session.ProjectID, agentID, mcpCtx.SessionID)

	if err := d.checkRevisionGuard(ctx, payload, mcpCtx.WorkspaceID, session.ProjectID); err != nil {
		return types.ToolResponse{}, err
	}
	return be.HandleTool(ctx, toolName, payload, session), nil
}

// checkRevisionGuard enforces the optional ifRevision precondition.
func (d *Dispatcher) checkRevisionGuard(ctx context.Context, payload types.Payload, workspaceID, projectID string) error {
	raw, present := payload["ifRevision"]
	if !present {
		return nil
	}
	var expected string
	switch v := raw.(type) {
	case string:
		expected = v
	case float64:
		expected = strconv.FormatInt(int64(v), 10)
	case int:
		expected = strconv.Itoa(v)
	default:
		return gatewayerrors.NewInvalidPayload("ifRevision must be a string or number")
	}

	project, err := d.store.GetProject(ctx, workspaceID, projectID)
	if err != nil {
		return err
	}
	current := ""
	if project != nil {
		current = strconv.FormatInt(project.Revision, 10)
	}
	if expected != current {
		return gatewayerrors.NewRevisionMismatch(expected, current)
	}
	return nil
}

// folderPath reads the project's folder placement; unplaced projects resolve
// to the root-only path.
func (d *Dispatcher) folderPath(ctx context.Context, workspaceID, projectID string) ([]string, error) {
	path, err := d.workspaceRepo.GetProjectFolderPath(ctx, workspaceID, projectID)
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	if len(path) == 0 {
		path = []string{repository.RootFolderID}
	}
	return path, nil
}

func (d *Dispatcher) resolveProjectID(payload types.Payload) string {
	for _, key := range projectIDKeys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return d.defaultProjectID
}
