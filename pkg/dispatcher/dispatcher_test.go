/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package dispatcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	"github.com/sigee-min/bbmcp-sub006/pkg/backend/engine"
	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/locks"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/policy"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

type dispatchFixture struct {
	dispatcher *Dispatcher
	store      *pipeline.Store
	locks      *locks.Manager
	fake       *clock.Fake
}

// newDispatchFixture builds a gateway over in-memory stores with one
// workspace: acct-writer holds read+write at the root, acct-reader read only.
func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	ctx := context.Background()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	workspaceRepo := memory.NewWorkspaceRepository()
	assert.NilError(t, workspaceRepo.CreateWorkspace(ctx, &repository.Workspace{
		WorkspaceID: "ws-1", TenantID: "default", Name: "Studio",
		DefaultMemberRoleID: "role-reader"}))
	assert.NilError(t, workspaceRepo.UpsertRole(ctx, &repository.Role{
		WorkspaceID: "ws-1", RoleID: "role-writer", Name: "Writer",
		Permissions: []string{repository.PermFolderRead, repository.PermFolderWrite}}))
	assert.NilError(t, workspaceRepo.UpsertRole(ctx, &repository.Role{
		WorkspaceID: "ws-1", RoleID: "role-reader", Name: "Reader",
		Permissions: []string{repository.PermFolderRead}}))
	assert.NilError(t, workspaceRepo.UpsertMember(ctx, &repository.Member{
		WorkspaceID: "ws-1", AccountID: "acct-writer", RoleIDs: []string{"role-writer"}}))
	assert.NilError(t, workspaceRepo.UpsertMember(ctx, &repository.Member{
		WorkspaceID: "ws-1", AccountID: "acct-reader", RoleIDs: []string{"role-reader"}}))
	assert.NilError(t, workspaceRepo.UpsertAclRule(ctx, &repository.AclRule{
		WorkspaceID: "ws-1", RuleID: "acl-writer", FolderID: repository.RootFolderID,
		RoleIDs: []string{"role-writer"},
		Read:    repository.AclAllow, Write: repository.AclAllow}))
	assert.NilError(t, workspaceRepo.UpsertAclRule(ctx, &repository.AclRule{
		WorkspaceID: "ws-1", RuleID: "acl-reader", FolderID: repository.RootFolderID,
		RoleIDs: []string{"role-reader"},
		Read:    repository.AclAllow, Write: repository.AclInherit}))

	store := pipeline.NewStore(memory.NewProjectRepository(), pipeline.Options{
		TenantID:          "default",
		Clock:             fake,
		LockRetryInterval: time.Millisecond,
		LockTimeout:       200 * time.Millisecond,
	})
	lockManager := locks.NewManager(locks.DefaultIdleTTL, fake)
	d := New(Options{
		Registry:      backend.NewRegistry(engine.New(store, blob.NewMemoryStore())),
		Locks:         lockManager,
		Policy:        policy.NewService(workspaceRepo, policy.DefaultCacheTTL, fake),
		Store:         store,
		WorkspaceRepo: workspaceRepo,
	})
	return &dispatchFixture{dispatcher: d, store: store, locks: lockManager, fake: fake}
}

func writerContext() types.MCPContext {
	return types.MCPContext{
		SessionID:   "sess-writer",
		AccountID:   "acct-writer",
		WorkspaceID: "ws-1",
	}
}

func readerContext() types.MCPContext {
	return types.MCPContext{
		SessionID:   "sess-reader",
		AccountID:   "acct-reader",
		WorkspaceID: "ws-1",
	}
}

func reasonOf(resp types.ToolResponse) string {
	if resp.Error == nil || resp.Error.Details == nil {
		return ""
	}
	reason, _ := resp.Error.Details["reason"].(string)
	return reason
}

func TestUnknownToolIsRejected(t *testing.T) {
	fx := newDispatchFixture(t)

	resp := fx.dispatcher.Handle(context.Background(), "teleport_model", types.Payload{}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeInvalidPayload)
}

func TestMissingAccountContext(t *testing.T) {
	fx := newDispatchFixture(t)

	mcpCtx := writerContext()
	mcpCtx.AccountID = ""
	resp := fx.dispatcher.Handle(context.Background(), types.ToolListCapabilities, types.Payload{}, mcpCtx)
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeInvalidState)
	assert.Equal(t, reasonOf(resp), gatewayerrors.ReasonMissingAccountContext)
}

func TestPayloadWorkspaceMismatch(t *testing.T) {
	fx := newDispatchFixture(t)

	resp := fx.dispatcher.Handle(context.Background(), types.ToolEnsureProject,
		types.Payload{"workspaceId": "ws-other"}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeInvalidPayload)
	assert.Equal(t, reasonOf(resp), gatewayerrors.ReasonWorkspaceContextMismatch)

	// A matching workspaceId in the payload is redundant but accepted.
	resp = fx.dispatcher.Handle(context.Background(), types.ToolEnsureProject,
		types.Payload{"workspaceId": "ws-1", "projectId": "p-1"}, writerContext())
	assert.Equal(t, resp.Ok, true)
}

func TestUnknownBackendIsUnavailable(t *testing.T) {
	fx := newDispatchFixture(t)

	resp := fx.dispatcher.Handle(context.Background(), types.ToolListCapabilities,
		types.Payload{"backend": "holodeck"}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeInvalidState)
	assert.Assert(t, strings.Contains(resp.Error.Message, "Registered backends: engine"))
}

func TestReaderCannotMutate(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	resp := fx.dispatcher.Handle(ctx, types.ToolEnsureProject,
		types.Payload{"projectId": "p-1"}, writerContext())
	assert.Equal(t, resp.Ok, true)

	resp = fx.dispatcher.Handle(ctx, types.ToolAddCube,
		types.Payload{"projectId": "p-1", "id": "body"}, readerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, reasonOf(resp), gatewayerrors.ReasonForbiddenFolderWrite)

	// Read-only tools stay open to the reader.
	resp = fx.dispatcher.Handle(ctx, types.ToolGetProjectState,
		types.Payload{"projectId": "p-1"}, readerContext())
	assert.Equal(t, resp.Ok, true)
}

func TestNonMemberIsForbidden(t *testing.T) {
	fx := newDispatchFixture(t)

	mcpCtx := types.MCPContext{SessionID: "sess-x", AccountID: "acct-stranger", WorkspaceID: "ws-1"}
	resp := fx.dispatcher.Handle(context.Background(), types.ToolEnsureProject,
		types.Payload{"projectId": "p-1"}, mcpCtx)
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, reasonOf(resp), gatewayerrors.ReasonForbiddenProjectWrite)
}

func TestUnknownWorkspace(t *testing.T) {
	fx := newDispatchFixture(t)

	mcpCtx := writerContext()
	mcpCtx.WorkspaceID = "ws-ghost"
	resp := fx.dispatcher.Handle(context.Background(), types.ToolEnsureProject,
		types.Payload{"projectId": "p-1"}, mcpCtx)
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, reasonOf(resp), gatewayerrors.ReasonWorkspaceNotFound)
}

func TestSystemRoleBypassesMembership(t *testing.T) {
	fx := newDispatchFixture(t)

	mcpCtx := types.MCPContext{
		SessionID:   "sess-ops",
		AccountID:   "acct-ops",
		WorkspaceID: "ws-1",
		SystemRoles: []string{types.SystemRoleAdmin},
	}
	resp := fx.dispatcher.Handle(context.Background(), types.ToolEnsureProject,
		types.Payload{"projectId": "p-ops"}, mcpCtx)
	assert.Equal(t, resp.Ok, true)
}

func TestMutatingCallHoldsAndReleasesLock(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	resp := fx.dispatcher.Handle(ctx, types.ToolEnsureProject,
		types.Payload{"projectId": "p-1"}, writerContext())
	assert.Equal(t, resp.Ok, true)
	assert.Assert(t, fx.locks.GetProjectLock("ws-1", "p-1") == nil)
}

func TestProjectLockedByAnotherSession(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	resp := fx.dispatcher.Handle(ctx, types.ToolEnsureProject,
		types.Payload{"projectId": "p-1"}, writerContext())
	assert.Equal(t, resp.Ok, true)

	_, err := fx.locks.AcquireProjectLock("ws-1", "p-1", "mcp:sess-other", "sess-other")
	assert.NilError(t, err)

	resp = fx.dispatcher.Handle(ctx, types.ToolAddCube,
		types.Payload{"projectId": "p-1", "id": "body"}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeInvalidState)
	assert.Equal(t, reasonOf(resp), gatewayerrors.ReasonProjectLocked)

	// The rejected caller must not have stolen or dropped the lock.
	held := fx.locks.GetProjectLock("ws-1", "p-1")
	assert.Assert(t, held != nil)
	assert.Equal(t, held.OwnerAgentID, "mcp:sess-other")

	// Once the holder goes idle past the TTL the writer proceeds.
	fx.fake.Advance(locks.DefaultIdleTTL + time.Millisecond)
	resp = fx.dispatcher.Handle(ctx, types.ToolAddCube,
		types.Payload{"projectId": "p-1", "id": "body"}, writerContext())
	assert.Equal(t, resp.Ok, true)
}

func TestRevisionGuard(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	resp := fx.dispatcher.Handle(ctx, types.ToolEnsureProject,
		types.Payload{"projectId": "p-1"}, writerContext())
	assert.Equal(t, resp.Ok, true)

	resp = fx.dispatcher.Handle(ctx, types.ToolAddCube,
		types.Payload{"projectId": "p-1", "id": "body", "ifRevision": "1"}, writerContext())
	assert.Equal(t, resp.Ok, true)

	resp = fx.dispatcher.Handle(ctx, types.ToolAddCube,
		types.Payload{"projectId": "p-1", "id": "head", "ifRevision": 9}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeRevisionMismatch)
	assert.Equal(t, resp.Error.Details["expectedRevision"], "9")
	assert.Equal(t, resp.Error.Details["currentRevision"], "2")

	resp = fx.dispatcher.Handle(ctx, types.ToolAddCube,
		types.Payload{"projectId": "p-1", "id": "head", "ifRevision": true}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeInvalidPayload)
}

func TestProjectIDAliases(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	for _, key := range []string{"projectId", "project_id", "projectName", "project", "name"} {
		resp := fx.dispatcher.Handle(ctx, types.ToolEnsureProject,
			types.Payload{key: "p-" + key}, writerContext())
		assert.Equal(t, resp.Ok, true)

		project, err := fx.store.GetProject(ctx, "ws-1", "p-"+key)
		assert.NilError(t, err)
		assert.Assert(t, project != nil)
	}
}

func TestDefaultProjectIDFallback(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	resp := fx.dispatcher.Handle(ctx, types.ToolEnsureProject, nil, writerContext())
	assert.Equal(t, resp.Ok, true)
	data, ok := resp.Data.(map[string]any)
	assert.Assert(t, ok)
	assert.Equal(t, data["projectId"], "default-project")
}

func TestBackendFailureKeepsEnvelope(t *testing.T) {
	fx := newDispatchFixture(t)

	// Tool-level failures ride inside the envelope; the dispatcher adds no
	// guard of its own.
	resp := fx.dispatcher.Handle(context.Background(), types.ToolExport,
		types.Payload{"projectId": "p-never", "format": "obj"}, writerContext())
	assert.Equal(t, resp.Ok, false)
	assert.Equal(t, resp.Error.Code, gatewayerrors.CodeUnsupported)
}
