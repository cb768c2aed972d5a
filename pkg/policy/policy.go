/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package policy

import (
	"context"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Actor is the authenticated principal of one request.
type Actor struct {
	AccountID   string
	SystemRoles []string
}

// IsSystemManager reports whether the actor bypasses all workspace checks.
func (a Actor) IsSystemManager() bool {
	for _, role := range a.SystemRoles {
		if role == types.SystemRoleAdmin || role == types.SystemRoleCSAdmin {
			return true
		}
	}
	return false
}

// FolderAccess is the resolved read/write outcome of the ACL walk.
type FolderAccess struct {
	Read  bool
	Write bool
}

// effect tristate carried along the folder walk.
type channelState int

const (
	channelInherit channelState = iota
	channelAllow
	channelDeny
)

// resolveFolderAccess walks the folder path from root outward, taking the
// union of effects across the actor's roles at each level: an allow from any
// held role grants the channel even when another role denies it. A level
// that resolves to a non-inherit effect replaces the outcome carried from
// the parent, so a deeper allow restores access under a denied ancestor;
// inherit keeps the parent outcome. Workspace admins resolve to full access
// before any walk.
func resolveFolderAccess(snapshot *Snapshot, roleIDs []string, folderPath []string) FolderAccess {
	held := map[string]bool{}
	for _, roleID := range roleIDs {
		held[roleID] = true
		if snapshot.WorkspaceAdminRoleIDs[roleID] {
			return FolderAccess{Read: true, Write: true}
		}
	}
	if len(folderPath) == 0 {
		folderPath = []string{repository.RootFolderID}
	}

	read, write := channelInherit, channelInherit
	for _, folderID := range folderPath {
		levelRead, levelWrite := channelInherit, channelInherit
		for _, rule := range snapshot.AclRules {
			if rule.FolderID != folderID || !mentionsAny(rule.RoleIDs, held) {
				continue
			}
			levelRead = unionEffect(levelRead, rule.Read)
			levelWrite = unionEffect(levelWrite, rule.Write)
		}
		if levelRead != channelInherit {
			read = levelRead
		}
		if levelWrite != channelInherit {
			write = levelWrite
		}
	}
	return FolderAccess{Read: read == channelAllow, Write: write == channelAllow}
}

// unionEffect folds one rule effect into the level outcome; allow wins over
// deny within a level.
func unionEffect(current channelState, effect repository.AclEffect) channelState {
	switch effect {
	case repository.AclAllow:
		return channelAllow
	case repository.AclDeny:
		if current != channelAllow {
			return channelDeny
		}
	}
	return current
}

func mentionsAny(ruleRoleIDs []string, held map[string]bool) bool {
	for _, roleID := range ruleRoleIDs {
		if held[roleID] {
			return true
		}
	}
	return false
}

// ResolveRolePermissions returns the account's effective permission set at
// the workspace root.
func (s *Service) ResolveRolePermissions(ctx context.Context, workspaceID, accountID string) (map[string]bool, error) {
	snapshot, err := s.LoadSnapshot(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	perms := map[string]bool{}
	if snapshot == nil {
		return perms, nil
	}
	member := snapshot.MemberOf(accountID)
	if member == nil {
		return perms, nil
	}
	perms[repository.PermWorkspaceMember] = true
	for _, roleID := range member.RoleIDs {
		if snapshot.WorkspaceAdminRoleIDs[roleID] {
			perms[repository.PermWorkspaceManage] = true
		}
		if role := snapshot.RoleByID(roleID); role != nil {
			for _, perm := range role.Permissions {
				perms[perm] = true
			}
		}
	}
	access := resolveFolderAccess(snapshot, member.RoleIDs, []string{repository.RootFolderID})
	if access.Read {
		perms[repository.PermFolderRead] = true
	}
	if access.Write {
		perms[repository.PermFolderWrite] = true
	}
	return perms, nil
}

// AuthorizeWorkspaceAccess checks one workspace-scope permission. System
// managers pass unconditionally.
func (s *Service) AuthorizeWorkspaceAccess(ctx context.Context, workspaceID string, actor Actor, permission string) (*repository.Workspace, error) {
	snapshot, err := s.LoadSnapshot(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, gatewayerrors.NewInvalidState("The workspace does not exist").
			WithReason(gatewayerrors.ReasonWorkspaceNotFound)
	}
	if actor.IsSystemManager() {
		return snapshot.Workspace, nil
	}
	member := snapshot.MemberOf(actor.AccountID)
	if member == nil {
		return nil, forbidden(gatewayerrors.ReasonForbiddenWorkspace, permission)
	}
	switch permission {
	case repository.PermWorkspaceMember:
		return snapshot.Workspace, nil
	case repository.PermWorkspaceManage:
		for _, roleID := range member.RoleIDs {
			if snapshot.WorkspaceAdminRoleIDs[roleID] {
				return snapshot.Workspace, nil
			}
		}
		return nil, forbidden(gatewayerrors.ReasonForbiddenWorkspace, permission)
	case repository.PermFolderRead:
		if resolveFolderAccess(snapshot, member.RoleIDs, nil).Read {
			return snapshot.Workspace, nil
		}
		return nil, forbidden(gatewayerrors.ReasonForbiddenFolderRead, permission)
	case repository.PermFolderWrite:
		if resolveFolderAccess(snapshot, member.RoleIDs, nil).Write {
			return snapshot.Workspace, nil
		}
		return nil, forbidden(gatewayerrors.ReasonForbiddenFolderWrite, permission)
	default:
		return nil, forbidden(gatewayerrors.ReasonForbiddenWorkspace, permission)
	}
}

// AuthorizeProjectWrite gates a mutating tool against the project's folder
// path.
func (s *Service) AuthorizeProjectWrite(ctx context.Context, workspaceID string, folderPath []string, projectID, tool string, actor Actor) error {
	return s.authorizeProject(ctx, workspaceID, folderPath, projectID, tool, actor, true)
}

// AuthorizeProjectRead gates a state-exposing tool against the project's
// folder path.
func (s *Service) AuthorizeProjectRead(ctx context.Context, workspaceID string, folderPath []string, projectID, tool string, actor Actor) error {
	return s.authorizeProject(ctx, workspaceID, folderPath, projectID, tool, actor, false)
}

func (s *Service) authorizeProject(ctx context.Context, workspaceID string, folderPath []string, projectID, tool string, actor Actor, write bool) error {
	if actor.IsSystemManager() {
		return nil
	}
	snapshot, err := s.LoadSnapshot(ctx, workspaceID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return gatewayerrors.NewInvalidState("The workspace does not exist").
			WithReason(gatewayerrors.ReasonWorkspaceNotFound).
			WithDetail("projectId", projectID).
			WithDetail("tool", tool)
	}
	member := snapshot.MemberOf(actor.AccountID)
	if member == nil {
		reason := gatewayerrors.ReasonForbiddenProjectRead
		if write {
			reason = gatewayerrors.ReasonForbiddenProjectWrite
		}
		return gatewayerrors.NewInvalidState("The account is not a member of this workspace").
			WithReason(reason).
			WithDetail("projectId", projectID).
			WithDetail("tool", tool)
	}
	access := resolveFolderAccess(snapshot, member.RoleIDs, folderPath)
	if write && !access.Write {
		return gatewayerrors.NewInvalidState("Write access to the project folder is denied").
			WithReason(gatewayerrors.ReasonForbiddenFolderWrite).
			WithDetail("projectId", projectID).
			WithDetail("tool", tool)
	}
	if !write && !access.Read {
		return gatewayerrors.NewInvalidState("Read access to the project folder is denied").
			WithReason(gatewayerrors.ReasonForbiddenFolderRead).
			WithDetail("projectId", projectID).
			WithDetail("tool", tool)
	}
	return nil
}

func forbidden(reason, permission string) error {
	return gatewayerrors.NewInvalidState("The account lacks the required workspace permission").
		WithReason(reason).
		WithDetail("permission", permission)
}
