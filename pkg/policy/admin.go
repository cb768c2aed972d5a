/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/utils/stringutil"
)

// Admin performs guarded workspace administration. Every write enforces the
// workspace invariants and invalidates the policy cache on success:
//   - exactly one undeletable workspace_admin built-in role per workspace
//   - at least one member holds an admin role at all times
//   - the bootstrap creator keeps the admin role
//   - defaultMemberRoleId points at an existing non-admin role
//   - role names are unique per workspace, case-insensitive and trimmed
//   - locked ACL rules are only editable by admin workflows
type Admin struct {
	repo    repository.WorkspaceRepository
	service *Service
}

// NewAdmin builds an Admin sharing the Service's repository and cache.
func NewAdmin(repo repository.WorkspaceRepository, service *Service) *Admin {
	return &Admin{repo: repo, service: service}
}

// BootstrapWorkspace creates a workspace with its built-in admin role, a
// default member role, and the creator as first admin member.
func (a *Admin) BootstrapWorkspace(ctx context.Context, tenantID, name, creatorAccountID string) (*repository.Workspace, error) {
	if name == "" || creatorAccountID == "" {
		return nil, gatewayerrors.NewInvalidPayload("workspace name and creator account are required")
	}
	workspaceID := "ws-" + uuid.NewString()
	adminRoleID := "role-admin-" + uuid.NewString()
	memberRoleID := "role-member-" + uuid.NewString()

	workspace := &repository.Workspace{
		WorkspaceID:         workspaceID,
		TenantID:            tenantID,
		Name:                name,
		DefaultMemberRoleID: memberRoleID,
		CreatedBy:           creatorAccountID,
	}
	if err := a.repo.CreateWorkspace(ctx, workspace); err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	adminRole := &repository.Role{
		WorkspaceID: workspaceID,
		RoleID:      adminRoleID,
		Name:        "Workspace Admin",
		Builtin:     repository.BuiltinWorkspaceAdmin,
		Permissions: []string{repository.PermWorkspaceManage, repository.PermFolderRead, repository.PermFolderWrite},
	}
	memberRole := &repository.Role{
		WorkspaceID: workspaceID,
		RoleID:      memberRoleID,
		Name:        "Member",
		Permissions: []string{repository.PermFolderRead},
	}
	for _, role := range []*repository.Role{adminRole, memberRole} {
		if err := a.repo.UpsertRole(ctx, role); err != nil {
			return nil, gatewayerrors.NewIOError(err)
		}
	}
	member := &repository.Member{
		WorkspaceID: workspaceID,
		AccountID:   creatorAccountID,
		RoleIDs:     []string{adminRoleID},
	}
	if err := a.repo.UpsertMember(ctx, member); err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(workspaceID)
	klog.Infof("bootstrapped workspace %s for account %s", workspaceID, creatorAccountID)
	return workspace, nil
}

// UpsertRole creates or updates a custom role. Built-in markers cannot be
// granted or removed through this path, and names stay unique.
func (a *Admin) UpsertRole(ctx context.Context, role *repository.Role) error {
	if role.Builtin != "" {
		return gatewayerrors.NewInvalidPayload("built-in roles cannot be created or re-flagged")
	}
	existing, err := a.repo.GetRole(ctx, role.WorkspaceID, role.RoleID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	if existing != nil && existing.IsWorkspaceAdmin() {
		return gatewayerrors.NewInvalidState("the built-in admin role cannot be modified")
	}
	name := stringutil.NormalizeName(role.Name)
	if name == "" {
		return gatewayerrors.NewInvalidPayload("role name is required")
	}
	roles, err := a.repo.ListRoles(ctx, role.WorkspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	for _, other := range roles {
		if other.RoleID != role.RoleID && stringutil.StrCaseEqual(stringutil.NormalizeName(other.Name), name) {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("role name %q is already in use", role.Name))
		}
	}
	role.Name = name
	if err := a.repo.UpsertRole(ctx, role); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(role.WorkspaceID)
	return nil
}

// DeleteRole removes a custom role. The built-in admin role and the current
// default member role are protected.
func (a *Admin) DeleteRole(ctx context.Context, workspaceID, roleID string) error {
	role, err := a.repo.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	if role == nil {
		return nil
	}
	if role.IsWorkspaceAdmin() {
		return gatewayerrors.NewInvalidState("the built-in admin role cannot be deleted")
	}
	workspace, err := a.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	if workspace != nil && workspace.DefaultMemberRoleID == roleID {
		return gatewayerrors.NewInvalidState("the default member role cannot be deleted")
	}
	if err := a.repo.DeleteRole(ctx, workspaceID, roleID); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(workspaceID)
	return nil
}

// SetDefaultMemberRole repoints the workspace's default role at an existing
// non-admin role.
func (a *Admin) SetDefaultMemberRole(ctx context.Context, workspaceID, roleID string) error {
	role, err := a.repo.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	if role == nil {
		return gatewayerrors.NewInvalidState("the default member role must exist")
	}
	if role.IsWorkspaceAdmin() {
		return gatewayerrors.NewInvalidState("the default member role cannot be a built-in admin role")
	}
	workspace, err := a.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	if workspace == nil {
		return gatewayerrors.NewInvalidState("The workspace does not exist").
			WithReason(gatewayerrors.ReasonWorkspaceNotFound)
	}
	workspace.DefaultMemberRoleID = roleID
	if err := a.repo.UpdateWorkspace(ctx, workspace); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(workspaceID)
	return nil
}

// UpsertMember assigns roles to an account. Demoting the last admin or the
// bootstrap creator is rejected.
func (a *Admin) UpsertMember(ctx context.Context, member *repository.Member) error {
	if err := a.guardAdminSurvives(ctx, member.WorkspaceID, member.AccountID, member.RoleIDs); err != nil {
		return err
	}
	if err := a.repo.UpsertMember(ctx, member); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(member.WorkspaceID)
	return nil
}

// RemoveMember drops an account from the workspace, unless doing so would
// leave the workspace without an admin.
func (a *Admin) RemoveMember(ctx context.Context, workspaceID, accountID string) error {
	if err := a.guardAdminSurvives(ctx, workspaceID, accountID, nil); err != nil {
		return err
	}
	if err := a.repo.RemoveMember(ctx, workspaceID, accountID); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(workspaceID)
	return nil
}

// UpsertAclRule writes a folder ACL rule. Locked rules require asAdmin.
func (a *Admin) UpsertAclRule(ctx context.Context, rule *repository.AclRule, asAdmin bool) error {
	if err := a.guardLockedRule(ctx, rule.WorkspaceID, rule.RuleID, asAdmin); err != nil {
		return err
	}
	if rule.Locked && !asAdmin {
		return gatewayerrors.NewInvalidState("locked ACL rules require admin access")
	}
	if err := a.repo.UpsertAclRule(ctx, rule); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(rule.WorkspaceID)
	return nil
}

// RemoveAclRule deletes a folder ACL rule. Locked rules require asAdmin.
func (a *Admin) RemoveAclRule(ctx context.Context, workspaceID, ruleID string, asAdmin bool) error {
	if err := a.guardLockedRule(ctx, workspaceID, ruleID, asAdmin); err != nil {
		return err
	}
	if err := a.repo.RemoveAclRule(ctx, workspaceID, ruleID); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	a.service.InvalidateWorkspace(workspaceID)
	return nil
}

// guardAdminSurvives rejects a member change that would remove the final
// admin or strip the bootstrap creator's admin role. nextRoleIDs nil means
// removal.
func (a *Admin) guardAdminSurvives(ctx context.Context, workspaceID, accountID string, nextRoleIDs []string) error {
	workspace, err := a.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	if workspace == nil {
		return gatewayerrors.NewInvalidState("The workspace does not exist").
			WithReason(gatewayerrors.ReasonWorkspaceNotFound)
	}
	roles, err := a.repo.ListRoles(ctx, workspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	adminRoleIDs := map[string]bool{}
	for _, role := range roles {
		if role.IsWorkspaceAdmin() {
			adminRoleIDs[role.RoleID] = true
		}
	}
	holdsAdmin := func(roleIDs []string) bool {
		for _, roleID := range roleIDs {
			if adminRoleIDs[roleID] {
				return true
			}
		}
		return false
	}

	current, err := a.repo.GetMember(ctx, workspaceID, accountID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	losesAdmin := current != nil && holdsAdmin(current.RoleIDs) && !holdsAdmin(nextRoleIDs)
	if !losesAdmin {
		return nil
	}
	if accountID == workspace.CreatedBy {
		return gatewayerrors.NewInvalidState("the bootstrap admin's admin role is immutable")
	}
	members, err := a.repo.ListMembers(ctx, workspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	for _, member := range members {
		if member.AccountID != accountID && holdsAdmin(member.RoleIDs) {
			return nil
		}
	}
	return gatewayerrors.NewInvalidState("the last workspace admin cannot be demoted or removed")
}

func (a *Admin) guardLockedRule(ctx context.Context, workspaceID, ruleID string, asAdmin bool) error {
	if asAdmin || ruleID == "" {
		return nil
	}
	rules, err := a.repo.ListAclRules(ctx, workspaceID)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	for _, rule := range rules {
		if rule.RuleID == ruleID && rule.Locked {
			return gatewayerrors.NewInvalidState("locked ACL rules require admin access")
		}
	}
	return nil
}
