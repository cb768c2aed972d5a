/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// BuiltinWorkspaceAdmin marks the one undeletable admin role per workspace.
const BuiltinWorkspaceAdmin = "workspace_admin"

// Workspace-scope permission names.
const (
	PermWorkspaceMember = "workspace.member"
	PermWorkspaceManage = "workspace.manage"
	PermFolderRead      = "folder.read"
	PermFolderWrite     = "folder.write"
)

// AclEffect is the tristate of one ACL channel.
type AclEffect string

const (
	AclAllow   AclEffect = "allow"
	AclDeny    AclEffect = "deny"
	AclInherit AclEffect = "inherit"
)

// RootFolderID is the folderId value addressing the workspace root.
const RootFolderID = ""

type Account struct {
	AccountID   string    `json:"accountId"`
	DisplayName string    `json:"displayName"`
	SystemRoles []string  `json:"systemRoles,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Workspace struct {
	WorkspaceID         string    `json:"workspaceId"`
	TenantID            string    `json:"tenantId"`
	Name                string    `json:"name"`
	DefaultMemberRoleID string    `json:"defaultMemberRoleId"`
	CreatedBy           string    `json:"createdBy"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type Role struct {
	WorkspaceID string   `json:"workspaceId"`
	RoleID      string   `json:"roleId"`
	Name        string   `json:"name"`
	Builtin     string   `json:"builtin,omitempty"`
	Permissions []string `json:"permissions"`
}

// IsWorkspaceAdmin reports whether the role is the built-in admin role.
func (r *Role) IsWorkspaceAdmin() bool {
	return r.Builtin == BuiltinWorkspaceAdmin
}

type Member struct {
	WorkspaceID string   `json:"workspaceId"`
	AccountID   string   `json:"accountId"`
	RoleIDs     []string `json:"roleIds"`
}

type AclRule struct {
	WorkspaceID string    `json:"workspaceId"`
	RuleID      string    `json:"ruleId"`
	Scope       string    `json:"scope"`
	FolderID    string    `json:"folderId"`
	RoleIDs     []string  `json:"roleIds"`
	Read        AclEffect `json:"read"`
	Write       AclEffect `json:"write"`
	Locked      bool      `json:"locked,omitempty"`
}

// DeriveAclRuleID computes the rule id from the rule identity fields. Used
// when an upsert carries no explicit id.
func DeriveAclRuleID(folderID string, read, write AclEffect, locked bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%t", folderID, read, write, locked)))
	return "acl-" + hex.EncodeToString(sum[:8])
}

type Folder struct {
	WorkspaceID string `json:"workspaceId"`
	FolderID    string `json:"folderId"`
	ParentID    string `json:"parentId"`
	Name        string `json:"name"`
}

type APIKey struct {
	KeyID       string    `json:"keyId"`
	WorkspaceID string    `json:"workspaceId,omitempty"`
	AccountID   string    `json:"accountId"`
	Name        string    `json:"name"`
	Hash        string    `json:"hash"`
	Hint        string    `json:"hint"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	LastUsedAt  time.Time `json:"lastUsedAt,omitempty"`
	Revoked     bool      `json:"revoked"`
}

// WorkspaceRepository is the record store behind accounts, workspaces, roles,
// members, folder ACLs, API keys and service settings. List operations return
// defensively cloned records.
type WorkspaceRepository interface {
	UpsertAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	DeleteAccount(ctx context.Context, accountID string) error

	CreateWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *Workspace) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	UpsertRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, workspaceID, roleID string) (*Role, error)
	ListRoles(ctx context.Context, workspaceID string) ([]*Role, error)
	DeleteRole(ctx context.Context, workspaceID, roleID string) error

	UpsertMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, workspaceID, accountID string) (*Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]*Member, error)
	RemoveMember(ctx context.Context, workspaceID, accountID string) error

	UpsertAclRule(ctx context.Context, rule *AclRule) error
	ListAclRules(ctx context.Context, workspaceID string) ([]*AclRule, error)
	RemoveAclRule(ctx context.Context, workspaceID, ruleID string) error

	UpsertFolder(ctx context.Context, folder *Folder) error
	ListFolders(ctx context.Context, workspaceID string) ([]*Folder, error)
	DeleteFolder(ctx context.Context, workspaceID, folderID string) error

	SetProjectFolder(ctx context.Context, workspaceID, projectID, folderID string) error
	// GetProjectFolderPath returns the folder path from root to the
	// project's folder, starting with RootFolderID. Projects never placed
	// resolve to the root-only path.
	GetProjectFolderPath(ctx context.Context, workspaceID, projectID string) ([]string, error)

	CreateAPIKey(ctx context.Context, key *APIKey) error
	ListAPIKeys(ctx context.Context, workspaceID string) ([]*APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
	FindAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, keyID string, usedAt time.Time) error

	GetServiceSetting(ctx context.Context, key string) (json.RawMessage, error)
	UpsertServiceSetting(ctx context.Context, key string, value json.RawMessage) error
}
