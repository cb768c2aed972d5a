/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
)

type memberKey struct{ workspaceID, accountID string }
type roleKey struct{ workspaceID, roleID string }
type folderKey struct{ workspaceID, folderID string }
type placementKey struct{ workspaceID, projectID string }

// WorkspaceRepository is the in-memory workspace record store.
type WorkspaceRepository struct {
	mu         sync.Mutex
	accounts   map[string]*repository.Account
	workspaces map[string]*repository.Workspace
	roles      map[roleKey]*repository.Role
	members    map[memberKey]*repository.Member
	aclRules   map[string][]*repository.AclRule
	folders    map[folderKey]*repository.Folder
	placements map[placementKey]string
	apiKeys    map[string]*repository.APIKey
	settings   map[string]json.RawMessage
}

// NewWorkspaceRepository returns an empty repository.
func NewWorkspaceRepository() *WorkspaceRepository {
	return &WorkspaceRepository{
		accounts:   map[string]*repository.Account{},
		workspaces: map[string]*repository.Workspace{},
		roles:      map[roleKey]*repository.Role{},
		members:    map[memberKey]*repository.Member{},
		aclRules:   map[string][]*repository.AclRule{},
		folders:    map[folderKey]*repository.Folder{},
		placements: map[placementKey]string{},
		apiKeys:    map[string]*repository.APIKey{},
		settings:   map[string]json.RawMessage{},
	}
}

func (r *WorkspaceRepository) UpsertAccount(_ context.Context, account *repository.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *account
	clone.SystemRoles = append([]string(nil), account.SystemRoles...)
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	r.accounts[account.AccountID] = &clone
	return nil
}

func (r *WorkspaceRepository) GetAccount(_ context.Context, accountID string) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountID]; ok {
		clone := *a
		clone.SystemRoles = append([]string(nil), a.SystemRoles...)
		return &clone, nil
	}
	return nil, nil
}

func (r *WorkspaceRepository) ListAccounts(_ context.Context) ([]*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*repository.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		clone := *a
		clone.SystemRoles = append([]string(nil), a.SystemRoles...)
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (r *WorkspaceRepository) DeleteAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, accountID)
	return nil
}

func (r *WorkspaceRepository) CreateWorkspace(_ context.Context, ws *repository.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[ws.WorkspaceID]; ok {
		return fmt.Errorf("workspace already exists: %s", ws.WorkspaceID)
	}
	clone := *ws
	now := time.Now().UTC()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.workspaces[ws.WorkspaceID] = &clone
	return nil
}

func (r *WorkspaceRepository) GetWorkspace(_ context.Context, workspaceID string) (*repository.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.workspaces[workspaceID]; ok {
		clone := *ws
		return &clone, nil
	}
	return nil, nil
}

func (r *WorkspaceRepository) ListWorkspaces(_ context.Context) ([]*repository.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*repository.Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		clone := *ws
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkspaceID < out[j].WorkspaceID })
	return out, nil
}

func (r *WorkspaceRepository) UpdateWorkspace(_ context.Context, ws *repository.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.workspaces[ws.WorkspaceID]
	if !ok {
		return fmt.Errorf("workspace not found: %s", ws.WorkspaceID)
	}
	clone := *ws
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now().UTC()
	r.workspaces[ws.WorkspaceID] = &clone
	return nil
}

func (r *WorkspaceRepository) DeleteWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, workspaceID)
	return nil
}

func (r *WorkspaceRepository) UpsertRole(_ context.Context, role *repository.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[roleKey{role.WorkspaceID, role.RoleID}] = cloneRole(role)
	return nil
}

func (r *WorkspaceRepository) GetRole(_ context.Context, workspaceID, roleID string) (*repository.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[roleKey{workspaceID, roleID}]; ok {
		return cloneRole(role), nil
	}
	return nil, nil
}

func (r *WorkspaceRepository) ListRoles(_ context.Context, workspaceID string) ([]*repository.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Role
	for key, role := range r.roles {
		if key.workspaceID == workspaceID {
			out = append(out, cloneRole(role))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (r *WorkspaceRepository) DeleteRole(_ context.Context, workspaceID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, roleKey{workspaceID, roleID})
	return nil
}

func (r *WorkspaceRepository) UpsertMember(_ context.Context, member *repository.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[memberKey{member.WorkspaceID, member.AccountID}] = cloneMember(member)
	return nil
}

func (r *WorkspaceRepository) GetMember(_ context.Context, workspaceID, accountID string) (*repository.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[memberKey{workspaceID, accountID}]; ok {
		return cloneMember(m), nil
	}
	return nil, nil
}

func (r *WorkspaceRepository) ListMembers(_ context.Context, workspaceID string) ([]*repository.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Member
	for key, m := range r.members {
		if key.workspaceID == workspaceID {
			out = append(out, cloneMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (r *WorkspaceRepository) RemoveMember(_ context.Context, workspaceID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, memberKey{workspaceID, accountID})
	return nil
}

func (r *WorkspaceRepository) UpsertAclRule(_ context.Context, rule *repository.AclRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := cloneAclRule(rule)
	if clone.RuleID == "" {
		clone.RuleID = repository.DeriveAclRuleID(clone.FolderID, clone.Read, clone.Write, clone.Locked)
	}
	rules := r.aclRules[rule.WorkspaceID]
	for i, existing := range rules {
		if existing.RuleID == clone.RuleID {
			rules[i] = clone
			return nil
		}
	}
	r.aclRules[rule.WorkspaceID] = append(rules, clone)
	return nil
}

func (r *WorkspaceRepository) ListAclRules(_ context.Context, workspaceID string) ([]*repository.AclRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rules := r.aclRules[workspaceID]
	out := make([]*repository.AclRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, cloneAclRule(rule))
	}
	return out, nil
}

func (r *WorkspaceRepository) RemoveAclRule(_ context.Context, workspaceID, ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rules := r.aclRules[workspaceID]
	for i, rule := range rules {
		if rule.RuleID == ruleID {
			r.aclRules[workspaceID] = append(rules[:i], rules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *WorkspaceRepository) UpsertFolder(_ context.Context, folder *repository.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *folder
	r.folders[folderKey{folder.WorkspaceID, folder.FolderID}] = &clone
	return nil
}

func (r *WorkspaceRepository) ListFolders(_ context.Context, workspaceID string) ([]*repository.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Folder
	for key, f := range r.folders {
		if key.workspaceID == workspaceID {
			clone := *f
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FolderID < out[j].FolderID })
	return out, nil
}

func (r *WorkspaceRepository) DeleteFolder(_ context.Context, workspaceID, folderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.folders, folderKey{workspaceID, folderID})
	return nil
}

func (r *WorkspaceRepository) SetProjectFolder(_ context.Context, workspaceID, projectID, folderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placements[placementKey{workspaceID, projectID}] = folderID
	return nil
}

func (r *WorkspaceRepository) GetProjectFolderPath(_ context.Context,
	workspaceID, projectID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path := []string{repository.RootFolderID}
	folderID, ok := r.placements[placementKey{workspaceID, projectID}]
	if !ok || folderID == repository.RootFolderID {
		return path, nil
	}
	// Walk parents up to the root, then reverse below the root entry.
	var chain []string
	current := folderID
	for current != repository.RootFolderID {
		folder, ok := r.folders[folderKey{workspaceID, current}]
		if !ok {
			break
		}
		chain = append(chain, current)
		current = folder.ParentID
		if len(chain) > 64 {
			return nil, fmt.Errorf("folder chain too deep for project %s", projectID)
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		path = append(path, chain[i])
	}
	return path, nil
}

func (r *WorkspaceRepository) CreateAPIKey(_ context.Context, key *repository.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *key
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	r.apiKeys[key.KeyID] = &clone
	return nil
}

func (r *WorkspaceRepository) ListAPIKeys(_ context.Context, workspaceID string) ([]*repository.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.APIKey
	for _, key := range r.apiKeys {
		if key.WorkspaceID == workspaceID {
			clone := *key
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (r *WorkspaceRepository) RevokeAPIKey(_ context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.apiKeys[keyID]; ok {
		key.Revoked = true
	}
	return nil
}

func (r *WorkspaceRepository) FindAPIKeyByHash(_ context.Context, hash string) (*repository.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.apiKeys {
		if key.Hash == hash && !key.Revoked {
			clone := *key
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *WorkspaceRepository) UpdateAPIKeyLastUsed(_ context.Context, keyID string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.apiKeys[keyID]; ok {
		key.LastUsedAt = usedAt
	}
	return nil
}

func (r *WorkspaceRepository) GetServiceSetting(_ context.Context, key string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.settings[key]; ok {
		return append(json.RawMessage(nil), v...), nil
	}
	return nil, nil
}

func (r *WorkspaceRepository) UpsertServiceSetting(_ context.Context, key string, value json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = append(json.RawMessage(nil), value...)
	return nil
}

func cloneRole(role *repository.Role) *repository.Role {
	clone := *role
	clone.Permissions = append([]string(nil), role.Permissions...)
	return &clone
}

func cloneMember(member *repository.Member) *repository.Member {
	clone := *member
	clone.RoleIDs = append([]string(nil), member.RoleIDs...)
	return &clone
}

func cloneAclRule(rule *repository.AclRule) *repository.AclRule {
	clone := *rule
	clone.RoleIDs = append([]string(nil), rule.RoleIDs...)
	return &clone
}
