/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
)

const (
	TPAccount          = "accounts"
	TPWorkspace        = "workspaces"
	TPRole             = "workspace_roles"
	TPMember           = "workspace_members"
	TPAclRule          = "workspace_acl_rules"
	TPFolder           = "workspace_folders"
	TPProjectPlacement = "project_placements"
	TPAPIKey           = "api_keys"
	TPServiceSetting   = "service_settings"
)

// maxFolderDepth bounds the path walk so a corrupted parent chain cannot
// loop forever.
const maxFolderDepth = 64

// WorkspaceRepository is the PostgreSQL record store behind accounts,
// workspaces, roles, members, folder ACLs, API keys and service settings.
type WorkspaceRepository struct {
	db *sqlx.DB
}

// NewWorkspaceRepository wraps an open connection pool.
func NewWorkspaceRepository(db *sqlx.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db.Unsafe()}
}

func builder() sqrl.StatementBuilderType {
	return sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar)
}

// escapeLikePrefix escapes LIKE metacharacters so a prefix match stays literal.
func escapeLikePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix)
}

type accountRow struct {
	AccountID   string         `db:"account_id"`
	DisplayName string         `db:"display_name"`
	SystemRoles pq.StringArray `db:"system_roles"`
	CreatedAt   time.Time      `db:"created_at"`
}

type workspaceRow struct {
	WorkspaceID         string    `db:"workspace_id"`
	TenantID            string    `db:"tenant_id"`
	Name                string    `db:"name"`
	DefaultMemberRoleID string    `db:"default_member_role_id"`
	CreatedBy           string    `db:"created_by"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

type roleRow struct {
	WorkspaceID string         `db:"workspace_id"`
	RoleID      string         `db:"role_id"`
	Name        string         `db:"name"`
	Builtin     string         `db:"builtin"`
	Permissions pq.StringArray `db:"permissions"`
}

type memberRow struct {
	WorkspaceID string         `db:"workspace_id"`
	AccountID   string         `db:"account_id"`
	RoleIDs     pq.StringArray `db:"role_ids"`
}

type aclRuleRow struct {
	WorkspaceID string         `db:"workspace_id"`
	RuleID      string         `db:"rule_id"`
	Scope       string         `db:"scope"`
	FolderID    string         `db:"folder_id"`
	RoleIDs     pq.StringArray `db:"role_ids"`
	Read        string         `db:"read_effect"`
	Write       string         `db:"write_effect"`
	Locked      bool           `db:"locked"`
}

type folderRow struct {
	WorkspaceID string `db:"workspace_id"`
	FolderID    string `db:"folder_id"`
	ParentID    string `db:"parent_id"`
	Name        string `db:"name"`
}

type apiKeyRow struct {
	KeyID       string       `db:"key_id"`
	WorkspaceID string       `db:"workspace_id"`
	AccountID   string       `db:"account_id"`
	Name        string       `db:"name"`
	Hash        string       `db:"hash"`
	Hint        string       `db:"hint"`
	CreatedAt   time.Time    `db:"created_at"`
	ExpiresAt   time.Time    `db:"expires_at"`
	LastUsedAt  sql.NullTime `db:"last_used_at"`
	Revoked     bool         `db:"revoked"`
}

func (r *apiKeyRow) toRecord() *repository.APIKey {
	key := &repository.APIKey{
		KeyID:       r.KeyID,
		WorkspaceID: r.WorkspaceID,
		AccountID:   r.AccountID,
		Name:        r.Name,
		Hash:        r.Hash,
		Hint:        r.Hint,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		Revoked:     r.Revoked,
	}
	if r.LastUsedAt.Valid {
		key.LastUsedAt = r.LastUsedAt.Time
	}
	return key
}

func (r *WorkspaceRepository) UpsertAccount(ctx context.Context, account *repository.Account) error {
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query, args, err := builder().Insert(TPAccount).
		Columns("account_id", "display_name", "system_roles", "created_at").
		Values(account.AccountID, account.DisplayName, pq.StringArray(account.SystemRoles), createdAt).
		Suffix("ON CONFLICT (account_id) DO UPDATE SET display_name = EXCLUDED.display_name, " +
			"system_roles = EXCLUDED.system_roles").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert accounts query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert accounts to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetAccount(ctx context.Context, accountID string) (*repository.Account, error) {
	var row accountRow
	err := r.getOne(ctx, &row, TPAccount, sqrl.Eq{"account_id": accountID})
	if err != nil || row.AccountID == "" {
		return nil, err
	}
	return &repository.Account{
		AccountID:   row.AccountID,
		DisplayName: row.DisplayName,
		SystemRoles: []string(row.SystemRoles),
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (r *WorkspaceRepository) ListAccounts(ctx context.Context) ([]*repository.Account, error) {
	var rows []*accountRow
	if err := r.selectAll(ctx, &rows, TPAccount, nil, "account_id ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, &repository.Account{
			AccountID:   row.AccountID,
			DisplayName: row.DisplayName,
			SystemRoles: []string(row.SystemRoles),
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

func (r *WorkspaceRepository) DeleteAccount(ctx context.Context, accountID string) error {
	return r.deleteWhere(ctx, TPAccount, sqrl.Eq{"account_id": accountID})
}

func (r *WorkspaceRepository) CreateWorkspace(ctx context.Context, ws *repository.Workspace) error {
	now := time.Now().UTC()
	createdAt := ws.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	query, args, err := builder().Insert(TPWorkspace).
		Columns("workspace_id", "tenant_id", "name", "default_member_role_id",
			"created_by", "created_at", "updated_at").
		Values(ws.WorkspaceID, ws.TenantID, ws.Name, ws.DefaultMemberRoleID,
			ws.CreatedBy, createdAt, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert workspaces query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert workspaces to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetWorkspace(ctx context.Context, workspaceID string) (*repository.Workspace, error) {
	var row workspaceRow
	err := r.getOne(ctx, &row, TPWorkspace, sqrl.Eq{"workspace_id": workspaceID})
	if err != nil || row.WorkspaceID == "" {
		return nil, err
	}
	return workspaceFromRow(&row), nil
}

func (r *WorkspaceRepository) ListWorkspaces(ctx context.Context) ([]*repository.Workspace, error) {
	var rows []*workspaceRow
	if err := r.selectAll(ctx, &rows, TPWorkspace, nil, "workspace_id ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.Workspace, 0, len(rows))
	for _, row := range rows {
		out = append(out, workspaceFromRow(row))
	}
	return out, nil
}

func (r *WorkspaceRepository) UpdateWorkspace(ctx context.Context, ws *repository.Workspace) error {
	query, args, err := builder().Update(TPWorkspace).
		Set("name", ws.Name).
		Set("default_member_role_id", ws.DefaultMemberRoleID).
		Set("updated_at", time.Now().UTC()).
		Where(sqrl.Eq{"workspace_id": ws.WorkspaceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update workspaces query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update workspaces in db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	scoped := []string{TPRole, TPMember, TPAclRule, TPFolder, TPProjectPlacement}
	for _, table := range scoped {
		if err := r.deleteWhere(ctx, table, sqrl.Eq{"workspace_id": workspaceID}); err != nil {
			return err
		}
	}
	return r.deleteWhere(ctx, TPWorkspace, sqrl.Eq{"workspace_id": workspaceID})
}

func (r *WorkspaceRepository) UpsertRole(ctx context.Context, role *repository.Role) error {
	query, args, err := builder().Insert(TPRole).
		Columns("workspace_id", "role_id", "name", "builtin", "permissions").
		Values(role.WorkspaceID, role.RoleID, role.Name, role.Builtin, pq.StringArray(role.Permissions)).
		Suffix("ON CONFLICT (workspace_id, role_id) DO UPDATE SET name = EXCLUDED.name, permissions = EXCLUDED.permissions").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert workspace_roles query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert workspace_roles to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetRole(ctx context.Context, workspaceID, roleID string) (*repository.Role, error) {
	var row roleRow
	err := r.getOne(ctx, &row, TPRole, sqrl.Eq{"workspace_id": workspaceID, "role_id": roleID})
	if err != nil || row.RoleID == "" {
		return nil, err
	}
	return roleFromRow(&row), nil
}

func (r *WorkspaceRepository) ListRoles(ctx context.Context, workspaceID string) ([]*repository.Role, error) {
	var rows []*roleRow
	if err := r.selectAll(ctx, &rows, TPRole, sqrl.Eq{"workspace_id": workspaceID}, "role_id ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.Role, 0, len(rows))
	for _, row := range rows {
		out = append(out, roleFromRow(row))
	}
	return out, nil
}

func (r *WorkspaceRepository) DeleteRole(ctx context.Context, workspaceID, roleID string) error {
	return r.deleteWhere(ctx, TPRole, sqrl.Eq{"workspace_id": workspaceID, "role_id": roleID})
}

func (r *WorkspaceRepository) UpsertMember(ctx context.Context, member *repository.Member) error {
	query, args, err := builder().Insert(TPMember).
		Columns("workspace_id", "account_id", "role_ids").
		Values(member.WorkspaceID, member.AccountID, pq.StringArray(member.RoleIDs)).
		Suffix("ON CONFLICT (workspace_id, account_id) DO UPDATE SET role_ids = EXCLUDED.role_ids").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert workspace_members query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert workspace_members to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetMember(ctx context.Context, workspaceID, accountID string) (*repository.Member, error) {
	var row memberRow
	err := r.getOne(ctx, &row, TPMember, sqrl.Eq{"workspace_id": workspaceID, "account_id": accountID})
	if err != nil || row.AccountID == "" {
		return nil, err
	}
	return &repository.Member{
		WorkspaceID: row.WorkspaceID,
		AccountID:   row.AccountID,
		RoleIDs:     []string(row.RoleIDs),
	}, nil
}

func (r *WorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]*repository.Member, error) {
	var rows []*memberRow
	if err := r.selectAll(ctx, &rows, TPMember, sqrl.Eq{"workspace_id": workspaceID}, "account_id ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, &repository.Member{
			WorkspaceID: row.WorkspaceID,
			AccountID:   row.AccountID,
			RoleIDs:     []string(row.RoleIDs),
		})
	}
	return out, nil
}

func (r *WorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, accountID string) error {
	return r.deleteWhere(ctx, TPMember, sqrl.Eq{"workspace_id": workspaceID, "account_id": accountID})
}

func (r *WorkspaceRepository) UpsertAclRule(ctx context.Context, rule *repository.AclRule) error {
	ruleID := rule.RuleID
	if ruleID == "" {
		ruleID = repository.DeriveAclRuleID(rule.FolderID, rule.Read, rule.Write, rule.Locked)
	}
	query, args, err := builder().Insert(TPAclRule).
		Columns("workspace_id", "rule_id", "scope", "folder_id", "role_ids",
			"read_effect", "write_effect", "locked").
		Values(rule.WorkspaceID, ruleID, rule.Scope, rule.FolderID, pq.StringArray(rule.RoleIDs),
			string(rule.Read), string(rule.Write), rule.Locked).
		Suffix("ON CONFLICT (workspace_id, rule_id) DO UPDATE SET scope = EXCLUDED.scope, " +
			"folder_id = EXCLUDED.folder_id, role_ids = EXCLUDED.role_ids, " +
			"read_effect = EXCLUDED.read_effect, write_effect = EXCLUDED.write_effect, locked = EXCLUDED.locked").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert workspace_acl_rules query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert workspace_acl_rules to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) ListAclRules(ctx context.Context, workspaceID string) ([]*repository.AclRule, error) {
	var rows []*aclRuleRow
	if err := r.selectAll(ctx, &rows, TPAclRule, sqrl.Eq{"workspace_id": workspaceID}, "rule_id ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.AclRule, 0, len(rows))
	for _, row := range rows {
		out = append(out, &repository.AclRule{
			WorkspaceID: row.WorkspaceID,
			RuleID:      row.RuleID,
			Scope:       row.Scope,
			FolderID:    row.FolderID,
			RoleIDs:     []string(row.RoleIDs),
			Read:        repository.AclEffect(row.Read),
			Write:       repository.AclEffect(row.Write),
			Locked:      row.Locked,
		})
	}
	return out, nil
}

func (r *WorkspaceRepository) RemoveAclRule(ctx context.Context, workspaceID, ruleID string) error {
	return r.deleteWhere(ctx, TPAclRule, sqrl.Eq{"workspace_id": workspaceID, "rule_id": ruleID})
}

func (r *WorkspaceRepository) UpsertFolder(ctx context.Context, folder *repository.Folder) error {
	query, args, err := builder().Insert(TPFolder).
		Columns("workspace_id", "folder_id", "parent_id", "name").
		Values(folder.WorkspaceID, folder.FolderID, folder.ParentID, folder.Name).
		Suffix("ON CONFLICT (workspace_id, folder_id) DO UPDATE SET parent_id = EXCLUDED.parent_id, name = EXCLUDED.name").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert workspace_folders query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert workspace_folders to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) ListFolders(ctx context.Context, workspaceID string) ([]*repository.Folder, error) {
	var rows []*folderRow
	if err := r.selectAll(ctx, &rows, TPFolder, sqrl.Eq{"workspace_id": workspaceID}, "folder_id ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.Folder, 0, len(rows))
	for _, row := range rows {
		out = append(out, &repository.Folder{
			WorkspaceID: row.WorkspaceID,
			FolderID:    row.FolderID,
			ParentID:    row.ParentID,
			Name:        row.Name,
		})
	}
	return out, nil
}

func (r *WorkspaceRepository) DeleteFolder(ctx context.Context, workspaceID, folderID string) error {
	return r.deleteWhere(ctx, TPFolder, sqrl.Eq{"workspace_id": workspaceID, "folder_id": folderID})
}

func (r *WorkspaceRepository) SetProjectFolder(ctx context.Context, workspaceID, projectID, folderID string) error {
	query, args, err := builder().Insert(TPProjectPlacement).
		Columns("workspace_id", "project_id", "folder_id").
		Values(workspaceID, projectID, folderID).
		Suffix("ON CONFLICT (workspace_id, project_id) DO UPDATE SET folder_id = EXCLUDED.folder_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert project_placements query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert project_placements to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetProjectFolderPath(ctx context.Context, workspaceID, projectID string) ([]string, error) {
	var placement struct {
		FolderID string `db:"folder_id"`
	}
	err := r.getOne(ctx, &placement, TPProjectPlacement,
		sqrl.Eq{"workspace_id": workspaceID, "project_id": projectID})
	if err != nil {
		return nil, err
	}
	if placement.FolderID == repository.RootFolderID {
		return []string{repository.RootFolderID}, nil
	}
	folders, err := r.ListFolders(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	parents := make(map[string]string, len(folders))
	for _, folder := range folders {
		parents[folder.FolderID] = folder.ParentID
	}
	path := []string{placement.FolderID}
	current := placement.FolderID
	for depth := 0; depth < maxFolderDepth; depth++ {
		parent, ok := parents[current]
		if !ok || parent == repository.RootFolderID {
			break
		}
		path = append(path, parent)
		current = parent
	}
	// reverse into root-first order
	out := make([]string, 0, len(path)+1)
	out = append(out, repository.RootFolderID)
	for i := len(path) - 1; i >= 0; i-- {
		out = append(out, path[i])
	}
	return out, nil
}

func (r *WorkspaceRepository) CreateAPIKey(ctx context.Context, key *repository.APIKey) error {
	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query, args, err := builder().Insert(TPAPIKey).
		Columns("key_id", "workspace_id", "account_id", "name", "hash", "hint",
			"created_at", "expires_at", "revoked").
		Values(key.KeyID, key.WorkspaceID, key.AccountID, key.Name, key.Hash, key.Hint,
			createdAt, key.ExpiresAt, key.Revoked).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert api_keys query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert api_keys to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) ListAPIKeys(ctx context.Context, workspaceID string) ([]*repository.APIKey, error) {
	var rows []*apiKeyRow
	if err := r.selectAll(ctx, &rows, TPAPIKey, sqrl.Eq{"workspace_id": workspaceID}, "created_at ASC"); err != nil {
		return nil, err
	}
	out := make([]*repository.APIKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (r *WorkspaceRepository) RevokeAPIKey(ctx context.Context, keyID string) error {
	query, args, err := builder().Update(TPAPIKey).
		Set("revoked", true).
		Where(sqrl.Eq{"key_id": keyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build revoke api_keys query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to revoke api_keys in db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) FindAPIKeyByHash(ctx context.Context, hash string) (*repository.APIKey, error) {
	var row apiKeyRow
	err := r.getOne(ctx, &row, TPAPIKey, sqrl.Eq{"hash": hash, "revoked": false})
	if err != nil || row.KeyID == "" {
		return nil, err
	}
	return row.toRecord(), nil
}

func (r *WorkspaceRepository) UpdateAPIKeyLastUsed(ctx context.Context, keyID string, usedAt time.Time) error {
	query, args, err := builder().Update(TPAPIKey).
		Set("last_used_at", usedAt).
		Where(sqrl.Eq{"key_id": keyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update api_keys query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update api_keys in db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetServiceSetting(ctx context.Context, key string) (json.RawMessage, error) {
	query, args, err := builder().Select("value").From(TPServiceSetting).
		Where(sqrl.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select service_settings query: %v", err)
	}
	var value []byte
	err = r.db.GetContext(ctx, &value, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select service_settings from db: %v", err)
	}
	return value, nil
}

func (r *WorkspaceRepository) UpsertServiceSetting(ctx context.Context, key string, value json.RawMessage) error {
	query, args, err := builder().Insert(TPServiceSetting).
		Columns("key", "value").
		Values(key, []byte(value)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert service_settings query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert service_settings to db: %v", err)
	}
	return nil
}

func (r *WorkspaceRepository) getOne(ctx context.Context, dest interface{}, table string, where sqrl.Sqlizer) error {
	query, args, err := builder().Select("*").From(table).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select %s query: %v", table, err)
	}
	err = r.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to select %s from db: %v", table, err)
	}
	return nil
}

func (r *WorkspaceRepository) selectAll(ctx context.Context, dest interface{},
	table string, where sqrl.Sqlizer, orderBy string) error {
	b := builder().Select("*").From(table)
	if where != nil {
		b = b.Where(where)
	}
	if orderBy != "" {
		b = b.OrderBy(orderBy)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select %s query: %v", table, err)
	}
	if err = r.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("failed to select %s from db: %v", table, err)
	}
	return nil
}

func (r *WorkspaceRepository) deleteWhere(ctx context.Context, table string, where sqrl.Sqlizer) error {
	query, args, err := builder().Delete(table).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete %s query: %v", table, err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s from db: %v", table, err)
	}
	return nil
}

func roleFromRow(row *roleRow) *repository.Role {
	return &repository.Role{
		WorkspaceID: row.WorkspaceID,
		RoleID:      row.RoleID,
		Name:        row.Name,
		Builtin:     row.Builtin,
		Permissions: row.Permissions,
	}
}

func workspaceFromRow(row *workspaceRow) *repository.Workspace {
	return &repository.Workspace{
		WorkspaceID:         row.WorkspaceID,
		TenantID:            row.TenantID,
		Name:                row.Name,
		DefaultMemberRoleID: row.DefaultMemberRoleID,
		CreatedBy:           row.CreatedBy,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}
