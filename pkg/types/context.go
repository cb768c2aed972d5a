/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package types

// MCPContext is the per-request identity envelope supplied by the transport.
type MCPContext struct {
	SessionID   string   `json:"mcpSessionId"`
	AccountID   string   `json:"mcpAccountId"`
	SystemRoles []string `json:"mcpSystemRoles,omitempty"`
	WorkspaceID string   `json:"mcpWorkspaceId"`
	APIKeyID    string   `json:"mcpApiKeyId,omitempty"`
}

// System roles that bypass workspace checks.
const (
	SystemRoleAdmin   = "system_admin"
	SystemRoleCSAdmin = "cs_admin"
)

// IsSystemManager reports whether the context holds a system-manager role.
func (c MCPContext) IsSystemManager() bool {
	for _, r := range c.SystemRoles {
		if r == SystemRoleAdmin || r == SystemRoleCSAdmin {
			return true
		}
	}
	return false
}

// SessionContext is the identity handed to a backend for one tool invocation.
type SessionContext struct {
	TenantID    string `json:"tenantId"`
	ActorID     string `json:"actorId"`
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
}
